// BSD 2-Clause License
//
// Copyright (c) 2020, Andrea Giacomo Baldan
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
//
// * Redistributions of source code must retain the above copyright notice, this
//   list of conditions and the following disclaimer.
//
// * Redistributions in binary form must reproduce the above copyright notice,
//   this list of conditions and the following disclaimer in the documentation
//   and/or other materials provided with the distribution.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE LIABLE
// FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR CONSEQUENTIAL
// DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS INTERRUPTION) HOWEVER
// CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT LIABILITY,
// OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH DAMAGE.

package config

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/drasi-project/e2e-test-framework/internal/model"
)

func testLogger() *zap.SugaredLogger { return zap.NewNop().Sugar() }

func TestBuildWiresEmbeddedServerReactionAndSource(t *testing.T) {
	cfg := &HostConfig{
		Runs: []RunConfig{
			{
				Repo: "drasi",
				Test: "smoke",
				Run:  "run-1",
				DrasiServers: []DrasiServerConfig{
					{Name: "embedded-1", Embedded: true, StartImmediately: true},
				},
				Reactions: []ReactionConfig{
					{
						Id:      "r1",
						Channel: &ChannelHandlerConfig{ServerId: "embedded-1"},
						Loggers: []LoggerConfig{{}},
					},
				},
				Sources: []SourceConfig{
					{
						Id:          "s1",
						TimeMode:    "recorded",
						SpacingMode: "recorded",
						Model:       &ModelConfig{StockCount: 3, Seed: 1},
					},
				},
			},
		},
	}

	h, err := Build(context.Background(), cfg, testLogger())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	runID := model.TestRunId{Repo: "drasi", Test: "smoke", Run: "run-1"}
	if _, err := h.GetTestRunState(runID); err != nil {
		t.Fatalf("GetTestRunState: %v", err)
	}

	serverID := model.TestRunDrasiServerId{TestRunId: runID, Server: "embedded-1"}
	if _, err := h.GetDrasiServerState(serverID); err != nil {
		t.Fatalf("GetDrasiServerState: %v", err)
	}

	reactionID := model.TestRunReactionId{TestRunId: runID, Reaction: "r1"}
	if _, err := h.GetReactionState(reactionID); err != nil {
		t.Fatalf("GetReactionState: %v", err)
	}

	sourceID := model.TestRunSourceId{TestRunId: runID, Source: "s1"}
	if _, err := h.GetSourceState(sourceID); err != nil {
		t.Fatalf("GetSourceState: %v", err)
	}
}
