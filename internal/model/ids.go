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

package model

import (
	"fmt"
	"strings"
)

// TestRunId is the (repo, test, run) tuple identifying one test run.
type TestRunId struct {
	Repo string
	Test string
	Run  string
}

func (id TestRunId) String() string {
	return strings.Join([]string{id.Repo, id.Test, id.Run}, ".")
}

// ParseTestRunID parses a dotted "repo.test.run" string. Parsing is total:
// any shape mismatch returns a descriptive Config error. Per spec §9's
// resolved open question, a missing id is a Config error, never minted
// from the current time.
func ParseTestRunID(s string) (TestRunId, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return TestRunId{}, Errorf(ClassConfig, "", "test run id %q must have exactly 3 dotted segments (repo.test.run), got %d", s, len(parts))
	}
	for i, p := range parts {
		if p == "" {
			return TestRunId{}, Errorf(ClassConfig, "", "test run id %q has an empty segment at position %d", s, i)
		}
	}
	return TestRunId{Repo: parts[0], Test: parts[1], Run: parts[2]}, nil
}

// TestRunSourceId identifies a source within a test run.
type TestRunSourceId struct {
	TestRunId
	Source string
}

func (id TestRunSourceId) String() string {
	return fmt.Sprintf("%s.%s", id.TestRunId, id.Source)
}

// ParseTestRunSourceID parses a dotted "repo.test.run.source" string.
func ParseTestRunSourceID(s string) (TestRunSourceId, error) {
	run, comp, err := splitComponentID(s)
	if err != nil {
		return TestRunSourceId{}, err
	}
	return TestRunSourceId{TestRunId: run, Source: comp}, nil
}

// TestRunReactionId identifies a reaction within a test run.
type TestRunReactionId struct {
	TestRunId
	Reaction string
}

func (id TestRunReactionId) String() string {
	return fmt.Sprintf("%s.%s", id.TestRunId, id.Reaction)
}

// ParseTestRunReactionID parses a dotted "repo.test.run.reaction" string.
func ParseTestRunReactionID(s string) (TestRunReactionId, error) {
	run, comp, err := splitComponentID(s)
	if err != nil {
		return TestRunReactionId{}, err
	}
	return TestRunReactionId{TestRunId: run, Reaction: comp}, nil
}

// TestRunDrasiServerId identifies an embedded Drasi server within a test run.
type TestRunDrasiServerId struct {
	TestRunId
	Server string
}

func (id TestRunDrasiServerId) String() string {
	return fmt.Sprintf("%s.%s", id.TestRunId, id.Server)
}

// ParseTestRunDrasiServerID parses a dotted "repo.test.run.server" string.
func ParseTestRunDrasiServerID(s string) (TestRunDrasiServerId, error) {
	run, comp, err := splitComponentID(s)
	if err != nil {
		return TestRunDrasiServerId{}, err
	}
	return TestRunDrasiServerId{TestRunId: run, Server: comp}, nil
}

func splitComponentID(s string) (TestRunId, string, error) {
	parts := strings.SplitN(s, ".", 4)
	if len(parts) != 4 {
		return TestRunId{}, "", Errorf(ClassConfig, "", "component id %q must have exactly 4 dotted segments (repo.test.run.component), got %d", s, len(parts))
	}
	for i, p := range parts {
		if p == "" {
			return TestRunId{}, "", Errorf(ClassConfig, "", "component id %q has an empty segment at position %d", s, i)
		}
	}
	return TestRunId{Repo: parts[0], Test: parts[1], Run: parts[2]}, parts[3], nil
}
