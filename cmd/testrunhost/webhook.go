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

package main

import (
	"net/http"

	"github.com/google/go-github/v32/github"
	"go.uber.org/zap"

	"github.com/drasi-project/e2e-test-framework/internal/host"
	"github.com/drasi-project/e2e-test-framework/internal/model"
)

// newPushWebhook starts an existing, already-registered Test Run the
// moment its repository receives a push, the same GitHub-push trigger the
// teacher's agent used to enqueue a commit job
// (agent/handlers.go commitHandler), repointed at Host.StartTestRun
// instead of a CI queue. test/run are fixed per webhook since a push event
// only carries the repository, not which test/run pair to drive.
func newPushWebhook(h *host.Host, secret []byte, test, run string, log *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		payload, err := github.ValidatePayload(req, secret)
		if err != nil {
			log.Warnw("webhook: invalid payload", "error", err)
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
		defer req.Body.Close()

		event, err := github.ParseWebHook(github.WebHookType(req), payload)
		if err != nil {
			log.Warnw("webhook: could not parse event", "error", err)
			http.Error(w, "bad payload", http.StatusBadRequest)
			return
		}

		push, ok := event.(*github.PushEvent)
		if !ok {
			log.Infow("webhook: ignoring non-push event", "type", github.WebHookType(req))
			w.WriteHeader(http.StatusOK)
			return
		}

		repo := push.GetRepo().GetFullName()
		id := model.TestRunId{Repo: repo, Test: test, Run: run}
		if err := h.StartTestRun(id); err != nil {
			log.Errorw("webhook: start test run failed", "test_run", id, "error", err)
			http.Error(w, "could not start test run", http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}
