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
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/drasi-project/e2e-test-framework/internal/host"
	"github.com/drasi-project/e2e-test-framework/internal/model"
)

// newControlRouter is a collaborator, not the core's own transport: a thin
// chi surface over the Host's command fan-out (spec §4.8), for operators
// and CI to poll/drive a run without linking against the Go API directly.
func newControlRouter(h *host.Host) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Get("/status", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, map[string]string{"status": string(h.Status())})
	})

	r.Get("/test_runs", func(w http.ResponseWriter, req *http.Request) {
		runs := h.ListTestRuns()
		ids := make([]string, len(runs))
		for i, id := range runs {
			ids[i] = id.String()
		}
		writeJSON(w, ids)
	})

	r.Route("/test_runs/{repo}/{test}/{run}", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			id, err := testRunIDFromPath(req)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			state, err := h.GetTestRunState(id)
			if err != nil {
				http.Error(w, err.Error(), http.StatusNotFound)
				return
			}
			writeJSON(w, map[string]string{"status": string(state)})
		})

		r.Post("/start", func(w http.ResponseWriter, req *http.Request) {
			id, err := testRunIDFromPath(req)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if err := h.StartTestRun(id); err != nil {
				http.Error(w, err.Error(), http.StatusConflict)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})

		r.Post("/stop", func(w http.ResponseWriter, req *http.Request) {
			id, err := testRunIDFromPath(req)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if err := h.StopTestRun(id); err != nil {
				http.Error(w, err.Error(), http.StatusConflict)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})

		r.Delete("/", func(w http.ResponseWriter, req *http.Request) {
			id, err := testRunIDFromPath(req)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if err := h.DeleteTestRun(id); err != nil {
				http.Error(w, err.Error(), http.StatusConflict)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
	})

	return r
}

func testRunIDFromPath(req *http.Request) (model.TestRunId, error) {
	return model.TestRunId{
		Repo: chi.URLParam(req, "repo"),
		Test: chi.URLParam(req, "test"),
		Run:  chi.URLParam(req, "run"),
	}, nil
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
