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

package host

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/drasi-project/e2e-test-framework/internal/model"
)

// RunSnapshot is one Test Run's point-in-time status, the persisted
// artifact spec §6 describes under
// "<root>/test_runs/<repo>/<test>/<run>/<component>/...".
type RunSnapshot struct {
	Status    RunStatus         `json:"status"`
	Sources   map[string]string `json:"sources"`
	Reactions map[string]string `json:"reactions"`
	Servers   map[string]string `json:"drasi_servers"`
}

// SummaryWriter periodically snapshots every registered Test Run's status
// to root/test_runs/<repo>/<test>/<run>/summary.json, using
// github.com/robfig/cron/v3 the way a long-lived process schedules its own
// maintenance work (the same dependency choice the broader example pack
// uses for periodic background jobs).
type SummaryWriter struct {
	host *Host
	root string
	cr   *cron.Cron
}

func NewSummaryWriter(host *Host, root string) *SummaryWriter {
	return &SummaryWriter{host: host, root: root, cr: cron.New()}
}

// Start schedules a flush on spec (standard 5-field cron syntax or a
// descriptor such as "@every 1h"; a 6-field spec with seconds such as
// "*/10 * * * * *" is rejected, since the writer always uses cron.New()'s
// default minute-resolution parser and this package offers no way to
// supply another).
func (w *SummaryWriter) Start(spec string) error {
	_, err := w.cr.AddFunc(spec, func() {
		_ = w.FlushAll()
	})
	if err != nil {
		return errors.Wrap(err, "summary writer: schedule")
	}
	w.cr.Start()
	return nil
}

func (w *SummaryWriter) Stop() {
	<-w.cr.Stop().Done()
}

// FlushAll snapshots every registered Test Run to disk immediately.
func (w *SummaryWriter) FlushAll() error {
	for _, id := range w.host.ListTestRuns() {
		if err := w.flushOne(id); err != nil {
			return err
		}
	}
	return nil
}

func (w *SummaryWriter) flushOne(id model.TestRunId) error {
	status, err := w.host.GetTestRunState(id)
	if err != nil {
		return err
	}
	snap := RunSnapshot{
		Status:    status,
		Sources:   map[string]string{},
		Reactions: map[string]string{},
		Servers:   map[string]string{},
	}
	for sourceID, entry := range w.host.sourcesOf(id) {
		snap.Sources[sourceID.Source] = entry.gen.State().String()
	}
	for reactionID, entry := range w.host.reactionsOf(id) {
		snap.Reactions[reactionID.Reaction] = string(entry.h.Status())
	}
	for serverID, entry := range w.host.serversOf(id) {
		snap.Servers[serverID.Server] = string(entry.api.State())
	}

	dir := filepath.Join(w.root, "test_runs", id.Repo, id.Test, id.Run)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "summary writer: mkdir")
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return errors.Wrap(err, "summary writer: marshal")
	}
	if err := os.WriteFile(filepath.Join(dir, "summary.json"), data, 0o644); err != nil {
		return errors.Wrap(err, "summary writer: write")
	}
	return nil
}
