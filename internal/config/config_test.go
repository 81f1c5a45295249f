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
	"os"
	"path/filepath"
	"testing"
)

const sampleConfig = `
runs:
  - repo: drasi
    test: smoke
    run: run-1
    drasi_servers:
      - name: embedded-1
        embedded: true
        start_immediately: true
    reactions:
      - id: r1
        channel:
          server_id: embedded-1
        loggers:
          - console: {}
    sources:
      - id: s1
        time_mode: recorded
        spacing_mode: recorded
        model:
          stock_count: 3
          seed: 1
`

func TestLoadParsesSampleConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "testrunhost.yaml")
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(cfg.Runs))
	}
	run := cfg.Runs[0]
	if run.Repo != "drasi" || run.Test != "smoke" || run.Run != "run-1" {
		t.Fatalf("unexpected run id: %+v", run)
	}
	if len(run.DrasiServers) != 1 || !run.DrasiServers[0].Embedded {
		t.Fatalf("expected one embedded drasi server, got %+v", run.DrasiServers)
	}
	if len(run.Reactions) != 1 || run.Reactions[0].Channel == nil || run.Reactions[0].Channel.ServerId != "embedded-1" {
		t.Fatalf("expected one channel reaction, got %+v", run.Reactions)
	}
	if len(run.Sources) != 1 || run.Sources[0].Model == nil || run.Sources[0].Model.StockCount != 3 {
		t.Fatalf("expected one model source, got %+v", run.Sources)
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error loading a missing config file")
	}
}
