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

package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/drasi-project/e2e-test-framework/internal/model"
)

// ConsoleDispatcher prints one line per event to a writer (stdout by
// default). It never fails a dispatch on a write error; it logs instead,
// matching the teacher's "log, never crash the loop" style in
// core/pool.go's ForwardToRunner.
type ConsoleDispatcher struct {
	out io.Writer
	log *zap.SugaredLogger
	mu  sync.Mutex
}

func NewConsoleDispatcher(out io.Writer, log *zap.SugaredLogger) *ConsoleDispatcher {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleDispatcher{out: out, log: log}
}

func (d *ConsoleDispatcher) Dispatch(ctx context.Context, events []model.SourceChangeEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, ev := range events {
		line, err := json.Marshal(ev)
		if err != nil {
			d.log.Warnw("console dispatcher: marshal event", "error", err)
			continue
		}
		fmt.Fprintln(d.out, string(line))
	}
	return nil
}

func (d *ConsoleDispatcher) Close(ctx context.Context) error { return nil }

// JsonlFileDispatcher appends one JSON line per event to a file, rotating
// to a new numbered file once MaxLines is exceeded (spec §4.2, reusing
// §4.7's rotation rule).
type JsonlFileDispatcher struct {
	pathPrefix string
	maxLines   int
	log        *zap.SugaredLogger

	mu      sync.Mutex
	file    *os.File
	lines   int
	fileSeq int
}

// NewJsonlFileDispatcher opens (or creates) pathPrefix.0.jsonl as the
// first rotation. maxLines <= 0 disables rotation.
func NewJsonlFileDispatcher(pathPrefix string, maxLines int, log *zap.SugaredLogger) (*JsonlFileDispatcher, error) {
	d := &JsonlFileDispatcher{pathPrefix: pathPrefix, maxLines: maxLines, log: log}
	if err := d.rotate(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *JsonlFileDispatcher) rotate() error {
	if d.file != nil {
		d.file.Close()
	}
	name := fmt.Sprintf("%s.%d.jsonl", d.pathPrefix, d.fileSeq)
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrapf(err, "jsonl dispatcher: open %s", name)
	}
	d.file = f
	d.lines = 0
	d.fileSeq++
	return nil
}

func (d *JsonlFileDispatcher) Dispatch(ctx context.Context, events []model.SourceChangeEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, ev := range events {
		line, err := json.Marshal(ev)
		if err != nil {
			d.log.Warnw("jsonl dispatcher: marshal event", "error", err)
			continue
		}
		if _, err := d.file.Write(append(line, '\n')); err != nil {
			return errors.Wrap(err, "jsonl dispatcher: write")
		}
		d.lines++
		if d.maxLines > 0 && d.lines >= d.maxLines {
			if err := d.rotate(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *JsonlFileDispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}
