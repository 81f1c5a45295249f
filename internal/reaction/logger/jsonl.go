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

package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/drasi-project/e2e-test-framework/internal/model"
	"github.com/drasi-project/e2e-test-framework/internal/reaction"
)

// JsonlFile appends one JSON line per record to a file, rotating to a new
// numbered file once MaxLines is exceeded. Same rotation idiom as
// internal/dispatch's JsonlFileDispatcher, re-expressed over
// ReactionHandlerRecord instead of SourceChangeEvent since the two
// packages must not import each other (internal/host is the only thing
// that wires both together).
type JsonlFile struct {
	pathPrefix string
	maxLines   int

	mu      sync.Mutex
	file    *os.File
	lines   int
	fileSeq int
}

func NewJsonlFile(pathPrefix string, maxLines int) (*JsonlFile, error) {
	l := &JsonlFile{pathPrefix: pathPrefix, maxLines: maxLines}
	if err := l.rotate(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *JsonlFile) rotate() error {
	if l.file != nil {
		l.file.Close()
	}
	name := fmt.Sprintf("%s.%d.jsonl", l.pathPrefix, l.fileSeq)
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrapf(err, "jsonl logger: open %s", name)
	}
	l.file = f
	l.lines = 0
	l.fileSeq++
	return nil
}

func (l *JsonlFile) Log(rec model.ReactionHandlerRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	line, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "jsonl logger: marshal record")
	}
	if _, err := l.file.Write(append(line, '\n')); err != nil {
		return errors.Wrap(err, "jsonl logger: write")
	}
	l.lines++
	if l.maxLines > 0 && l.lines >= l.maxLines {
		return l.rotate()
	}
	return nil
}

// EndTestRun closes the current file handle. It is idempotent: a second
// call finds file already nil and is a no-op.
func (l *JsonlFile) EndTestRun() (reaction.Summary, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return reaction.Summary{}, nil
	}
	err := l.file.Close()
	l.file = nil
	if err != nil {
		return reaction.Summary{}, errors.Wrap(err, "jsonl logger: close")
	}
	return reaction.Summary{}, nil
}
