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

// Package scripted implements the scripted playback back-end: a folder of
// JSON-lines script files enumerated lexicographically and replayed as
// Source Change Events.
package scripted

import (
	"bufio"
	"context"
	"io/ioutil"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/go-git/go-git/v5"
	"github.com/pkg/errors"

	"github.com/drasi-project/e2e-test-framework/internal/model"
)

// Folder enumerates a scripted source's files lexicographically and
// streams their records in order. If RemoteURL is set, Fetch clones it
// into a temp dir, the same way the dispatcher's runner pool fetches a
// repository before running its tests; nothing calls Fetch implicitly.
type Folder struct {
	Dir       string
	RemoteURL string
}

// Fetch clones RemoteURL into a fresh temp directory and returns it,
// leaving Dir untouched so callers can still use a purely local folder.
func (f *Folder) Fetch(tmpRoot, name string) (string, error) {
	dir, err := ioutil.TempDir(tmpRoot, name)
	if err != nil {
		return "", errors.Wrap(err, "scripted: create temp clone dir")
	}
	_, err = git.PlainClone(dir, false, &git.CloneOptions{URL: f.RemoteURL})
	if err != nil {
		return "", errors.Wrap(err, "scripted: clone remote script folder")
	}
	return dir, nil
}

// ListFiles returns the folder's script files, ordered by filename
// (spec §4.1: "enumerated lexicographically").
func ListFiles(dir string) ([]string, error) {
	entries, err := ioutil.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "scripted: list folder")
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		files = append(files, path.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// Backend implements source.Backend by replaying records from a folder's
// files, converting SourceChange records to events and honouring the
// Header's start_time and Pause records along the way.
type Backend struct {
	dir           string
	files         []string
	pauseSuspends bool

	fileIdx   int
	reader    *bufio.Scanner
	current   *os.File
	startTime uint64
	finished  bool
	paused    bool
}

// NewBackend opens a scripted backend rooted at dir. pauseSuspends
// selects whether embedded PauseCommand records suspend playback
// (awaiting an external Start) or are ignored.
func NewBackend(dir string, pauseSuspends bool) (*Backend, error) {
	files, err := ListFiles(dir)
	if err != nil {
		return nil, err
	}
	b := &Backend{dir: dir, files: files, pauseSuspends: pauseSuspends}
	if err := b.openNext(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Backend) openNext() error {
	if b.current != nil {
		b.current.Close()
		b.current = nil
	}
	if b.fileIdx >= len(b.files) {
		b.finished = true
		return nil
	}
	f, err := os.Open(b.files[b.fileIdx])
	if err != nil {
		return errors.Wrapf(err, "scripted: open %s", filepath.Base(b.files[b.fileIdx]))
	}
	b.fileIdx++
	b.current = f
	b.reader = bufio.NewScanner(f)
	b.reader.Buffer(make([]byte, 64*1024), 4*1024*1024)
	return nil
}

// Next implements source.Backend.
func (b *Backend) Next(ctx context.Context) (model.SourceChangeEvent, uint64, bool, error) {
	for {
		if b.finished {
			return model.SourceChangeEvent{}, 0, false, nil
		}
		if !b.reader.Scan() {
			if err := b.reader.Err(); err != nil {
				return model.SourceChangeEvent{}, 0, false, errors.Wrap(err, "scripted: read line")
			}
			if err := b.openNext(); err != nil {
				return model.SourceChangeEvent{}, 0, false, err
			}
			continue
		}

		rec, err := model.DecodeScriptedRecord(b.reader.Bytes())
		if err != nil {
			return model.SourceChangeEvent{}, 0, false, errors.Wrap(err, "scripted: decode record")
		}

		switch rec.Kind {
		case model.RecordHeader:
			b.startTime = rec.StartTimeNs
			continue
		case model.RecordComment, model.RecordLabel, model.RecordNode, model.RecordRelation:
			continue
		case model.RecordPauseCommand:
			if b.pauseSuspends {
				b.paused = true
				return model.SourceChangeEvent{}, 0, false, nil
			}
			continue
		case model.RecordFinish:
			b.finished = true
			return model.SourceChangeEvent{}, 0, false, nil
		case model.RecordSourceChange:
			if rec.Change == nil {
				return model.SourceChangeEvent{}, 0, false, errors.New("scripted: source-change record missing change payload")
			}
			ts := b.startTime + rec.OffsetNs
			return *rec.Change, ts, true, nil
		default:
			return model.SourceChangeEvent{}, 0, false, errors.Errorf("scripted: unknown record kind %q", rec.Kind)
		}
	}
}

// Reset rewinds to the first file, for Paused' reinitialisation.
func (b *Backend) Reset() error {
	if b.current != nil {
		b.current.Close()
		b.current = nil
	}
	b.fileIdx = 0
	b.finished = false
	b.paused = false
	b.startTime = 0
	return b.openNext()
}

// Close releases the currently open file handle.
func (b *Backend) Close() error {
	if b.current != nil {
		return b.current.Close()
	}
	return nil
}

// BootstrapRecords enumerates Node/Relation records from every file for
// bootstrap enumeration, filtered by label intersection with the
// requested sets (spec §6 Bootstrap API).
func BootstrapRecords(dir string, nodeLabels, relLabels map[string]bool) ([]model.ScriptedRecord, error) {
	files, err := ListFiles(dir)
	if err != nil {
		return nil, err
	}
	var out []model.ScriptedRecord
	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrapf(err, "bootstrap: open %s", path)
		}
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			rec, err := model.DecodeScriptedRecord(scanner.Bytes())
			if err != nil {
				f.Close()
				return nil, errors.Wrap(err, "bootstrap: decode record")
			}
			switch rec.Kind {
			case model.RecordNode:
				if rec.Payload != nil && labelsIntersect(rec.Payload.Labels, nodeLabels) {
					out = append(out, rec)
				}
			case model.RecordRelation:
				if rec.Payload != nil && labelsIntersect(rec.Payload.Labels, relLabels) {
					out = append(out, rec)
				}
			}
		}
		f.Close()
		if err := scanner.Err(); err != nil {
			return nil, errors.Wrap(err, "bootstrap: scan")
		}
	}
	return out, nil
}

func labelsIntersect(labels []string, want map[string]bool) bool {
	if len(want) == 0 {
		return true
	}
	for _, l := range labels {
		if want[l] {
			return true
		}
	}
	return false
}
