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
	"sync"

	"go.uber.org/zap"

	"github.com/drasi-project/e2e-test-framework/internal/batch"
	"github.com/drasi-project/e2e-test-framework/internal/model"
)

// AdaptiveHTTPConfig parameterises the Adaptive HTTP Dispatcher (spec
// §4.2): an HTTPDispatcher fed through an internal.batch.Batcher.
type AdaptiveHTTPConfig struct {
	HTTP    HTTPConfig
	Batcher batch.Config
	InBuf   int
}

// AdaptiveHTTPDispatcher accumulates Dispatch calls on a bounded channel
// feeding a batch.Batcher, and POSTs whatever the batcher emits to the
// configured endpoint (path "/batch" unless one is set), falling back to a
// per-event POST if Config.HTTP.Batch is false (spec §4.2).
type AdaptiveHTTPDispatcher struct {
	inner   *HTTPDispatcher
	batcher *batch.Batcher
	log     *zap.SugaredLogger

	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	lastErr error
}

// NewAdaptiveHTTPDispatcher constructs and starts the batcher's
// background goroutine. The caller's ctx bounds the dispatcher's whole
// lifetime; Close also stops the loop.
func NewAdaptiveHTTPDispatcher(ctx context.Context, cfg AdaptiveHTTPConfig, log *zap.SugaredLogger) (*AdaptiveHTTPDispatcher, error) {
	httpCfg := cfg.HTTP
	if httpCfg.Batch && httpCfg.Path == "" {
		httpCfg.Path = "/batch"
	}
	inner, err := NewHTTPDispatcher(httpCfg, log)
	if err != nil {
		return nil, err
	}

	b := batch.New(cfg.Batcher, cfg.InBuf)
	runCtx, cancel := context.WithCancel(ctx)
	d := &AdaptiveHTTPDispatcher{
		inner:   inner,
		batcher: b,
		log:     log,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go b.Run(runCtx, true)
	go d.drain(runCtx)
	return d, nil
}

// drain posts every batch the batcher emits until Out closes.
func (d *AdaptiveHTTPDispatcher) drain(ctx context.Context) {
	defer close(d.done)
	for batchItems := range d.batcher.Out {
		events := make([]model.SourceChangeEvent, len(batchItems))
		for i, item := range batchItems {
			events[i] = item.(model.SourceChangeEvent)
		}
		if err := d.inner.Dispatch(ctx, events); err != nil {
			d.mu.Lock()
			d.lastErr = err
			d.mu.Unlock()
			d.log.Warnw("adaptive http dispatcher: batch post failed", "error", err)
		}
	}
}

// Dispatch enqueues events onto the batcher's input channel; it does not
// block on the HTTP round trip, matching the back-pressure point named in
// spec §5 (the bounded In channel).
func (d *AdaptiveHTTPDispatcher) Dispatch(ctx context.Context, events []model.SourceChangeEvent) error {
	for _, ev := range events {
		select {
		case d.batcher.In <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	d.mu.Lock()
	err := d.lastErr
	d.lastErr = nil
	d.mu.Unlock()
	return err
}

func (d *AdaptiveHTTPDispatcher) Close(ctx context.Context) error {
	close(d.batcher.In)
	d.cancel()
	select {
	case <-d.done:
	case <-ctx.Done():
	}
	return d.inner.Close(ctx)
}
