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

// Package batch merges an event stream into size/latency-bounded batches,
// adjusting both targets under load when adaptive mode is enabled.
package batch

import (
	"context"
	"sync"
	"time"
)

// Config parameterises an Adaptive Batcher (spec §4.3).
type Config struct {
	MinBatch        int
	MaxBatch        int
	MinWait         time.Duration
	MaxWait         time.Duration
	AdaptiveEnabled bool

	// WindowSize is the sliding window used to sample throughput when
	// AdaptiveEnabled is set. Zero selects a 1s default.
	WindowSize time.Duration
}

func (c Config) withDefaults() Config {
	if c.MinBatch <= 0 {
		c.MinBatch = 1
	}
	if c.MaxBatch < c.MinBatch {
		c.MaxBatch = c.MinBatch
	}
	if c.MinWait <= 0 {
		c.MinWait = 10 * time.Millisecond
	}
	if c.MaxWait < c.MinWait {
		c.MaxWait = c.MinWait
	}
	if c.WindowSize <= 0 {
		c.WindowSize = time.Second
	}
	return c
}

// Batcher accumulates events arriving on In and emits batches on Out.
// Run owns both channels for its lifetime; callers send to In and range
// over Out, closing the input to drain and stop the batcher.
type Batcher struct {
	cfg Config

	In  chan interface{}
	Out chan []interface{}

	mu            sync.Mutex
	currentTarget int
	currentWait   time.Duration

	windowStart time.Time
	windowCount int
}

// New constructs a Batcher. inBuf sizes the bounded input channel, which
// is the dispatcher's primary back-pressure point (spec §5).
func New(cfg Config, inBuf int) *Batcher {
	cfg = cfg.withDefaults()
	if inBuf <= 0 {
		inBuf = 1
	}
	b := &Batcher{
		cfg: cfg,
		In:  make(chan interface{}, inBuf),
		Out: make(chan []interface{}),
	}
	if cfg.AdaptiveEnabled {
		// Ramp up from the conservative end under sustained load rather
		// than starting maxed out.
		b.currentTarget = cfg.MinBatch
		b.currentWait = cfg.MaxWait
	} else {
		b.currentTarget = cfg.MaxBatch
		b.currentWait = cfg.MinWait
	}
	return b
}

// Run drives the accumulate/emit loop until ctx is cancelled or In is
// closed. flushOnShutdown, if true, emits one final non-empty batch
// containing whatever was pending when the loop exits; batches are
// otherwise never empty.
func (b *Batcher) Run(ctx context.Context, flushOnShutdown bool) {
	defer close(b.Out)

	pending := make([]interface{}, 0, b.cfg.MaxBatch)
	var timer *time.Timer
	var timerC <-chan time.Time

	armTimer := func() {
		wait := b.wait()
		if timer == nil {
			timer = time.NewTimer(wait)
		} else {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(wait)
		}
		timerC = timer.C
	}

	emit := func() {
		if len(pending) == 0 {
			return
		}
		batch := pending
		pending = make([]interface{}, 0, b.cfg.MaxBatch)
		b.observe(len(batch))
		select {
		case b.Out <- batch:
		case <-ctx.Done():
		}
	}

	for {
		if len(pending) == 0 {
			timerC = nil
		} else if timerC == nil {
			armTimer()
		}

		select {
		case ev, ok := <-b.In:
			if !ok {
				if flushOnShutdown {
					emit()
				}
				return
			}
			pending = append(pending, ev)
			if len(pending) >= b.target() {
				emit()
			}
		case <-timerC:
			emit()
		case <-ctx.Done():
			if flushOnShutdown {
				emit()
			}
			return
		}
	}
}

func (b *Batcher) target() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentTarget
}

func (b *Batcher) wait() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentWait
}

// observe records one emitted batch and, under adaptive mode, nudges
// currentTarget/currentWait toward max/min on sustained high throughput
// and back toward min/max on sustained low throughput. Steps are
// multiplicative and bounded to avoid oscillation.
func (b *Batcher) observe(size int) {
	if !b.cfg.AdaptiveEnabled {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	if b.windowStart.IsZero() {
		b.windowStart = now
	}
	b.windowCount += size

	elapsed := now.Sub(b.windowStart)
	if elapsed < b.cfg.WindowSize {
		return
	}
	rate := float64(b.windowCount) / elapsed.Seconds()
	b.windowStart = now
	b.windowCount = 0

	highThroughput := rate >= float64(b.cfg.MaxBatch)/b.cfg.MinWait.Seconds()*0.5
	if highThroughput {
		b.currentTarget = growTowards(b.currentTarget, b.cfg.MaxBatch, 1.25)
		b.currentWait = shrinkTowards(b.currentWait, b.cfg.MinWait, 0.8)
	} else {
		b.currentTarget = shrinkTowardsInt(b.currentTarget, b.cfg.MinBatch, 0.8)
		b.currentWait = growTowardsDuration(b.currentWait, b.cfg.MaxWait, 1.25)
	}
}

func growTowards(cur, max int, factor float64) int {
	next := int(float64(cur) * factor)
	if next > max {
		next = max
	}
	if next <= cur {
		next = cur + 1
	}
	if next > max {
		next = max
	}
	return next
}

func shrinkTowardsInt(cur, min int, factor float64) int {
	next := int(float64(cur) * factor)
	if next < min {
		next = min
	}
	if next >= cur && cur > min {
		next = cur - 1
	}
	if next < min {
		next = min
	}
	return next
}

func shrinkTowards(cur, min time.Duration, factor float64) time.Duration {
	next := time.Duration(float64(cur) * factor)
	if next < min {
		next = min
	}
	return next
}

func growTowardsDuration(cur, max time.Duration, factor float64) time.Duration {
	next := time.Duration(float64(cur) * factor)
	if next > max {
		next = max
	}
	if next <= cur {
		next = cur + time.Millisecond
	}
	if next > max {
		next = max
	}
	return next
}

// CurrentTarget exposes the live adaptive target, for tests and metrics.
func (b *Batcher) CurrentTarget() int { return b.target() }

// CurrentWait exposes the live adaptive wait, for tests and metrics.
func (b *Batcher) CurrentWait() time.Duration { return b.wait() }
