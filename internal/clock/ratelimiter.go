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

package clock

import (
	"context"

	"golang.org/x/time/rate"
)

// RateSpacer gates event release to at most r events/sec with a small
// burst allowance, for a generator's spacing_mode = Rate(r) (spec §4.1,
// §8 property 2: measured throughput over any 5s window stays within
// 5% of r).
type RateSpacer struct {
	limiter *rate.Limiter
}

// NewRateSpacer builds a token-bucket spacer. burst of 1 makes the
// bucket behave like a strict pacer; callers that want to tolerate
// short bursts of catch-up can pass a larger value.
func NewRateSpacer(eventsPerSecond float64, burst int) *RateSpacer {
	if burst < 1 {
		burst = 1
	}
	return &RateSpacer{limiter: rate.NewLimiter(rate.Limit(eventsPerSecond), burst)}
}

// Wait blocks until a token is available or ctx is cancelled.
func (s *RateSpacer) Wait(ctx context.Context) error {
	return s.limiter.Wait(ctx)
}

// SetRate adjusts the spacer's target rate in place. No code in this
// module calls it.
func (s *RateSpacer) SetRate(eventsPerSecond float64) {
	s.limiter.SetLimit(rate.Limit(eventsPerSecond))
}
