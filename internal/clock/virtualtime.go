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

import "time"

// TimeMode selects how a source's virtual time tracks wall time.
type TimeMode int

const (
	TimeLive TimeMode = iota
	TimeRecorded
	TimeRebased
)

// VirtualTime tracks the two wall-clock extents a Source Change Generator
// maintains (spec §4.1): the virtual time of the event just released and
// of the event about to be released, plus the constant rebase offset.
// Rebased mode stores only that offset — wall_now is never persisted.
type VirtualTime struct {
	mode             TimeMode
	rebaseEpochNs    uint64
	rebaseAdjustment int64 // rebaseEpochNs - scripted ts of the first event, in ns

	current uint64
	next    uint64
	started bool
}

// NewVirtualTime constructs a tracker for the given mode. rebaseEpochNs is
// only meaningful when mode is TimeRebased.
func NewVirtualTime(mode TimeMode, rebaseEpochNs uint64) *VirtualTime {
	return &VirtualTime{mode: mode, rebaseEpochNs: rebaseEpochNs}
}

// Seed initializes virtual time on the first event. scriptedTsNs is the
// timestamp carried by the first scheduled event (meaningful under
// TimeRecorded/TimeRebased); wallNowNs is the clock's current time.
func (v *VirtualTime) Seed(scriptedTsNs, wallNowNs uint64) {
	switch v.mode {
	case TimeLive:
		v.current = wallNowNs
	case TimeRecorded:
		v.current = scriptedTsNs
	case TimeRebased:
		v.current = v.rebaseEpochNs
		v.rebaseAdjustment = int64(v.rebaseEpochNs) - int64(scriptedTsNs)
	}
	v.next = v.current
	v.started = true
}

// Advance computes the virtual time of the next scheduled event and
// returns the delay (possibly negative, callers must clamp) between it
// and the current virtual time.
func (v *VirtualTime) Advance(nextScriptedTsNs uint64) (delta time.Duration) {
	var nextVirtual uint64
	switch v.mode {
	case TimeLive:
		nextVirtual = nextScriptedTsNs // caller passes wall-clock-derived ts
	case TimeRecorded:
		nextVirtual = nextScriptedTsNs
	case TimeRebased:
		nextVirtual = uint64(int64(nextScriptedTsNs) + v.rebaseAdjustment)
	}
	delta = time.Duration(int64(nextVirtual) - int64(v.current))
	v.next = nextVirtual
	return delta
}

// Commit moves "current" to "next" once the scheduled event has been
// released to dispatchers.
func (v *VirtualTime) Commit() {
	v.current = v.next
}

// CurrentNs returns the virtual time of the most recently released event.
func (v *VirtualTime) CurrentNs() uint64 { return v.current }

// NextNs returns the virtual time computed for the event about to be
// released, i.e. the value Seed/Advance last set before Commit moves it
// into CurrentNs. Callers stamp this onto the outgoing event's ts_ns.
func (v *VirtualTime) NextNs() uint64 { return v.next }

// Started reports whether Seed has been called.
func (v *VirtualTime) Started() bool { return v.started }

// Reset returns the tracker to its pre-Seed state, as required by a
// generator's full Paused' reinitialisation (spec §4.1).
func (v *VirtualTime) Reset() {
	v.current = 0
	v.next = 0
	v.started = false
	v.rebaseAdjustment = 0
}
