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

// Package host implements the Test Run Host: a process-wide registry of
// Test Runs, and of the sources/reactions/Drasi servers each run owns, with
// the command fan-out and late-binding auto-start sequence spec §4.8
// describes. Only Sources, Reactions and Drasi Servers are modelled as
// components here — the distilled control surface never names a Query as
// a sibling of Reaction, so no separate registry is built for one.
package host

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/drasi-project/e2e-test-framework/internal/clock"
	"github.com/drasi-project/e2e-test-framework/internal/dispatch"
	"github.com/drasi-project/e2e-test-framework/internal/host/drasiserver"
	"github.com/drasi-project/e2e-test-framework/internal/model"
	"github.com/drasi-project/e2e-test-framework/internal/reaction"
	"github.com/drasi-project/e2e-test-framework/internal/reaction/handler"
	"github.com/drasi-project/e2e-test-framework/internal/source"
)

// Status is the host's own process-wide lifecycle (spec §4.8).
type Status string

const (
	StatusInitialized Status = "Initialized"
	StatusRunning     Status = "Running"
	StatusError       Status = "Error"
)

// RunStatus is one Test Run's lifecycle (spec §3's "Test Run" concept):
// AddTestRun sets Initialized, starting the run sets Running and stopping
// it sets Stopped. Starting does not check the current status, so a
// Stopped run can be started again; no code path sets RunError.
type RunStatus string

const (
	RunInitialized RunStatus = "Initialized"
	RunRunning     RunStatus = "Running"
	RunStopped     RunStatus = "Stopped"
	RunError       RunStatus = "Error"
)

type run struct {
	id     model.TestRunId
	status RunStatus
}

type sourceEntry struct {
	runId            model.TestRunId
	gen              *source.Generator
	cancel           context.CancelFunc
	startImmediately bool
}

type reactionEntry struct {
	runId            model.TestRunId
	h                reaction.Handler
	observer         *reaction.Observer
	loggers          []reaction.Logger
	triggers         []reaction.StopTrigger
	cancel           context.CancelFunc
	startImmediately bool
}

type serverEntry struct {
	runId            model.TestRunId
	name             string
	api              drasiserver.API
	startImmediately bool
}

// Host is the Test Run Host: a process-wide registry wired as the
// dispatch.HandleRegistry and handler.HandleRegistry collaborator used by
// in-process Channel dispatchers/handlers. Unlike the Rust original, Go
// lets a *Host exist before its registries are populated, so every
// component receives the live registry reference directly at
// construction time; the only remaining "late binding" work is the
// auto-start ordering InitializeSources/StartTestRun performs.
type Host struct {
	mu     sync.RWMutex
	status Status
	errMsg string

	runs      map[model.TestRunId]*run
	sources   map[model.TestRunSourceId]*sourceEntry
	reactions map[model.TestRunReactionId]*reactionEntry
	servers   map[model.TestRunDrasiServerId]*serverEntry

	// serversByName indexes servers by their bare name for the
	// dispatch.HandleRegistry/handler.HandleRegistry resolution calls,
	// which identify a server by the short id a source/reaction config
	// names, not by its fully-qualified TestRunDrasiServerId.
	serversByName map[string]*serverEntry

	log *zap.SugaredLogger
}

func New(log *zap.SugaredLogger) *Host {
	return &Host{
		status:        StatusInitialized,
		runs:          make(map[model.TestRunId]*run),
		sources:       make(map[model.TestRunSourceId]*sourceEntry),
		reactions:     make(map[model.TestRunReactionId]*reactionEntry),
		servers:       make(map[model.TestRunDrasiServerId]*serverEntry),
		serversByName: make(map[string]*serverEntry),
		log:           log,
	}
}

func (h *Host) Status() Status {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

// fail moves the host to Error; every subsequent command short-circuits
// with a descriptive refusal (spec §4.8).
func (h *Host) fail(cause error) error {
	h.mu.Lock()
	h.status = StatusError
	h.errMsg = cause.Error()
	h.mu.Unlock()
	if h.log != nil {
		h.log.Errorw("test run host failed", "error", cause)
	}
	return cause
}

func (h *Host) checkNotFailed() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.status == StatusError {
		return model.Errorf(model.ClassFatal, string(h.status), "test run host is in Error: %s", h.errMsg)
	}
	return nil
}

// --- Test Run registry ---------------------------------------------------

func (h *Host) AddTestRun(id model.TestRunId) error {
	if err := h.checkNotFailed(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.runs[id]; ok {
		return model.Errorf(model.ClassConfig, "", "test run %s already exists", id)
	}
	h.runs[id] = &run{id: id, status: RunInitialized}
	return nil
}

func (h *Host) ListTestRuns() []model.TestRunId {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]model.TestRunId, 0, len(h.runs))
	for id := range h.runs {
		ids = append(ids, id)
	}
	return ids
}

func (h *Host) GetTestRunState(id model.TestRunId) (RunStatus, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.runs[id]
	if !ok {
		return "", model.Errorf(model.ClassConfig, "", "test run %s not found", id)
	}
	return r.status, nil
}

// StartTestRun performs the auto-start sequence for every component
// registered under id that declared startImmediately: Drasi Servers,
// then Reactions, then Sources (spec §4.8 "producers last").
func (h *Host) StartTestRun(id model.TestRunId) error {
	if err := h.checkNotFailed(); err != nil {
		return err
	}
	h.mu.Lock()
	r, ok := h.runs[id]
	if !ok {
		h.mu.Unlock()
		return model.Errorf(model.ClassConfig, "", "test run %s not found", id)
	}
	h.mu.Unlock()

	for serverID, entry := range h.serversOf(id) {
		if entry.startImmediately {
			if err := entry.api.Start(context.Background()); err != nil {
				return h.fail(model.Errorf(model.ClassFatal, "", "drasi server %s failed to start: %v", serverID, err))
			}
		}
	}
	for reactionID, entry := range h.reactionsOf(id) {
		if entry.startImmediately {
			if err := entry.h.Start(); err != nil {
				return h.fail(model.Errorf(model.ClassFatal, "", "reaction %s failed to start: %v", reactionID, err))
			}
		}
	}
	for sourceID, entry := range h.sourcesOf(id) {
		if entry.startImmediately {
			if err := entry.gen.Start(); err != nil {
				return h.fail(model.Errorf(model.ClassFatal, "", "source %s failed to start: %v", sourceID, err))
			}
		}
	}

	h.mu.Lock()
	r.status = RunRunning
	h.mu.Unlock()
	return nil
}

// StopTestRun stops every component owned by id and marks the run
// Stopped.
func (h *Host) StopTestRun(id model.TestRunId) error {
	h.mu.Lock()
	r, ok := h.runs[id]
	h.mu.Unlock()
	if !ok {
		return model.Errorf(model.ClassConfig, "", "test run %s not found", id)
	}

	for _, entry := range h.sourcesOf(id) {
		_ = entry.gen.Stop()
		if entry.cancel != nil {
			entry.cancel()
		}
	}
	for _, entry := range h.reactionsOf(id) {
		_ = entry.h.Stop()
		if entry.cancel != nil {
			entry.cancel()
		}
	}
	for _, entry := range h.serversOf(id) {
		_ = entry.api.Stop(context.Background())
	}

	h.mu.Lock()
	r.status = RunStopped
	h.mu.Unlock()
	return nil
}

// DeleteTestRun stops id if still active and removes it along with every
// component registered under it.
func (h *Host) DeleteTestRun(id model.TestRunId) error {
	h.mu.RLock()
	r, ok := h.runs[id]
	h.mu.RUnlock()
	if !ok {
		return model.Errorf(model.ClassConfig, "", "test run %s not found", id)
	}
	if r.status == RunRunning {
		if err := h.StopTestRun(id); err != nil {
			return err
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sourceID := range h.sources {
		if sourceID.TestRunId == id {
			delete(h.sources, sourceID)
		}
	}
	for reactionID := range h.reactions {
		if reactionID.TestRunId == id {
			delete(h.reactions, reactionID)
		}
	}
	for serverID, entry := range h.servers {
		if serverID.TestRunId == id {
			delete(h.serversByName, entry.name)
			delete(h.servers, serverID)
		}
	}
	delete(h.runs, id)
	return nil
}

func (h *Host) sourcesOf(id model.TestRunId) map[model.TestRunSourceId]*sourceEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[model.TestRunSourceId]*sourceEntry)
	for k, v := range h.sources {
		if k.TestRunId == id {
			out[k] = v
		}
	}
	return out
}

func (h *Host) reactionsOf(id model.TestRunId) map[model.TestRunReactionId]*reactionEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[model.TestRunReactionId]*reactionEntry)
	for k, v := range h.reactions {
		if k.TestRunId == id {
			out[k] = v
		}
	}
	return out
}

func (h *Host) serversOf(id model.TestRunId) map[model.TestRunDrasiServerId]*serverEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[model.TestRunDrasiServerId]*serverEntry)
	for k, v := range h.servers {
		if k.TestRunId == id {
			out[k] = v
		}
	}
	return out
}

// --- Drasi Server registry ------------------------------------------------

func (h *Host) AddDrasiServer(id model.TestRunDrasiServerId, api drasiserver.API, startImmediately bool) error {
	if err := h.checkNotFailed(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.servers[id]; ok {
		return model.Errorf(model.ClassConfig, "", "drasi server %s already exists", id)
	}
	entry := &serverEntry{runId: id.TestRunId, name: id.Server, api: api, startImmediately: startImmediately}
	h.servers[id] = entry
	h.serversByName[id.Server] = entry
	return nil
}

func (h *Host) GetDrasiServerState(id model.TestRunDrasiServerId) (drasiserver.State, error) {
	h.mu.RLock()
	entry, ok := h.servers[id]
	h.mu.RUnlock()
	if !ok {
		return "", model.Errorf(model.ClassConfig, "", "drasi server %s not found", id)
	}
	return entry.api.State(), nil
}

func (h *Host) DrasiServerStart(ctx context.Context, id model.TestRunDrasiServerId) error {
	entry, err := h.lookupServer(id)
	if err != nil {
		return err
	}
	return entry.api.Start(ctx)
}

func (h *Host) DrasiServerStop(ctx context.Context, id model.TestRunDrasiServerId) error {
	entry, err := h.lookupServer(id)
	if err != nil {
		return err
	}
	return entry.api.Stop(ctx)
}

func (h *Host) lookupServer(id model.TestRunDrasiServerId) (*serverEntry, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	entry, ok := h.servers[id]
	if !ok {
		return nil, model.Errorf(model.ClassConfig, "", "drasi server %s not found", id)
	}
	return entry, nil
}

// --- Source registry -------------------------------------------------------

// AddSource registers gen, scoped to ctx for its Run goroutine's lifetime.
// gen starts Paused; StartTestRun (or a direct SourceStart) transitions it.
func (h *Host) AddSource(ctx context.Context, id model.TestRunSourceId, gen *source.Generator, startImmediately bool) error {
	if err := h.checkNotFailed(); err != nil {
		return err
	}
	h.mu.Lock()
	if _, ok := h.sources[id]; ok {
		h.mu.Unlock()
		return model.Errorf(model.ClassConfig, "", "source %s already exists", id)
	}
	runCtx, cancel := context.WithCancel(ctx)
	h.sources[id] = &sourceEntry{runId: id.TestRunId, gen: gen, cancel: cancel, startImmediately: startImmediately}
	h.mu.Unlock()

	go gen.Run(runCtx)
	return nil
}

func (h *Host) lookupSource(id model.TestRunSourceId) (*sourceEntry, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	entry, ok := h.sources[id]
	if !ok {
		return nil, model.Errorf(model.ClassConfig, "", "source %s not found", id)
	}
	return entry, nil
}

func (h *Host) GetSourceState(id model.TestRunSourceId) (source.State, error) {
	entry, err := h.lookupSource(id)
	if err != nil {
		return 0, err
	}
	return entry.gen.State(), nil
}

func (h *Host) SourceStart(id model.TestRunSourceId) error {
	entry, err := h.lookupSource(id)
	if err != nil {
		return err
	}
	return entry.gen.Start()
}

func (h *Host) SourcePause(id model.TestRunSourceId) error {
	entry, err := h.lookupSource(id)
	if err != nil {
		return err
	}
	return entry.gen.Pause()
}

func (h *Host) SourceStop(id model.TestRunSourceId) error {
	entry, err := h.lookupSource(id)
	if err != nil {
		return err
	}
	return entry.gen.Stop()
}

func (h *Host) SourceReset(id model.TestRunSourceId) error {
	entry, err := h.lookupSource(id)
	if err != nil {
		return err
	}
	return entry.gen.Reset()
}

func (h *Host) SourceStep(id model.TestRunSourceId, n int) error {
	entry, err := h.lookupSource(id)
	if err != nil {
		return err
	}
	return entry.gen.Step(n)
}

func (h *Host) SourceSkip(id model.TestRunSourceId, n int) error {
	entry, err := h.lookupSource(id)
	if err != nil {
		return err
	}
	return entry.gen.Skip(n)
}

// --- Reaction registry ------------------------------------------------------

// AddReaction initialises hnd (Uninitialized -> Paused), wraps it in an
// Observer over loggers/triggers, and starts the observer's consumer loop
// scoped to ctx.
func (h *Host) AddReaction(ctx context.Context, id model.TestRunReactionId, hnd reaction.Handler, loggers []reaction.Logger, triggers []reaction.StopTrigger, clk clock.Clock, log *zap.SugaredLogger, startImmediately bool) error {
	if err := h.checkNotFailed(); err != nil {
		return err
	}
	h.mu.Lock()
	if _, ok := h.reactions[id]; ok {
		h.mu.Unlock()
		return model.Errorf(model.ClassConfig, "", "reaction %s already exists", id)
	}
	h.mu.Unlock()

	if err := hnd.Init(); err != nil {
		return model.Errorf(model.ClassFatal, "", "reaction %s failed to initialize: %v", id, err)
	}

	obs := reaction.NewObserver(hnd, loggers, triggers, clk, log)
	runCtx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.reactions[id] = &reactionEntry{
		runId:            id.TestRunId,
		h:                hnd,
		observer:         obs,
		loggers:          loggers,
		triggers:         triggers,
		cancel:           cancel,
		startImmediately: startImmediately,
	}
	h.mu.Unlock()

	go func() {
		if err := obs.Run(runCtx); err != nil && h.log != nil {
			h.log.Errorw("reaction observer stopped", "reaction", id.String(), "error", err)
		}
	}()
	return nil
}

func (h *Host) lookupReaction(id model.TestRunReactionId) (*reactionEntry, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	entry, ok := h.reactions[id]
	if !ok {
		return nil, model.Errorf(model.ClassConfig, "", "reaction %s not found", id)
	}
	return entry, nil
}

func (h *Host) GetReactionState(id model.TestRunReactionId) (reaction.HandlerStatus, error) {
	entry, err := h.lookupReaction(id)
	if err != nil {
		return "", err
	}
	return entry.h.Status(), nil
}

func (h *Host) ReactionStart(id model.TestRunReactionId) error {
	entry, err := h.lookupReaction(id)
	if err != nil {
		return err
	}
	if entry.observer.State() == reaction.ObserverPaused {
		if err := entry.observer.Reset(entry.loggers, entry.triggers); err != nil {
			return err
		}
	}
	return entry.h.Start()
}

func (h *Host) ReactionPause(id model.TestRunReactionId) error {
	entry, err := h.lookupReaction(id)
	if err != nil {
		return err
	}
	if err := entry.h.Pause(); err != nil {
		return err
	}
	return entry.observer.Pause()
}

func (h *Host) ReactionStop(id model.TestRunReactionId) error {
	entry, err := h.lookupReaction(id)
	if err != nil {
		return err
	}
	return entry.h.Stop()
}

// ReactionReset rebuilds the reaction's loggers/triggers from newLoggers/
// newTriggers (spec §4.5: "Reset requires Paused and rebuilds loggers and
// triggers from config").
func (h *Host) ReactionReset(id model.TestRunReactionId, newLoggers []reaction.Logger, newTriggers []reaction.StopTrigger) error {
	entry, err := h.lookupReaction(id)
	if err != nil {
		return err
	}
	if err := entry.observer.Reset(newLoggers, newTriggers); err != nil {
		return err
	}
	h.mu.Lock()
	entry.loggers = newLoggers
	entry.triggers = newTriggers
	h.mu.Unlock()
	return nil
}

// InitializeSources runs StartTestRun across every currently registered
// Test Run. Spec §4.8 describes a single whole-process late-binding step
// under this name; per-run auto-start composes it, since a Go *Host
// reference is already live on every component at construction time and
// the only remaining "late binding" work is this start ordering.
func (h *Host) InitializeSources() error {
	for _, id := range h.ListTestRuns() {
		if err := h.StartTestRun(id); err != nil {
			return err
		}
	}
	return nil
}

// --- dispatch.HandleRegistry / handler.HandleRegistry ----------------------

// ResolveSourceHandle satisfies dispatch.HandleRegistry by looking up the
// named Drasi Server and asking it for the source's in-process handle.
func (h *Host) ResolveSourceHandle(serverId, sourceId string) (dispatch.SUTInput, bool) {
	h.mu.RLock()
	entry, ok := h.serversByName[serverId]
	h.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return entry.api.GetSourceHandle(sourceId)
}

// ResolveReactionHandle satisfies handler.HandleRegistry symmetrically.
func (h *Host) ResolveReactionHandle(serverId, reactionId string) (handler.ResultHandle, bool) {
	h.mu.RLock()
	entry, ok := h.serversByName[serverId]
	h.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return entry.api.GetReactionHandle(reactionId)
}
