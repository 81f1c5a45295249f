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

package handler

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/drasi-project/e2e-test-framework/internal/model"
	"github.com/drasi-project/e2e-test-framework/internal/reaction"
)

// QueryResult is one upstream query-result notification an embedded Drasi
// server's reaction handle hands to a subscriber.
type QueryResult struct {
	QueryId      string
	Sequence     int64
	ReactionType string
	Body         map[string]interface{}
}

// ResultHandle is an in-process reaction subscription endpoint, resolved
// from the host registry exactly as internal/dispatch's SUTInput is for
// channel dispatch. Subscribe registers fn to receive every QueryResult
// until the returned unsubscribe func is called.
type ResultHandle interface {
	Subscribe(fn func(QueryResult)) (unsubscribe func())
}

// HandleRegistry resolves an embedded Drasi server's reaction handle by
// (server_id, reaction_id), mirroring internal/dispatch.HandleRegistry.
type HandleRegistry interface {
	ResolveReactionHandle(serverId, reactionId string) (ResultHandle, bool)
}

// ChannelConfig configures the in-process Channel reaction handler.
type ChannelConfig struct {
	ServerId   string
	ReactionId string
	// PollEvery is how often Start retries the registry lookup while the
	// handle hasn't resolved yet. Defaults to 50ms.
	PollEvery time.Duration
}

// ChannelHandler subscribes to an in-process reaction handle looked up in
// the host registry (spec §4.4). Unlike channel dispatch, which buffers
// events pushed before the handle resolves, nothing can arrive here before
// a subscription exists, so there is no buffer/flush step: the "weak
// reference" lookup is simply retried until it succeeds.
type ChannelHandler struct {
	*reaction.StateMachine
	cfg      ChannelConfig
	registry HandleRegistry
	log      *zap.SugaredLogger

	cancel      context.CancelFunc
	unsubscribe func()
}

func NewChannelHandler(registry HandleRegistry, cfg ChannelConfig, log *zap.SugaredLogger) *ChannelHandler {
	return &ChannelHandler{StateMachine: reaction.NewStateMachine(256), cfg: cfg, registry: registry, log: log}
}

func (h *ChannelHandler) Init() error {
	return h.TransitionInit()
}

func (h *ChannelHandler) Start() error {
	if err := h.TransitionStart(); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go h.resolveAndSubscribe(ctx)
	return nil
}

func (h *ChannelHandler) resolveAndSubscribe(ctx context.Context) {
	interval := h.cfg.PollEvery
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if handle, ok := h.registry.ResolveReactionHandle(h.cfg.ServerId, h.cfg.ReactionId); ok {
			h.unsubscribe = handle.Subscribe(h.onResult)
			return
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func (h *ChannelHandler) onResult(res QueryResult) {
	body, _ := json.Marshal(res.Body)
	h.Emit(reaction.Message{
		Sequence: res.Sequence,
		Invocation: &model.ReactionInvocation{
			QueryId:      res.QueryId,
			ReactionType: res.ReactionType,
			RequestBody:  body,
		},
	})
}

func (h *ChannelHandler) Pause() error { return h.TransitionPause() }

func (h *ChannelHandler) Stop() error {
	if err := h.TransitionStop(); err != nil {
		return err
	}
	if h.cancel != nil {
		h.cancel()
	}
	if h.unsubscribe != nil {
		h.unsubscribe()
	}
	return nil
}
