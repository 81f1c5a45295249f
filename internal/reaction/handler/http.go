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

// Package handler holds the concrete Reaction Output Handler back-ends:
// HTTP, gRPC and the in-process Drasi Server Channel (spec §4.4).
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/drasi-project/e2e-test-framework/internal/model"
	"github.com/drasi-project/e2e-test-framework/internal/reaction"
)

// HTTPConfig configures the HTTP Reaction Output Handler.
type HTTPConfig struct {
	Addr string
	Path string
	// CorrelationHeader, if set, is read for the sequence number before
	// falling back to the body's "sequence" field.
	CorrelationHeader string
}

func (c HTTPConfig) withDefaults() HTTPConfig {
	if c.Path == "" {
		c.Path = "/"
	}
	return c
}

// HTTPHandler binds a host:port and accepts any method/path as a reaction
// callback (spec §4.4). Batch expansion and reaction-type/sequence
// inference live in serve.
type HTTPHandler struct {
	*reaction.StateMachine
	cfg      HTTPConfig
	log      *zap.SugaredLogger
	server   *http.Server
	listener net.Listener
}

func NewHTTPHandler(cfg HTTPConfig, log *zap.SugaredLogger) *HTTPHandler {
	cfg = cfg.withDefaults()
	h := &HTTPHandler{StateMachine: reaction.NewStateMachine(256), cfg: cfg, log: log}
	router := chi.NewRouter()
	router.Handle("/*", http.HandlerFunc(h.serve))
	h.server = &http.Server{Handler: router}
	return h
}

func (h *HTTPHandler) Init() error {
	if err := h.TransitionInit(); err != nil {
		return err
	}
	ln, err := net.Listen("tcp", h.cfg.Addr)
	if err != nil {
		wrapped := model.Errorf(model.ClassTransport, "", "reaction http handler: bind %s: %v", h.cfg.Addr, err)
		h.Fail(wrapped)
		return wrapped
	}
	h.listener = ln
	return nil
}

func (h *HTTPHandler) Start() error {
	if err := h.TransitionStart(); err != nil {
		return err
	}
	go func() {
		if err := h.server.Serve(h.listener); err != nil && err != http.ErrServerClosed {
			h.Fail(model.Errorf(model.ClassTransport, "", "reaction http handler: serve: %v", err))
		}
	}()
	return nil
}

func (h *HTTPHandler) Pause() error { return h.TransitionPause() }

func (h *HTTPHandler) Stop() error {
	if err := h.TransitionStop(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), reaction.CloseTimeout)
	defer cancel()
	return h.server.Shutdown(ctx)
}

type batchItem struct {
	QueryId string            `json:"query_id"`
	Results []json.RawMessage `json:"results"`
}

func (h *HTTPHandler) serve(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	r.Body.Close()
	if err != nil {
		h.log.Errorw("reaction http handler: read body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	pathType := reactionTypeFromPath(r.URL.Path)

	if strings.Contains(r.URL.Path, "/batch") || looksLikeBatchArray(body) {
		items, err := parseBatch(body)
		if err != nil {
			h.log.Errorw("reaction http handler: parse batch", "error", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		for batchIdx, item := range items {
			for resultIdx, res := range item.Results {
				seq := batchSequence(batchIdx, resultIdx)
				h.Emit(reaction.Message{
					Sequence: seq,
					Invocation: &model.ReactionInvocation{
						QueryId:      item.QueryId,
						ReactionType: pathType,
						RequestBody:  json.RawMessage(res),
					},
				})
			}
		}
		w.WriteHeader(http.StatusOK)
		return
	}

	normalized := normalizeBody(body)
	rt := pathType
	if rt == "" {
		rt = reactionTypeFromBody(normalized)
	}
	h.Emit(reaction.Message{
		Sequence: sequenceFromRequest(r, h.cfg.CorrelationHeader, normalized),
		Invocation: &model.ReactionInvocation{
			ReactionType: rt,
			RequestBody:  normalized,
			Headers:      headersOf(r),
		},
	})
	w.WriteHeader(http.StatusOK)
}

func headersOf(r *http.Request) map[string]string {
	headers := make(map[string]string, len(r.Header))
	for k := range r.Header {
		headers[k] = r.Header.Get(k)
	}
	return headers
}

// normalizeBody wraps non-JSON bodies as {"raw": "<body>"} so RequestBody
// is always valid JSON (spec §4.4).
func normalizeBody(body []byte) json.RawMessage {
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	wrapped, _ := json.Marshal(map[string]string{"raw": string(body)})
	return json.RawMessage(wrapped)
}

func reactionTypeFromPath(path string) string {
	for _, suffix := range []string{"added", "updated", "deleted"} {
		if strings.HasSuffix(strings.TrimSuffix(path, "/"), "/"+suffix) {
			return suffix
		}
	}
	return ""
}

func reactionTypeFromBody(body json.RawMessage) string {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return ""
	}
	return probe.Type
}

func sequenceFromRequest(r *http.Request, correlationHeader string, body json.RawMessage) int64 {
	if correlationHeader != "" {
		if v := r.Header.Get(correlationHeader); v != "" {
			if seq, err := strconv.ParseInt(v, 10, 64); err == nil {
				return seq
			}
		}
	}
	var probe struct {
		Sequence int64 `json:"sequence"`
	}
	if err := json.Unmarshal(body, &probe); err == nil {
		return probe.Sequence
	}
	return 0
}

func looksLikeBatchArray(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return false
	}
	items, err := parseBatch(trimmed)
	if err != nil {
		return false
	}
	for _, it := range items {
		if it.Results != nil {
			return true
		}
	}
	return false
}

func parseBatch(body []byte) ([]batchItem, error) {
	var items []batchItem
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, err
	}
	return items, nil
}
