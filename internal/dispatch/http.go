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
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/drasi-project/e2e-test-framework/internal/model"
)

// HTTPConfig parameterises the HTTP Dispatcher (spec §4.2).
type HTTPConfig struct {
	BaseURL string
	Path    string // defaults to "/events"
	Batch   bool   // false posts one event per request
	Timeout time.Duration
}

func (c HTTPConfig) withDefaults() HTTPConfig {
	if c.Path == "" {
		c.Path = "/events"
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	return c
}

// HTTPDispatcher POSTs events as JSON, one request per event or one
// request per batch depending on Config.Batch. Grounded on the teacher's
// ServerRunner.Submit (core/runner.go): url.Parse + path.Join + a plain
// http.Client, generalized with a per-request timeout.
type HTTPDispatcher struct {
	cfg    HTTPConfig
	client *http.Client
	log    *zap.SugaredLogger
	target *url.URL
}

func NewHTTPDispatcher(cfg HTTPConfig, log *zap.SugaredLogger) (*HTTPDispatcher, error) {
	cfg = cfg.withDefaults()
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "http dispatcher: parse base url")
	}
	u.Path = path.Join(u.Path, cfg.Path)
	return &HTTPDispatcher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log,
		target: u,
	}, nil
}

func (d *HTTPDispatcher) Dispatch(ctx context.Context, events []model.SourceChangeEvent) error {
	if d.cfg.Batch {
		return d.post(ctx, events)
	}
	for _, ev := range events {
		if err := d.post(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

func (d *HTTPDispatcher) post(ctx context.Context, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "http dispatcher: marshal")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.target.String(), bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "http dispatcher: build request")
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := d.client.Do(req)
	if err != nil {
		return model.Errorf(model.ClassTransport, "", "http dispatcher: request to %s failed: %v", d.target, err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return model.Errorf(model.ClassTransport, "", "http dispatcher: %s returned %s", d.target, res.Status)
	}
	return nil
}

func (d *HTTPDispatcher) Close(ctx context.Context) error {
	d.client.CloseIdleConnections()
	return nil
}
