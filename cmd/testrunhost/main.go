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

package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"github.com/drasi-project/e2e-test-framework/internal/config"
	"github.com/drasi-project/e2e-test-framework/internal/host"
)

var (
	configPath    string
	addr          string
	summaryRoot   string
	summaryCron   string
	webhookAddr   string
	webhookSecret string
	webhookTest   string
	webhookRun    string
)

func main() {
	flag.StringVar(&configPath, "config", "testrunhost.yaml", "Test run host config file")
	flag.StringVar(&addr, "addr", ":28919", "Control surface listening address")
	flag.StringVar(&summaryRoot, "summary-root", "./test_runs", "Root directory for periodic run summary snapshots")
	flag.StringVar(&summaryCron, "summary-cron", "@every 30s", "Cron spec for the run summary flush")
	flag.StringVar(&webhookAddr, "webhook-addr", "", "If set, listen here for GitHub push webhooks that start a test run")
	flag.StringVar(&webhookSecret, "webhook-secret", "", "GitHub webhook secret")
	flag.StringVar(&webhookTest, "webhook-test", "", "Test name to start on a received push, when -webhook-addr is set")
	flag.StringVar(&webhookRun, "webhook-run", "", "Run name to start on a received push, when -webhook-addr is set")
	flag.Parse()

	zl, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer zl.Sync()
	log := zl.Sugar()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalw("testrunhost: loading config failed", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h, err := config.Build(ctx, cfg, log)
	if err != nil {
		log.Fatalw("testrunhost: building host from config failed", "error", err)
	}
	if err := h.InitializeSources(); err != nil {
		log.Fatalw("testrunhost: auto-start failed", "error", err)
	}

	summary := host.NewSummaryWriter(h, summaryRoot)
	if err := summary.Start(summaryCron); err != nil {
		log.Fatalw("testrunhost: scheduling summary writer failed", "error", err)
	}
	defer summary.Stop()

	controlServer := &http.Server{
		Addr:         addr,
		Handler:      newControlRouter(h),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	var webhookServer *http.Server
	if webhookAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/webhook", newPushWebhook(h, []byte(webhookSecret), webhookTest, webhookRun, log))
		webhookServer = &http.Server{
			Addr:         webhookAddr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  15 * time.Second,
		}
		go func() {
			log.Infow("testrunhost: webhook listening", "addr", webhookAddr)
			if err := webhookServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Errorw("testrunhost: webhook server failed", "error", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	go func() {
		<-quit
		log.Infow("testrunhost: shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		controlServer.SetKeepAlivesEnabled(false)
		_ = controlServer.Shutdown(shutdownCtx)
		if webhookServer != nil {
			_ = webhookServer.Shutdown(shutdownCtx)
		}
		cancel()
	}()

	log.Infow("testrunhost: control surface listening", "addr", addr)
	if err := controlServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalw("testrunhost: control server failed", "error", err)
	}
}
