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

package config

import (
	"context"
	"os"

	"github.com/docker/docker/client"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/drasi-project/e2e-test-framework/internal/batch"
	"github.com/drasi-project/e2e-test-framework/internal/clock"
	"github.com/drasi-project/e2e-test-framework/internal/dispatch"
	"github.com/drasi-project/e2e-test-framework/internal/host"
	"github.com/drasi-project/e2e-test-framework/internal/host/drasiserver"
	"github.com/drasi-project/e2e-test-framework/internal/model"
	"github.com/drasi-project/e2e-test-framework/internal/reaction"
	"github.com/drasi-project/e2e-test-framework/internal/reaction/handler"
	"github.com/drasi-project/e2e-test-framework/internal/reaction/logger"
	"github.com/drasi-project/e2e-test-framework/internal/reaction/trigger"
	"github.com/drasi-project/e2e-test-framework/internal/source"
	"github.com/drasi-project/e2e-test-framework/internal/source/modelgen"
	"github.com/drasi-project/e2e-test-framework/internal/source/scripted"
)

// Build materialises a *host.Host from cfg: it creates every Test Run and
// registers its Drasi Servers, Reactions and Sources against it (in that
// order, so channel-backed dispatchers/handlers have a server to resolve),
// then hands the caller an unstarted host ready for host.InitializeSources.
func Build(ctx context.Context, cfg *HostConfig, log *zap.SugaredLogger) (*host.Host, error) {
	h := host.New(log)

	for _, run := range cfg.Runs {
		runID := model.TestRunId{Repo: run.Repo, Test: run.Test, Run: run.Run}
		if err := h.AddTestRun(runID); err != nil {
			return nil, errors.Wrapf(err, "config: add test run %s", runID)
		}
		for _, sc := range run.DrasiServers {
			if err := buildDrasiServer(h, runID, sc); err != nil {
				return nil, err
			}
		}
		for _, rc := range run.Reactions {
			if err := buildReaction(ctx, h, runID, rc, log); err != nil {
				return nil, err
			}
		}
		for _, sc := range run.Sources {
			if err := buildSource(ctx, h, runID, sc, log); err != nil {
				return nil, err
			}
		}
	}
	return h, nil
}

func buildDrasiServer(h *host.Host, runID model.TestRunId, sc DrasiServerConfig) error {
	serverID := model.TestRunDrasiServerId{TestRunId: runID, Server: sc.Name}
	var api drasiserver.API
	switch {
	case sc.Container != nil:
		cli, err := client.NewEnvClient()
		if err != nil {
			return errors.Wrapf(err, "config: drasi server %s docker client", sc.Name)
		}
		api = drasiserver.NewContainer(drasiserver.ContainerConfig{
			Image:    sc.Container.Image,
			Cmd:      sc.Container.Cmd,
			Endpoint: sc.Container.Endpoint,
		}, cli)
	case sc.RPC != nil:
		api = drasiserver.NewRPC(sc.RPC.Addr, sc.RPC.Endpoint)
	default:
		api = drasiserver.NewEmbedded()
	}
	if err := h.AddDrasiServer(serverID, api, sc.StartImmediately); err != nil {
		return errors.Wrapf(err, "config: add drasi server %s", serverID)
	}
	return nil
}

func buildReaction(ctx context.Context, h *host.Host, runID model.TestRunId, rc ReactionConfig, log *zap.SugaredLogger) error {
	reactionID := model.TestRunReactionId{TestRunId: runID, Reaction: rc.Id}

	var hnd reaction.Handler
	switch {
	case rc.Channel != nil:
		hnd = handler.NewChannelHandler(h, handler.ChannelConfig{
			ServerId:   rc.Channel.ServerId,
			ReactionId: rc.Id,
			PollEvery:  rc.Channel.PollEvery,
		}, log)
	case rc.GRPC != nil:
		hnd = handler.NewGRPCHandler(handler.GRPCConfig{Addr: rc.GRPC.Addr}, log)
	case rc.HTTP != nil:
		hnd = handler.NewHTTPHandler(handler.HTTPConfig{
			Addr:              rc.HTTP.Addr,
			Path:              rc.HTTP.Path,
			CorrelationHeader: rc.HTTP.CorrelationHeader,
		}, log)
	default:
		return errors.Errorf("config: reaction %s declares no handler", rc.Id)
	}

	loggers := make([]reaction.Logger, 0, len(rc.Loggers))
	for _, lc := range rc.Loggers {
		lg, err := buildLogger(runID.String(), lc)
		if err != nil {
			return errors.Wrapf(err, "config: reaction %s logger", rc.Id)
		}
		loggers = append(loggers, lg)
	}

	triggers := make([]reaction.StopTrigger, 0, len(rc.Triggers))
	for _, tc := range rc.Triggers {
		t, err := buildTrigger(tc)
		if err != nil {
			return errors.Wrapf(err, "config: reaction %s trigger", rc.Id)
		}
		triggers = append(triggers, t)
	}

	if err := h.AddReaction(ctx, reactionID, hnd, loggers, triggers, clock.System{}, log, rc.StartImmediately); err != nil {
		return errors.Wrapf(err, "config: add reaction %s", reactionID)
	}
	return nil
}

func batchConfig(c *AdaptiveHTTPDispatcherConfig) batch.Config {
	return batch.Config{
		MinBatch:        c.MinBatch,
		MaxBatch:        c.MaxBatch,
		MinWait:         c.MinWait,
		MaxWait:         c.MaxWait,
		AdaptiveEnabled: c.AdaptiveEnabled,
		WindowSize:      c.WindowSize,
	}
}

func buildLogger(testRunID string, lc LoggerConfig) (reaction.Logger, error) {
	switch {
	case lc.Jsonl != nil:
		return logger.NewJsonlFile(lc.Jsonl.PathPrefix, lc.Jsonl.MaxLines)
	case lc.Metrics != nil:
		return logger.NewMetrics(testRunID, lc.Metrics.SummaryPath, nil), nil
	default:
		return logger.NewConsole(os.Stdout), nil
	}
}

func buildTrigger(tc TriggerConfig) (reaction.StopTrigger, error) {
	switch {
	case tc.RecordCount != nil:
		return trigger.NewLatch(trigger.RecordCount{N: *tc.RecordCount}), nil
	case tc.RecordSequenceNumber != nil:
		return trigger.NewLatch(trigger.RecordSequenceNumber{S: *tc.RecordSequenceNumber}), nil
	default:
		return nil, errors.New("config: empty trigger entry")
	}
}

func buildSource(ctx context.Context, h *host.Host, runID model.TestRunId, sc SourceConfig, log *zap.SugaredLogger) error {
	sourceID := model.TestRunSourceId{TestRunId: runID, Source: sc.Id}

	var backend source.Backend
	switch {
	case sc.Scripted != nil:
		b, err := scripted.NewBackend(sc.Scripted.Dir, sc.Scripted.PauseSuspends)
		if err != nil {
			return errors.Wrapf(err, "config: source %s scripted backend", sc.Id)
		}
		backend = b
	case sc.Model != nil:
		backend = modelgen.NewStockBackend(modelgen.StockSettings{
			Seed:               sc.Model.Seed,
			StockCount:         sc.Model.StockCount,
			ChangeCount:        sc.Model.ChangeCount,
			SendInitialInserts: sc.Model.SendInitialInserts,
			IntervalMeanNs:     sc.Model.IntervalMeanNs,
			IntervalStdDevNs:   sc.Model.IntervalStdDevNs,
			IntervalMinNs:      sc.Model.IntervalMinNs,
			IntervalMaxNs:      sc.Model.IntervalMaxNs,
		})
	default:
		return errors.Errorf("config: source %s declares no backend", sc.Id)
	}

	dispatchers := make([]source.Dispatcher, 0, len(sc.Dispatchers))
	for _, dc := range sc.Dispatchers {
		d, err := buildDispatcher(ctx, h, sc.Id, dc, log)
		if err != nil {
			return errors.Wrapf(err, "config: source %s dispatcher", sc.Id)
		}
		dispatchers = append(dispatchers, d)
	}

	gen := source.New(source.Config{
		Id:                 sourceID,
		TimeMode:           parseTimeMode(sc.TimeMode),
		SpacingMode:        parseSpacingMode(sc.SpacingMode),
		RateEventsPerSec:   sc.RateEventsPerSec,
		RebaseEpochNs:      sc.RebaseEpochNs,
		SendInitialInserts: sc.Model != nil && sc.Model.SendInitialInserts,
	}, backend, clock.System{}, dispatchers, log)

	if err := h.AddSource(ctx, sourceID, gen, sc.StartImmediately); err != nil {
		return errors.Wrapf(err, "config: add source %s", sourceID)
	}
	return nil
}

func buildDispatcher(ctx context.Context, h *host.Host, sourceId string, dc DispatcherConfig, log *zap.SugaredLogger) (source.Dispatcher, error) {
	switch {
	case dc.Jsonl != nil:
		return dispatch.NewJsonlFileDispatcher(dc.Jsonl.PathPrefix, dc.Jsonl.MaxLines, log)
	case dc.HTTP != nil:
		return dispatch.NewHTTPDispatcher(dispatch.HTTPConfig{
			BaseURL: dc.HTTP.BaseURL,
			Path:    dc.HTTP.Path,
			Batch:   dc.HTTP.Batch,
			Timeout: dc.HTTP.Timeout,
		}, log)
	case dc.AdaptiveHTTP != nil:
		return dispatch.NewAdaptiveHTTPDispatcher(ctx, dispatch.AdaptiveHTTPConfig{
			HTTP: dispatch.HTTPConfig{
				BaseURL: dc.AdaptiveHTTP.HTTP.BaseURL,
				Path:    dc.AdaptiveHTTP.HTTP.Path,
				Batch:   dc.AdaptiveHTTP.HTTP.Batch,
				Timeout: dc.AdaptiveHTTP.HTTP.Timeout,
			},
			Batcher: batchConfig(dc.AdaptiveHTTP),
			InBuf:   dc.AdaptiveHTTP.InBuf,
		}, log)
	case dc.GRPC != nil:
		return dispatch.NewGRPCDispatcher(dispatch.GRPCConfig{
			Target:   dc.GRPC.Target,
			SourceId: dc.GRPC.SourceId,
			Timeout:  dc.GRPC.Timeout,
			Stream:   dc.GRPC.Stream,
		})
	case dc.AMQP != nil:
		return dispatch.NewAMQPDispatcher(dispatch.AMQPConfig{
			URL:          dc.AMQP.URL,
			Queue:        dc.AMQP.Queue,
			Durable:      dc.AMQP.Durable,
			DeleteUnused: dc.AMQP.DeleteUnused,
			Exclusive:    dc.AMQP.Exclusive,
			NoWait:       dc.AMQP.NoWait,
		})
	case dc.Channel != nil:
		return dispatch.NewChannelDispatcher(h, dc.Channel.ServerId, sourceId, dc.Channel.MaxPending), nil
	default:
		return dispatch.NewConsoleDispatcher(os.Stdout, log), nil
	}
}

func parseTimeMode(s string) clock.TimeMode {
	switch s {
	case "recorded":
		return clock.TimeRecorded
	case "rebased":
		return clock.TimeRebased
	default:
		return clock.TimeLive
	}
}

func parseSpacingMode(s string) source.SpacingMode {
	switch s {
	case "recorded":
		return source.SpacingRecorded
	case "rate":
		return source.SpacingRate
	default:
		return source.SpacingNone
	}
}
