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

// Package config decodes the declarative test-run-host config file: which
// Test Runs to create at startup and which Sources, Reactions and Drasi
// Servers to register under each. Shaped after the teacher's backend/ci.go
// CIConfig (a flat yaml.v2-tagged struct read once at process start), but
// the nesting here mirrors the host's own Test Run -> {Source, Reaction,
// Drasi Server} registries instead of a single CI pipeline.
package config

import (
	"io/ioutil"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

type HostConfig struct {
	Runs []RunConfig `yaml:"runs"`
}

type RunConfig struct {
	Repo         string             `yaml:"repo"`
	Test         string             `yaml:"test"`
	Run          string             `yaml:"run"`
	Sources      []SourceConfig     `yaml:"sources,omitempty"`
	Reactions    []ReactionConfig   `yaml:"reactions,omitempty"`
	DrasiServers []DrasiServerConfig `yaml:"drasi_servers,omitempty"`
}

type SourceConfig struct {
	Id               string  `yaml:"id"`
	StartImmediately bool    `yaml:"start_immediately"`
	TimeMode         string  `yaml:"time_mode"`    // live | recorded | rebased
	SpacingMode      string  `yaml:"spacing_mode"` // none | recorded | rate
	RateEventsPerSec float64 `yaml:"rate_events_per_sec,omitempty"`
	RebaseEpochNs    uint64  `yaml:"rebase_epoch_ns,omitempty"`

	Scripted *ScriptedConfig `yaml:"scripted,omitempty"`
	Model    *ModelConfig    `yaml:"model,omitempty"`

	Dispatchers []DispatcherConfig `yaml:"dispatchers,omitempty"`
}

type ScriptedConfig struct {
	Dir           string `yaml:"dir"`
	PauseSuspends bool   `yaml:"pause_suspends"`
}

type ModelConfig struct {
	Seed               int64   `yaml:"seed"`
	StockCount         int     `yaml:"stock_count"`
	ChangeCount        int64   `yaml:"change_count,omitempty"`
	SendInitialInserts bool    `yaml:"send_initial_inserts"`
	IntervalMeanNs     float64 `yaml:"interval_mean_ns"`
	IntervalStdDevNs   float64 `yaml:"interval_stddev_ns"`
	IntervalMinNs      float64 `yaml:"interval_min_ns"`
	IntervalMaxNs      float64 `yaml:"interval_max_ns"`
}

// DispatcherConfig is a union; exactly one field should be set.
type DispatcherConfig struct {
	Console      *ConsoleDispatcherConfig      `yaml:"console,omitempty"`
	Jsonl        *JsonlDispatcherConfig        `yaml:"jsonl,omitempty"`
	HTTP         *HTTPDispatcherConfig         `yaml:"http,omitempty"`
	AdaptiveHTTP *AdaptiveHTTPDispatcherConfig `yaml:"adaptive_http,omitempty"`
	GRPC         *GRPCDispatcherConfig         `yaml:"grpc,omitempty"`
	AMQP         *AMQPDispatcherConfig         `yaml:"amqp,omitempty"`
	Channel      *ChannelDispatcherConfig      `yaml:"channel,omitempty"`
}

type ConsoleDispatcherConfig struct{}

type JsonlDispatcherConfig struct {
	PathPrefix string `yaml:"path_prefix"`
	MaxLines   int    `yaml:"max_lines"`
}

type HTTPDispatcherConfig struct {
	BaseURL string        `yaml:"base_url"`
	Path    string        `yaml:"path,omitempty"`
	Batch   bool          `yaml:"batch"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

type AdaptiveHTTPDispatcherConfig struct {
	HTTP            HTTPDispatcherConfig `yaml:"http"`
	MinBatch        int                  `yaml:"min_batch"`
	MaxBatch        int                  `yaml:"max_batch"`
	MinWait         time.Duration        `yaml:"min_wait"`
	MaxWait         time.Duration        `yaml:"max_wait"`
	AdaptiveEnabled bool                 `yaml:"adaptive_enabled"`
	WindowSize      time.Duration        `yaml:"window_size,omitempty"`
	InBuf           int                  `yaml:"in_buf"`
}

type GRPCDispatcherConfig struct {
	Target   string        `yaml:"target"`
	SourceId string        `yaml:"source_id"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
	Stream   bool          `yaml:"stream"`
}

type AMQPDispatcherConfig struct {
	URL          string `yaml:"url"`
	Queue        string `yaml:"queue"`
	Durable      bool   `yaml:"durable"`
	DeleteUnused bool   `yaml:"delete_unused"`
	Exclusive    bool   `yaml:"exclusive"`
	NoWait       bool   `yaml:"no_wait"`
}

type ChannelDispatcherConfig struct {
	ServerId   string `yaml:"server_id"`
	MaxPending int    `yaml:"max_pending"`
}

type ReactionConfig struct {
	Id               string `yaml:"id"`
	StartImmediately bool   `yaml:"start_immediately"`

	Channel *ChannelHandlerConfig `yaml:"channel,omitempty"`
	HTTP    *HTTPHandlerConfig    `yaml:"http,omitempty"`
	GRPC    *GRPCHandlerConfig    `yaml:"grpc,omitempty"`

	Loggers  []LoggerConfig  `yaml:"loggers,omitempty"`
	Triggers []TriggerConfig `yaml:"triggers,omitempty"`
}

type ChannelHandlerConfig struct {
	ServerId  string        `yaml:"server_id"`
	PollEvery time.Duration `yaml:"poll_every,omitempty"`
}

type HTTPHandlerConfig struct {
	Addr              string `yaml:"addr"`
	Path              string `yaml:"path,omitempty"`
	CorrelationHeader string `yaml:"correlation_header,omitempty"`
}

type GRPCHandlerConfig struct {
	Addr string `yaml:"addr"`
}

// LoggerConfig is a union; exactly one field should be set.
type LoggerConfig struct {
	Console *struct{}         `yaml:"console,omitempty"`
	Jsonl   *JsonlLoggerConfig `yaml:"jsonl,omitempty"`
	Metrics *MetricsLoggerConfig `yaml:"metrics,omitempty"`
}

type JsonlLoggerConfig struct {
	PathPrefix string `yaml:"path_prefix"`
	MaxLines   int    `yaml:"max_lines"`
}

type MetricsLoggerConfig struct {
	SummaryPath string `yaml:"summary_path"`
}

// TriggerConfig is a union; exactly one field should be set. Every trigger
// is wrapped in trigger.Latch once built (spec §4.6: firing is permanent).
type TriggerConfig struct {
	RecordCount           *int64 `yaml:"record_count,omitempty"`
	RecordSequenceNumber  *int64 `yaml:"record_sequence_number,omitempty"`
}

type DrasiServerConfig struct {
	Name             string `yaml:"name"`
	StartImmediately bool   `yaml:"start_immediately"`

	Embedded  bool                     `yaml:"embedded,omitempty"`
	Container *ContainerServerConfig   `yaml:"container,omitempty"`
	RPC       *RPCServerConfig         `yaml:"rpc,omitempty"`
}

type ContainerServerConfig struct {
	Image    string   `yaml:"image"`
	Cmd      []string `yaml:"cmd,omitempty"`
	Endpoint string   `yaml:"endpoint"`
}

type RPCServerConfig struct {
	Addr     string `yaml:"addr"`
	Endpoint string `yaml:"endpoint,omitempty"`
}

// Load reads and decodes a HostConfig from path, the same
// ioutil.ReadFile-then-yaml.Unmarshal shape as the teacher's
// backend.loadFromFile.
func Load(path string) (*HostConfig, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "config: read")
	}
	var cfg HostConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, errors.Wrap(err, "config: unmarshal")
	}
	return &cfg, nil
}
