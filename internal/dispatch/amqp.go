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
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"github.com/streadway/amqp"

	"github.com/drasi-project/e2e-test-framework/internal/model"
)

// AMQPConfig parameterises the Message-Queue Dispatcher (spec §4.2's
// DOMAIN STACK enrichment), mirroring the teacher's AmqpQueue options
// (agent/message_queue.go) as named fields instead of positional bools.
type AMQPConfig struct {
	URL          string
	Queue        string
	Durable      bool
	DeleteUnused bool
	Exclusive    bool
	NoWait       bool
}

// AMQPDispatcher publishes one message per event to a durable queue. Where
// the teacher's AmqpQueue dials and tears down a connection on every
// Produce call, this dispatcher keeps one connection/channel open for its
// lifetime, declaring the queue once at construction.
type AMQPDispatcher struct {
	cfg  AMQPConfig
	conn *amqp.Connection
	ch   *amqp.Channel

	mu sync.Mutex
}

func NewAMQPDispatcher(cfg AMQPConfig) (*AMQPDispatcher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, model.Errorf(model.ClassTransport, "", "amqp dispatcher: dial %s: %v", cfg.URL, err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, model.Errorf(model.ClassTransport, "", "amqp dispatcher: open channel: %v", err)
	}
	if _, err := ch.QueueDeclare(cfg.Queue, cfg.Durable, cfg.DeleteUnused, cfg.Exclusive, cfg.NoWait, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, model.Errorf(model.ClassTransport, "", "amqp dispatcher: declare queue %s: %v", cfg.Queue, err)
	}
	return &AMQPDispatcher{cfg: cfg, conn: conn, ch: ch}, nil
}

func (d *AMQPDispatcher) Dispatch(ctx context.Context, events []model.SourceChangeEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, ev := range events {
		body, err := json.Marshal(ev)
		if err != nil {
			return errors.Wrap(err, "amqp dispatcher: marshal event")
		}
		err = d.ch.Publish("", d.cfg.Queue, false, false, amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		})
		if err != nil {
			return model.Errorf(model.ClassTransport, "", "amqp dispatcher: publish: %v", err)
		}
	}
	return nil
}

func (d *AMQPDispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	chErr := d.ch.Close()
	connErr := d.conn.Close()
	if chErr != nil {
		return chErr
	}
	return connErr
}
