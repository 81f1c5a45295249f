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

// Package modelgen implements the model-driven source back-end: a small
// in-memory domain model that mutates under a seeded PRNG and emits one
// Source Change Event per mutation. Stock is the reference domain model,
// a deterministic synthetic stock market.
package modelgen

import (
	"context"
	"math"
	"math/rand"

	"github.com/drasi-project/e2e-test-framework/internal/model"
)

// StockSettings parameterises the stock-market model (spec §4.1 model
// back-end + the truncated-Normal inter-event interval it samples from).
type StockSettings struct {
	Seed               int64
	StockCount         int
	ChangeCount        int64 // 0 means unbounded
	SendInitialInserts bool

	IntervalMeanNs   float64
	IntervalStdDevNs float64
	IntervalMinNs    float64
	IntervalMaxNs    float64

	InitialPriceMin float64
	InitialPriceMax float64
}

type stock struct {
	id            string
	symbol        string
	name          string
	price         float64
	volume        int64
	priceMomentum int
}

// StockBackend is a source.Backend that emits inserts for each seeded
// stock (if SendInitialInserts) and then an endless (or change-count
// bounded) stream of price/volume update events.
type StockBackend struct {
	cfg    StockSettings
	rng    *rand.Rand
	stocks []*stock

	emitted        int64
	pendingInitial []*stock
	virtualNs      uint64
}

// NewStockBackend seeds StockSettings.StockCount stocks from a single
// explicitly-seeded PRNG (spec §9: "all randomness from a single
// explicitly seeded PRNG; reproducibility across platforms is required").
func NewStockBackend(cfg StockSettings) *StockBackend {
	b := &StockBackend{cfg: cfg}
	b.seed()
	return b
}

func (b *StockBackend) seed() {
	b.rng = rand.New(rand.NewSource(b.cfg.Seed))
	b.stocks = make([]*stock, 0, b.cfg.StockCount)
	for i := 0; i < b.cfg.StockCount; i++ {
		s := &stock{
			id:     symbolID(i),
			symbol: symbolID(i),
			name:   "Stock " + symbolID(i),
			price:  b.cfg.InitialPriceMin + b.rng.Float64()*(b.cfg.InitialPriceMax-b.cfg.InitialPriceMin),
			volume: 1000 + b.rng.Int63n(9000),
		}
		b.stocks = append(b.stocks, s)
	}
	if b.cfg.SendInitialInserts {
		b.pendingInitial = append([]*stock(nil), b.stocks...)
	}
	b.emitted = 0
	b.virtualNs = 0
}

func symbolID(i int) string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	if i < 26 {
		return string(letters[i]) + string(letters[i]) + string(letters[i])
	}
	return string(letters[i%26]) + string(letters[(i/26)%26]) + string(letters[(i/676)%26])
}

// Next implements source.Backend. It first drains pendingInitial (one
// insert per seeded stock), then samples a mutation: pick a stock
// uniformly, perturb its price/volume, and schedule the event at
// virtualNs + a truncated-Normal inter-event interval.
func (b *StockBackend) Next(ctx context.Context) (model.SourceChangeEvent, uint64, bool, error) {
	if b.cfg.ChangeCount > 0 && b.emitted >= b.cfg.ChangeCount {
		return model.SourceChangeEvent{}, 0, false, nil
	}

	if len(b.pendingInitial) > 0 {
		s := b.pendingInitial[0]
		b.pendingInitial = b.pendingInitial[1:]
		ev := b.insertEvent(s)
		b.emitted++
		return ev, b.virtualNs, true, nil
	}

	idx := b.rng.Intn(len(b.stocks))
	s := b.stocks[idx]
	before := s.toPayload()

	s.price = perturbPrice(b.rng, s.price)
	s.volume = perturbVolume(b.rng, s.volume)
	after := s.toPayload()

	b.virtualNs += b.sampleInterval()

	ev := model.SourceChangeEvent{
		Op: model.OpUpdate,
		Payload: model.ChangePayload{
			Source: model.SourceDescriptor{Db: "modelgen", Table: "Stock"},
			Before: &before,
			After:  &after,
		},
	}
	b.emitted++
	return ev, b.virtualNs, true, nil
}

func (b *StockBackend) insertEvent(s *stock) model.SourceChangeEvent {
	p := s.toPayload()
	return model.SourceChangeEvent{
		Op: model.OpInsert,
		Payload: model.ChangePayload{
			Source: model.SourceDescriptor{Db: "modelgen", Table: "Stock"},
			After:  &p,
		},
	}
}

func (s *stock) toPayload() model.Payload {
	return model.Payload{
		Id:     s.id,
		Labels: []string{"Stock"},
		Properties: map[string]model.Scalar{
			"symbol": s.symbol,
			"name":   s.name,
			"price":  s.price,
			"volume": s.volume,
		},
	}
}

// sampleInterval draws from a truncated Normal(mean, stddev) clamped to
// [min, max], per spec §4.1's model back-end step (b).
func (b *StockBackend) sampleInterval() uint64 {
	v := b.cfg.IntervalMeanNs + b.rng.NormFloat64()*b.cfg.IntervalStdDevNs
	v = math.Max(b.cfg.IntervalMinNs, math.Min(b.cfg.IntervalMaxNs, v))
	return uint64(v)
}

func perturbPrice(rng *rand.Rand, price float64) float64 {
	delta := (rng.Float64() - 0.5) * price * 0.01
	next := price + delta
	if next < 0.01 {
		next = 0.01
	}
	return next
}

func perturbVolume(rng *rand.Rand, volume int64) int64 {
	delta := rng.Int63n(201) - 100
	next := volume + delta
	if next < 0 {
		next = 0
	}
	return next
}

// Reset reseeds the model from scratch, for Paused' reinitialisation.
func (b *StockBackend) Reset() error {
	b.seed()
	return nil
}

// Close is a no-op; the model backend owns no external resources.
func (b *StockBackend) Close() error { return nil }
