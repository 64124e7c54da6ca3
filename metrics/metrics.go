// Copyright 2019 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// Package metrics provides the small set of instrument types ASC emits:
// meters (rate), counters, and gauges, registered against a single process
// registry and periodically exported.
package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/aristanetworks/goarista/monotime"
)

// Meter tracks a rate: total count plus a cheap one-minute rolling estimate.
type Meter struct {
	count int64

	mu     sync.Mutex
	window []markedCount
}

type markedCount struct {
	at    uint64 // monotime nanoseconds
	count int64
}

func newMeter() *Meter { return &Meter{} }

// Mark records n events now.
func (m *Meter) Mark(n int64) {
	atomic.AddInt64(&m.count, n)

	m.mu.Lock()
	defer m.mu.Unlock()
	now := monotime.Now()
	m.window = append(m.window, markedCount{at: now, count: n})
	cutoff := now - uint64(time1Minute)
	i := 0
	for i < len(m.window) && m.window[i].at < cutoff {
		i++
	}
	m.window = m.window[i:]
}

const time1Minute = 60_000_000_000 // nanoseconds

// Count returns the all-time total.
func (m *Meter) Count() int64 { return atomic.LoadInt64(&m.count) }

// Rate1 returns events observed in roughly the last minute.
func (m *Meter) Rate1() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, mc := range m.window {
		total += mc.count
	}
	return total
}

// Counter is a simple monotonic (or not) integer counter.
type Counter struct{ v int64 }

func newCounter() *Counter { return &Counter{} }

func (c *Counter) Inc(n int64)  { atomic.AddInt64(&c.v, n) }
func (c *Counter) Dec(n int64)  { atomic.AddInt64(&c.v, -n) }
func (c *Counter) Count() int64 { return atomic.LoadInt64(&c.v) }

// Gauge holds the last reported value of some quantity.
type Gauge struct{ v int64 }

func newGauge() *Gauge { return &Gauge{} }

func (g *Gauge) Update(v int64) { atomic.StoreInt64(&g.v, v) }
func (g *Gauge) Value() int64   { return atomic.LoadInt64(&g.v) }
