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

package asc

// PackageQueue is the multi-producer, single-consumer handoff of
// AccountsPackage values from upstream into ASC. Upstream producers and ASC
// itself, on re-enqueue, send on the same channel the Selector drains from:
// one queue serving both directions.
type PackageQueue struct {
	ch chan AccountsPackage
}

// NewPackageQueue creates a queue. The channel is given generous buffer
// capacity rather than being truly unbounded (Go channels can't be
// unbounded), but capacity exhaustion is only ever reached by a producer
// bug or a catastrophic backlog; both are fatal conditions the caller is
// expected to surface.
func NewPackageQueue(capacity int) *PackageQueue {
	return &PackageQueue{ch: make(chan AccountsPackage, capacity)}
}

// Send enqueues a package from an upstream producer. It never blocks: if
// the channel is full, ErrQueueFull is returned, which callers should treat
// as fatal.
func (q *PackageQueue) Send(pkg AccountsPackage) error {
	select {
	case q.ch <- pkg:
		return nil
	default:
		return ErrQueueFull
	}
}

// DrainAvailable removes every package currently sitting in the queue
// without blocking, preserving no particular order. The Selector calls it
// on every iteration; operator tooling may call it once the consumer has
// stopped, to report what was still queued.
func (q *PackageQueue) DrainAvailable() []AccountsPackage {
	var batch []AccountsPackage
	for {
		select {
		case pkg := <-q.ch:
			batch = append(batch, pkg)
		default:
			return batch
		}
	}
}

// reenqueue is the Selector's internal re-send path: it must not fail,
// since the channel is sized well beyond what a normal workload produces
// between two drains. A failure here indicates the queue's capacity has
// been exhausted and is reported as ErrQueueFull, a fatal condition.
func (q *PackageQueue) reenqueue(pkg AccountsPackage) error {
	return q.Send(pkg)
}
