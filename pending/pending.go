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

// Package pending holds the shared handoff point between ASC's Verifier loop
// and the downstream snapshot packager: every completed SnapshotPackage
// accumulates here until the packager drains it.
package pending

import (
	"sync"

	"github.com/lumoslabs/accounts-snapshot-coordinator/asc"
)

// Packages is a simple mutex-guarded append-only buffer drained in FIFO
// order, deliberately simpler than PackageQueue: the packager side has no
// lossy-drain/priority requirement, it just wants everything ASC finished,
// in the order ASC finished it.
type Packages struct {
	mu    sync.Mutex
	items []asc.SnapshotPackage
}

// New returns an empty pending-packages buffer.
func New() *Packages {
	return &Packages{}
}

// Push appends a completed snapshot package.
func (p *Packages) Push(pkg asc.SnapshotPackage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items = append(p.items, pkg)
}

// DrainAll removes and returns every package currently pending, in the
// order they were pushed.
func (p *Packages) DrainAll() []asc.SnapshotPackage {
	p.mu.Lock()
	defer p.mu.Unlock()
	items := p.items
	p.items = nil
	return items
}

// Len reports how many packages are currently waiting, for the status
// endpoint and metrics.
func (p *Packages) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}
