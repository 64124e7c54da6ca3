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

import (
	mapset "github.com/deckarep/golang-set"

	"github.com/lumoslabs/accounts-snapshot-coordinator/log"
)

// SelectionResult is what one Selector.Select call produces: the package
// chosen to process next, how many packages were observed in the drain,
// and how many were re-enqueued (the rest were dropped).
type SelectionResult struct {
	Chosen        AccountsPackage
	NumObserved   int
	NumReenqueued int
}

// Selector drains a PackageQueue non-blockingly and picks the single
// highest-priority package to process next. Of the rest, strictly
// future-slot packages are re-enqueued and everything else is dropped.
type Selector struct{}

// Select implements the priority-aware lossy drain. It never blocks: if the
// queue is empty it returns a nil result immediately.
func (s *Selector) Select(q *PackageQueue) (*SelectionResult, error) {
	batch := q.DrainAvailable()
	n := len(batch)
	log.Debug("outstanding accounts packages", "count", n)

	switch n {
	case 0:
		return nil, nil
	case 1:
		return &SelectionResult{Chosen: batch[0], NumObserved: 1, NumReenqueued: 0}, nil
	}

	// Upstream only ever has one epoch-accounts-hash request outstanding;
	// seeing two means the producer contract is broken.
	eahCount := 0
	eahSlots := mapset.NewSet()
	for _, pkg := range batch {
		if pkg.Kind.EpochAccountsHash {
			eahCount++
			eahSlots.Add(pkg.Slot)
		}
	}
	if eahCount > 1 {
		log.Crit("more than one EpochAccountsHash package observed", "count", eahCount, "slots", eahSlots)
		panic("only a single EAH accounts package is allowed at a time")
	}

	yi, zi := topTwo(batch)
	y, z := batch[yi], batch[zi]

	chosenIdx := zi
	if z.Kind.EpochAccountsHash && y.Kind.Snapshot && y.Kind.SnapshotKind == FullSnapshot && y.Slot < z.Slot {
		// Preserve the older full snapshot's hash: a future incremental
		// depends on it, and the EAH can wait one more cycle.
		chosenIdx = yi
	}
	chosen := batch[chosenIdx]

	reenqueued := 0
	for i, pkg := range batch {
		if i == chosenIdx {
			continue
		}
		if pkg.Slot > chosen.Slot {
			if err := q.reenqueue(pkg); err != nil {
				return nil, err
			}
			reenqueued++
		}
		// Packages with Slot <= chosen.Slot are dropped (not re-enqueued).
	}

	return &SelectionResult{Chosen: chosen, NumObserved: n, NumReenqueued: reenqueued}, nil
}

// topTwo returns the indices of the second-highest and highest priority
// elements under priorityLess, using a single linear scan. The tie-break in
// Select only ever needs the top two, so a full sort is wasted work.
func topTwo(batch []AccountsPackage) (yi, zi int) {
	if priorityLess(batch[0], batch[1]) {
		yi, zi = 0, 1
	} else {
		yi, zi = 1, 0
	}
	for i := 2; i < len(batch); i++ {
		switch {
		case priorityLess(batch[zi], batch[i]):
			yi, zi = zi, i
		case priorityLess(batch[yi], batch[i]):
			yi = i
		}
	}
	return yi, zi
}

// priorityLess reports whether a has strictly lower priority than b:
// EAH > FullSnapshot > IncrementalSnapshot by kind; within a kind, larger
// slot wins; within IncrementalSnapshot, larger BaseSlot is a secondary key.
func priorityLess(a, b AccountsPackage) bool {
	ra, rb := kindRank(a.Kind), kindRank(b.Kind)
	if ra != rb {
		return ra < rb
	}
	if a.Slot != b.Slot {
		return a.Slot < b.Slot
	}
	if a.Kind.Snapshot && a.Kind.SnapshotKind == IncrementalSnapshot {
		return a.Kind.BaseSlot < b.Kind.BaseSlot
	}
	return false
}

func kindRank(k Kind) int {
	switch {
	case k.EpochAccountsHash:
		return 2
	case k.Snapshot && k.SnapshotKind == FullSnapshot:
		return 1
	default:
		return 0
	}
}
