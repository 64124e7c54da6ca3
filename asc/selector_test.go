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
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func pkgEAH(slot Slot) AccountsPackage { return AccountsPackage{Kind: EAH(), Slot: slot} }
func pkgFSS(slot Slot) AccountsPackage { return AccountsPackage{Kind: Full(), Slot: slot} }
func pkgISS(slot, base Slot) AccountsPackage {
	return AccountsPackage{Kind: Incremental(base), Slot: slot}
}

func shuffled(batch []AccountsPackage) []AccountsPackage {
	out := make([]AccountsPackage, len(batch))
	copy(out, batch)
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// An EAH outranks every snapshot kind when the highest-priority full
// snapshot in the drain is newer than it; the drain then burns down the
// survivors in priority order across successive calls.
func TestSelect_EAHOutranksSnapshots(t *testing.T) {
	require := require.New(t)

	q := NewPackageQueue(32)
	batch := shuffled([]AccountsPackage{
		pkgFSS(100),
		pkgISS(110, 100),
		pkgEAH(200),
		pkgISS(210, 100),
		pkgFSS(300),
		pkgISS(310, 300),
		pkgFSS(400),
		pkgISS(410, 400),
		pkgISS(420, 400),
	})
	for _, pkg := range batch {
		require.NoError(q.Send(pkg))
	}

	s := &Selector{}

	r1, err := s.Select(q)
	require.NoError(err)
	require.Equal(EAH(), r1.Chosen.Kind)
	require.EqualValues(200, r1.Chosen.Slot)
	require.Equal(6, r1.NumReenqueued)

	r2, err := s.Select(q)
	require.NoError(err)
	require.Equal(Full(), r2.Chosen.Kind)
	require.EqualValues(400, r2.Chosen.Slot)
	require.Equal(2, r2.NumReenqueued)

	r3, err := s.Select(q)
	require.NoError(err)
	require.Equal(Incremental(400), r3.Chosen.Kind)
	require.EqualValues(420, r3.Chosen.Slot)
	require.Equal(0, r3.NumReenqueued)

	r4, err := s.Select(q)
	require.NoError(err)
	require.Nil(r4)
}

// A full snapshot that predates an EAH request must still be handled
// first, since a later incremental snapshot needs it as a base.
func TestSelect_OlderFullSnapshotBeforeNewerEAH(t *testing.T) {
	require := require.New(t)

	q := NewPackageQueue(32)
	batch := shuffled([]AccountsPackage{
		pkgFSS(100),
		pkgISS(110, 100),
		pkgEAH(200),
		pkgISS(210, 100),
		pkgISS(220, 100),
	})
	for _, pkg := range batch {
		require.NoError(q.Send(pkg))
	}

	s := &Selector{}

	r1, err := s.Select(q)
	require.NoError(err)
	require.Equal(Full(), r1.Chosen.Kind)
	require.EqualValues(100, r1.Chosen.Slot)
	require.Equal(4, r1.NumReenqueued)

	r2, err := s.Select(q)
	require.NoError(err)
	require.Equal(EAH(), r2.Chosen.Kind)
	require.EqualValues(200, r2.Chosen.Slot)
	require.Equal(2, r2.NumReenqueued)

	r3, err := s.Select(q)
	require.NoError(err)
	require.Equal(Incremental(100), r3.Chosen.Kind)
	require.EqualValues(220, r3.Chosen.Slot)
	require.Equal(0, r3.NumReenqueued)

	r4, err := s.Select(q)
	require.NoError(err)
	require.Nil(r4)
}

func TestSelect_SinglePackagePassesThroughUnchanged(t *testing.T) {
	q := NewPackageQueue(8)
	require.NoError(t, q.Send(pkgFSS(42)))

	s := &Selector{}
	r, err := s.Select(q)
	require.NoError(t, err)
	require.EqualValues(t, 42, r.Chosen.Slot)
	require.Equal(t, 0, r.NumReenqueued)
}

func TestSelect_MoreThanOneEAHIsFatal(t *testing.T) {
	q := NewPackageQueue(8)
	require.NoError(t, q.Send(pkgEAH(1)))
	require.NoError(t, q.Send(pkgEAH(2)))
	require.NoError(t, q.Send(pkgFSS(3)))

	s := &Selector{}
	require.Panics(t, func() { _, _ = s.Select(q) })
}

// Exercises the drain invariants over randomized queue order: whatever
// gets re-enqueued sits strictly above the chosen slot, and everything else
// at or below it is gone.
func TestSelect_RequeuesOnlyStrictlyFutureSlots(t *testing.T) {
	for round := 0; round < 50; round++ {
		q := NewPackageQueue(64)
		batch := shuffled([]AccountsPackage{
			pkgFSS(100), pkgFSS(250), pkgFSS(400),
			pkgISS(110, 100), pkgISS(260, 250), pkgISS(410, 400), pkgISS(420, 400),
		})
		for _, pkg := range batch {
			require.NoError(t, q.Send(pkg))
		}

		r, err := (&Selector{}).Select(q)
		require.NoError(t, err)
		require.Equal(t, len(batch), r.NumObserved)

		survivors := q.DrainAvailable()
		require.Len(t, survivors, r.NumReenqueued)
		for _, s := range survivors {
			require.Greater(t, s.Slot, r.Chosen.Slot)
		}
		// The chosen package is priority-maximal: nothing that survived
		// outranks it.
		for _, s := range survivors {
			require.True(t, priorityLess(s, r.Chosen))
		}
	}
}
