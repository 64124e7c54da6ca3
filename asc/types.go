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

// Package asc implements the accounts snapshot coordinator: the background
// subsystem that drains accounts packages from the bank-execution pipeline,
// computes their accounts hash, and hands completed snapshot packages off to
// the downstream packager.
package asc

import (
	"time"

	"github.com/lumoslabs/accounts-snapshot-coordinator/accountsdb"
)

// Slot is a monotonic block-height identifier assigned by the consensus
// pipeline.
type Slot = uint64

// SnapshotKind distinguishes a full snapshot from an incremental one rooted
// at a prior full snapshot's slot.
type SnapshotKind int

const (
	// FullSnapshot captures every account in the storages it covers.
	FullSnapshot SnapshotKind = iota
	// IncrementalSnapshot captures only accounts touched after BaseSlot.
	IncrementalSnapshot
)

func (k SnapshotKind) String() string {
	if k == FullSnapshot {
		return "full"
	}
	return "incremental"
}

// Kind is the full package-kind taxonomy: either the vestigial epoch
// accounts hash request, or a (full or incremental) snapshot request.
//
// EpochAccountsHash is retained purely because a mixed-version cluster may
// still emit it: the Selector still reasons about it, the Hasher refuses it.
// BaseSlot is meaningful only when Snapshot == true && SnapshotKind ==
// IncrementalSnapshot.
type Kind struct {
	EpochAccountsHash bool
	Snapshot          bool
	SnapshotKind      SnapshotKind
	BaseSlot          Slot
}

// EAH constructs the vestigial epoch-accounts-hash kind.
func EAH() Kind { return Kind{EpochAccountsHash: true} }

// Full constructs a full-snapshot kind.
func Full() Kind { return Kind{Snapshot: true, SnapshotKind: FullSnapshot} }

// Incremental constructs an incremental-snapshot kind rooted at baseSlot.
func Incremental(baseSlot Slot) Kind {
	return Kind{Snapshot: true, SnapshotKind: IncrementalSnapshot, BaseSlot: baseSlot}
}

func (k Kind) String() string {
	switch {
	case k.EpochAccountsHash:
		return "EpochAccountsHash"
	case k.SnapshotKind == FullSnapshot:
		return "Snapshot(FullSnapshot)"
	default:
		return "Snapshot(IncrementalSnapshot(" + itoa(k.BaseSlot) + "))"
	}
}

func itoa(s Slot) string {
	if s == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for s > 0 {
		i--
		buf[i] = byte('0' + s%10)
		s /= 10
	}
	return string(buf[i:])
}

// HashAlgorithm selects whether ASC computes a Merkle accounts hash itself
// or defers entirely to the lattice scheme, which materializes its hash
// outside ASC.
type HashAlgorithm int

const (
	Merkle HashAlgorithm = iota
	Lattice
)

// EpochSchedule maps a slot to the epoch it belongs to.
type EpochSchedule interface {
	GetEpoch(slot Slot) uint64
}

// AccountsPackage is a single unit of work emitted by the upstream
// bank-execution pipeline: the storages to hash, the database to hash them
// through, and the capitalization the result must account for.
type AccountsPackage struct {
	Kind                   Kind
	Slot                   Slot
	BlockHeight            uint64
	Storages               []accountsdb.Storage
	Accounts               accountsdb.AccountsDB
	EpochSchedule          EpochSchedule
	ExpectedCapitalization uint64
	HashAlgorithm          HashAlgorithm
	HashForTesting         *accountsdb.Hash // non-nil only in test builds
	Enqueued               time.Time
}

// HashKind distinguishes the family a Merkle hash result belongs to.
type HashKind int

const (
	HashKindFull HashKind = iota
	HashKindIncremental
)

// MerkleOrLatticeHash is the hash result produced by the Hasher: either no
// explicit hash (the lattice scheme handles it elsewhere) or a concrete
// Merkle hash tagged with the family it belongs to.
type MerkleOrLatticeHash struct {
	IsLattice bool
	HashKind  HashKind
	Hash      accountsdb.Hash
}

// IncrementalPersistence records the base full-snapshot hash an incremental
// snapshot was computed against, so it can be persisted alongside the
// incremental hash for future restarts.
type IncrementalPersistence struct {
	FullSlot                  Slot
	FullHash                  accountsdb.Hash
	FullCapitalization        uint64
	IncrementalHash           accountsdb.Hash
	IncrementalCapitalization uint64
}

// SnapshotPackage is the hash result plus package metadata, ready for the
// downstream packager to serialize. The wire/archive format is the
// packager's concern, not ASC's.
type SnapshotPackage struct {
	Package     AccountsPackage
	Hash        MerkleOrLatticeHash
	Incremental *IncrementalPersistence
}
