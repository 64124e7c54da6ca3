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

// Package accountsdb declares the interface the accounts snapshot
// coordinator expects from the on-disk accounts database. The database
// itself (its storage-file layout, its Merkle implementation, its
// replay/execution integration) lives elsewhere; this package only pins
// down the contract ASC calls through, plus a reference
// in-memory/leveldb-backed implementation used by tests and the demo
// harness.
package accountsdb

import "context"

// Hash is a 32-byte accounts-hash digest.
type Hash [32]byte

// Storage is an opaque handle to one account-storage file, exposing only
// the slot it was written at — everything ASC needs to sort and partition
// storages by slot.
type Storage interface {
	Slot() uint64
}

// StorageSizer is optionally implemented by Storage handles that know their
// on-disk size. Handles that don't are simply left out of the size
// statistics.
type StorageSizer interface {
	SizeBytes() uint64
}

// HashStats accumulates timing/size statistics gathered while calculating
// an accounts hash, purely for logging.
type HashStats struct {
	StorageSortMicros int64
	StorageCount      int
	StorageSizeP50    int64
	StorageSizeP90    int64
	StorageSizeP99    int64
}

// CalcAccountsHashConfig configures one hash calculation pass.
type CalcAccountsHashConfig struct {
	UseBackgroundThreadPool         bool
	Epoch                           uint64
	StoreDetailedDebugInfoOnFailure bool
}

// AccountsDB is the subset of the accounts database's behavior that ASC
// depends on.
type AccountsDB interface {
	// UpdateAccountsHash computes the full accounts hash over storages and
	// records it as the current hash for slot, returning the hash and the
	// total lamports (capitalization) summed across all accounts.
	UpdateAccountsHash(ctx context.Context, cfg CalcAccountsHashConfig, storages []Storage, slot uint64, stats HashStats) (Hash, uint64, error)

	// CalculateAccountsHash recomputes the full accounts hash without
	// recording it, used for the diagnostic re-hash on a capitalization
	// mismatch.
	CalculateAccountsHash(ctx context.Context, cfg CalcAccountsHashConfig, storages []Storage, stats HashStats) (Hash, uint64, error)

	// UpdateIncrementalAccountsHash computes the incremental accounts hash
	// over storages newer than a base slot and records it for slot.
	UpdateIncrementalAccountsHash(ctx context.Context, cfg CalcAccountsHashConfig, storages []Storage, slot uint64, stats HashStats) (Hash, uint64, error)

	// GetAccountsHash returns the previously recorded (hash, capitalization)
	// for slot, or ok=false if none is retained.
	GetAccountsHash(slot uint64) (hash Hash, capitalization uint64, ok bool)

	// GetAccountsHashes returns every full-snapshot hash currently retained,
	// keyed by slot. Used only to build the diagnostic dump on a missing
	// base hash.
	GetAccountsHashes() map[uint64]Hash

	// GetIncrementalAccountsHashes returns every incremental-snapshot hash
	// currently retained, keyed by slot. Same diagnostic-dump use.
	GetIncrementalAccountsHashes() map[uint64]Hash

	// PurgeOldAccountsHashes removes every retained hash for a slot strictly
	// less than slot.
	PurgeOldAccountsHashes(slot uint64)
}
