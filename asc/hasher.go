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
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/lumoslabs/accounts-snapshot-coordinator/accountsdb"
	"github.com/lumoslabs/accounts-snapshot-coordinator/log"
	"github.com/lumoslabs/accounts-snapshot-coordinator/snapshotconfig"
)

// hashTimings is returned alongside a hash result purely for the metrics
// point the Verifier loop emits: one field per hash family, only the one
// that actually ran is populated.
type hashTimings struct {
	calculateHashMicros            int64
	calculateIncrementalHashMicros int64
}

// Hasher computes either a full or incremental accounts hash for one
// package (or declares the hash implicit under the lattice algorithm),
// verifies capitalization, and performs a diagnostic recomputation before
// aborting on mismatch.
type Hasher struct{}

// CalculateAndVerify dispatches on the package's algorithm and kind. A
// non-nil error is always an I/O failure from the accounts database; every
// other fatal condition (missing base hash, capitalization mismatch, EAH
// reaching the hasher) is an unrecoverable panic, since each one means the
// Selector's policy failed to protect state downstream cannot live without.
func (h *Hasher) CalculateAndVerify(ctx context.Context, pkg AccountsPackage, cfg snapshotconfig.Config) (MerkleOrLatticeHash, *IncrementalPersistence, hashTimings, error) {
	if pkg.HashAlgorithm == Lattice {
		log.Debug("accounts hash algorithm is lattice-based, skipping merkle calculation")
		return MerkleOrLatticeHash{IsLattice: true}, nil, hashTimings{}, nil
	}

	switch {
	case pkg.Kind.EpochAccountsHash:
		log.Crit("EpochAccountsHash package reached the hasher; this is unreachable given the selector's policy")
		panic("EpochAccountsHash reached hashing: EAH is removed from production")

	case pkg.Kind.Snapshot && pkg.Kind.SnapshotKind == FullSnapshot:
		hash, timings, err := h.calculateFull(ctx, pkg)
		if err != nil {
			return MerkleOrLatticeHash{}, nil, timings, err
		}
		return MerkleOrLatticeHash{HashKind: HashKindFull, Hash: hash}, nil, timings, nil

	default: // Snapshot(IncrementalSnapshot(baseSlot))
		hash, persistence, timings, err := h.calculateIncremental(ctx, pkg, cfg)
		if err != nil {
			return MerkleOrLatticeHash{}, nil, timings, err
		}
		return MerkleOrLatticeHash{HashKind: HashKindIncremental, Hash: hash}, persistence, timings, nil
	}
}

// calculateFull computes and records the full accounts hash for pkg, then
// verifies the computed lamports against the upstream assertion. A mismatch
// triggers one single-threaded diagnostic recomputation before aborting.
func (h *Hasher) calculateFull(ctx context.Context, pkg AccountsPackage) (accountsdb.Hash, hashTimings, error) {
	sorted, sortMicros := sortedStorages(pkg.Storages)
	stats := storageStats(sorted, sortMicros)

	epoch := pkg.EpochSchedule.GetEpoch(pkg.Slot)
	calcCfg := accountsdb.CalcAccountsHashConfig{
		UseBackgroundThreadPool:         true,
		Epoch:                           epoch,
		StoreDetailedDebugInfoOnFailure: false,
	}

	start := time.Now()
	hash, lamports, err := pkg.Accounts.UpdateAccountsHash(ctx, calcCfg, sorted, pkg.Slot, stats)
	elapsed := time.Since(start)
	if err != nil {
		return accountsdb.Hash{}, hashTimings{}, fmt.Errorf("%w: %v", ErrHasherIO, err)
	}

	if pkg.ExpectedCapitalization != lamports {
		diagCfg := calcCfg
		diagCfg.UseBackgroundThreadPool = false
		diagCfg.StoreDetailedDebugInfoOnFailure = true

		_, recomputed, rerr := pkg.Accounts.CalculateAccountsHash(ctx, diagCfg, sorted, accountsdb.HashStats{})
		if rerr != nil {
			recomputed = 0
		}
		diag := newCapitalizationMismatchDiagnostic(pkg, lamports, recomputed)
		log.Crit("accounts hash capitalization mismatch", "expected", pkg.ExpectedCapitalization, "got", lamports, "recomputed", recomputed, "dump", diag.Dump)
		panic(diag)
	}

	if pkg.HashForTesting != nil && *pkg.HashForTesting != hash {
		panic(fmt.Sprintf("accounts hash mismatch against test oracle: expected %x, got %x", *pkg.HashForTesting, hash))
	}

	return hash, hashTimings{calculateHashMicros: elapsed.Microseconds()}, nil
}

// calculateIncremental computes and records the incremental accounts hash
// over storages newer than the package's base slot. The base full hash must
// still be retained; the Curator's policy guarantees that, so its absence
// is corruption, not a recoverable miss.
func (h *Hasher) calculateIncremental(ctx context.Context, pkg AccountsPackage, cfg snapshotconfig.Config) (accountsdb.Hash, *IncrementalPersistence, hashTimings, error) {
	baseSlot := pkg.Kind.BaseSlot

	baseHash, baseCapitalization, ok := pkg.Accounts.GetAccountsHash(baseSlot)
	if !ok {
		diag := newMissingBaseHashDiagnostic(pkg, baseSlot, pkg.Accounts.GetAccountsHashes(), pkg.Accounts.GetIncrementalAccountsHashes(), cfg)
		log.Crit("incremental snapshot missing its base hash", "base_slot", baseSlot, "dump", diag.Dump)
		panic(diag)
	}

	var incremental []accountsdb.Storage
	for _, s := range pkg.Storages {
		if s.Slot() > baseSlot {
			incremental = append(incremental, s)
		}
	}
	sorted, sortMicros := sortedStorages(incremental)
	stats := storageStats(sorted, sortMicros)

	epoch := pkg.EpochSchedule.GetEpoch(pkg.Slot)
	calcCfg := accountsdb.CalcAccountsHashConfig{
		UseBackgroundThreadPool:         true,
		Epoch:                           epoch,
		StoreDetailedDebugInfoOnFailure: false,
	}

	start := time.Now()
	hash, capitalization, err := pkg.Accounts.UpdateIncrementalAccountsHash(ctx, calcCfg, sorted, pkg.Slot, stats)
	elapsed := time.Since(start)
	if err != nil {
		return accountsdb.Hash{}, nil, hashTimings{}, fmt.Errorf("%w: %v", ErrHasherIO, err)
	}

	// ExpectedCapitalization applies to full hashes only; an incremental
	// covers a partial account set, so there is nothing to check it against.
	persistence := &IncrementalPersistence{
		FullSlot:                  baseSlot,
		FullHash:                  baseHash,
		FullCapitalization:        baseCapitalization,
		IncrementalHash:           hash,
		IncrementalCapitalization: capitalization,
	}
	return hash, persistence, hashTimings{calculateIncrementalHashMicros: elapsed.Microseconds()}, nil
}

// sortedStorages returns a copy of storages ordered by ascending slot,
// along with how long the sort took in microseconds.
func sortedStorages(storages []accountsdb.Storage) ([]accountsdb.Storage, int64) {
	start := time.Now()
	out := make([]accountsdb.Storage, len(storages))
	copy(out, storages)
	sort.Slice(out, func(i, j int) bool { return out[i].Slot() < out[j].Slot() })
	return out, time.Since(start).Microseconds()
}

// storageStats assembles the per-run statistics handed to the accounts
// database: the sort time plus size quartiles over every storage that
// reports its size.
func storageStats(sorted []accountsdb.Storage, sortMicros int64) accountsdb.HashStats {
	stats := accountsdb.HashStats{
		StorageSortMicros: sortMicros,
		StorageCount:      len(sorted),
	}
	var sizes []int64
	for _, s := range sorted {
		if sizer, ok := s.(accountsdb.StorageSizer); ok {
			sizes = append(sizes, int64(sizer.SizeBytes()))
		}
	}
	if len(sizes) == 0 {
		return stats
	}
	sort.Slice(sizes, func(i, j int) bool { return sizes[i] < sizes[j] })
	stats.StorageSizeP50 = quantile(sizes, 50)
	stats.StorageSizeP90 = quantile(sizes, 90)
	stats.StorageSizeP99 = quantile(sizes, 99)
	return stats
}

// quantile picks the nearest-rank pct-th percentile from an ascending
// slice.
func quantile(sorted []int64, pct int) int64 {
	idx := (len(sorted)*pct + 99) / 100
	if idx > 0 {
		idx--
	}
	return sorted[idx]
}
