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
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumoslabs/accounts-snapshot-coordinator/accountsdb"
	"github.com/lumoslabs/accounts-snapshot-coordinator/snapshotconfig"
)

// fakeAccountsDB is a hand-wound AccountsDB test double, letting each test
// dial in exactly the condition it wants to exercise rather than routing
// through MemoryDB's real hashing path.
type fakeAccountsDB struct {
	updateHash            func([]accountsdb.Storage, uint64) (accountsdb.Hash, uint64, error)
	calculateHash         func([]accountsdb.Storage) (accountsdb.Hash, uint64, error)
	calculateCalls        []accountsdb.CalcAccountsHashConfig
	updateIncrementalHash func([]accountsdb.Storage, uint64) (accountsdb.Hash, uint64, error)
	getHash               func(uint64) (accountsdb.Hash, uint64, bool)
	fullHashes            map[uint64]accountsdb.Hash
	incrementalHashes     map[uint64]accountsdb.Hash
	purged                []uint64
}

func (f *fakeAccountsDB) UpdateAccountsHash(_ context.Context, _ accountsdb.CalcAccountsHashConfig, storages []accountsdb.Storage, slot uint64, _ accountsdb.HashStats) (accountsdb.Hash, uint64, error) {
	return f.updateHash(storages, slot)
}

func (f *fakeAccountsDB) CalculateAccountsHash(_ context.Context, cfg accountsdb.CalcAccountsHashConfig, storages []accountsdb.Storage, _ accountsdb.HashStats) (accountsdb.Hash, uint64, error) {
	f.calculateCalls = append(f.calculateCalls, cfg)
	return f.calculateHash(storages)
}

func (f *fakeAccountsDB) UpdateIncrementalAccountsHash(_ context.Context, _ accountsdb.CalcAccountsHashConfig, storages []accountsdb.Storage, slot uint64, _ accountsdb.HashStats) (accountsdb.Hash, uint64, error) {
	return f.updateIncrementalHash(storages, slot)
}

func (f *fakeAccountsDB) GetAccountsHash(slot uint64) (accountsdb.Hash, uint64, bool) {
	return f.getHash(slot)
}

func (f *fakeAccountsDB) GetAccountsHashes() map[uint64]accountsdb.Hash { return f.fullHashes }

func (f *fakeAccountsDB) GetIncrementalAccountsHashes() map[uint64]accountsdb.Hash {
	return f.incrementalHashes
}

func (f *fakeAccountsDB) PurgeOldAccountsHashes(slot uint64) { f.purged = append(f.purged, slot) }

type fakeEpochSchedule struct{}

func (fakeEpochSchedule) GetEpoch(slot Slot) uint64 { return slot / 1000 }

func TestHasher_LatticeAlgorithmSkipsCalculation(t *testing.T) {
	h := &Hasher{}
	pkg := AccountsPackage{
		Kind:          Full(),
		Slot:          10,
		HashAlgorithm: Lattice,
		EpochSchedule: fakeEpochSchedule{},
		Accounts:      &fakeAccountsDB{},
	}
	result, persistence, _, err := h.CalculateAndVerify(context.Background(), pkg, snapshotconfig.Default())
	require.NoError(t, err)
	require.Nil(t, persistence)
	require.True(t, result.IsLattice)
}

func TestHasher_FullSnapshotReturnsHashOnCapitalizationMatch(t *testing.T) {
	want := accountsdb.Hash{0xAB}
	db := &fakeAccountsDB{
		updateHash: func(storages []accountsdb.Storage, slot uint64) (accountsdb.Hash, uint64, error) {
			return want, 500, nil
		},
	}
	h := &Hasher{}
	pkg := AccountsPackage{
		Kind:                   Full(),
		Slot:                   10,
		ExpectedCapitalization: 500,
		HashAlgorithm:          Merkle,
		EpochSchedule:          fakeEpochSchedule{},
		Accounts:               db,
	}
	result, _, timings, err := h.CalculateAndVerify(context.Background(), pkg, snapshotconfig.Default())
	require.NoError(t, err)
	require.Equal(t, HashKindFull, result.HashKind)
	require.Equal(t, want, result.Hash)
	require.GreaterOrEqual(t, timings.calculateHashMicros, int64(0))
}

func TestHasher_FullSnapshotIOErrorIsWrapped(t *testing.T) {
	db := &fakeAccountsDB{
		updateHash: func([]accountsdb.Storage, uint64) (accountsdb.Hash, uint64, error) {
			return accountsdb.Hash{}, 0, errors.New("disk gone")
		},
	}
	h := &Hasher{}
	pkg := AccountsPackage{
		Kind:          Full(),
		Slot:          10,
		HashAlgorithm: Merkle,
		EpochSchedule: fakeEpochSchedule{},
		Accounts:      db,
	}
	_, _, _, err := h.CalculateAndVerify(context.Background(), pkg, snapshotconfig.Default())
	require.ErrorIs(t, err, ErrHasherIO)
}

func TestHasher_CapitalizationMismatchPanicsWithDiagnostic(t *testing.T) {
	db := &fakeAccountsDB{
		updateHash: func([]accountsdb.Storage, uint64) (accountsdb.Hash, uint64, error) {
			return accountsdb.Hash{}, 499, nil
		},
		calculateHash: func([]accountsdb.Storage) (accountsdb.Hash, uint64, error) {
			return accountsdb.Hash{}, 499, nil
		},
	}
	h := &Hasher{}
	pkg := AccountsPackage{
		Kind:                   Full(),
		Slot:                   10,
		ExpectedCapitalization: 500,
		HashAlgorithm:          Merkle,
		EpochSchedule:          fakeEpochSchedule{},
		Accounts:               db,
	}

	defer func() {
		r := recover()
		require.NotNil(t, r)
		diag, ok := r.(*FatalDiagnostic)
		require.True(t, ok)
		require.NotEmpty(t, diag.Dump)

		// The diagnostic re-hash runs exactly once, single-threaded, with
		// detailed debug info enabled.
		require.Len(t, db.calculateCalls, 1)
		require.False(t, db.calculateCalls[0].UseBackgroundThreadPool)
		require.True(t, db.calculateCalls[0].StoreDetailedDebugInfoOnFailure)
	}()
	_, _, _, _ = h.CalculateAndVerify(context.Background(), pkg, snapshotconfig.Default())
	t.Fatal("expected panic")
}

func TestHasher_IncrementalSnapshotMissingBaseHashPanics(t *testing.T) {
	db := &fakeAccountsDB{
		getHash: func(uint64) (accountsdb.Hash, uint64, bool) { return accountsdb.Hash{}, 0, false },
		fullHashes: map[uint64]accountsdb.Hash{
			100: {0x01},
		},
		incrementalHashes: map[uint64]accountsdb.Hash{},
	}
	h := &Hasher{}
	pkg := AccountsPackage{
		Kind:          Incremental(400),
		Slot:          420,
		HashAlgorithm: Merkle,
		EpochSchedule: fakeEpochSchedule{},
		Accounts:      db,
	}

	defer func() {
		r := recover()
		require.NotNil(t, r)
		_, ok := r.(*FatalDiagnostic)
		require.True(t, ok)
	}()
	_, _, _, _ = h.CalculateAndVerify(context.Background(), pkg, snapshotconfig.Default())
	t.Fatal("expected panic")
}

func TestHasher_IncrementalSnapshotReturnsPersistence(t *testing.T) {
	baseHash := accountsdb.Hash{0x01}
	incHash := accountsdb.Hash{0x02}
	db := &fakeAccountsDB{
		getHash: func(slot uint64) (accountsdb.Hash, uint64, bool) {
			require.EqualValues(t, 400, slot)
			return baseHash, 900, true
		},
		updateIncrementalHash: func(storages []accountsdb.Storage, slot uint64) (accountsdb.Hash, uint64, error) {
			return incHash, 40, nil
		},
	}
	h := &Hasher{}
	pkg := AccountsPackage{
		Kind:          Incremental(400),
		Slot:          420,
		HashAlgorithm: Merkle,
		EpochSchedule: fakeEpochSchedule{},
		Accounts:      db,
		Storages: []accountsdb.Storage{
			testStorage(390), testStorage(405), testStorage(420),
		},
	}
	result, persistence, _, err := h.CalculateAndVerify(context.Background(), pkg, snapshotconfig.Default())
	require.NoError(t, err)
	require.Equal(t, HashKindIncremental, result.HashKind)
	require.Equal(t, incHash, result.Hash)
	require.Equal(t, baseHash, persistence.FullHash)
	require.EqualValues(t, 900, persistence.FullCapitalization)
	require.EqualValues(t, 400, persistence.FullSlot)
}

func TestHasher_EAHPackageReachingHasherPanics(t *testing.T) {
	h := &Hasher{}
	pkg := AccountsPackage{Kind: EAH(), Slot: 1, HashAlgorithm: Merkle}
	require.Panics(t, func() { _, _, _, _ = h.CalculateAndVerify(context.Background(), pkg, snapshotconfig.Default()) })
}

type testStorage uint64

func (s testStorage) Slot() uint64 { return uint64(s) }

type sizedStorage struct {
	slot uint64
	size uint64
}

func (s sizedStorage) Slot() uint64      { return s.slot }
func (s sizedStorage) SizeBytes() uint64 { return s.size }

func TestStorageStats_SizeQuartiles(t *testing.T) {
	var storages []accountsdb.Storage
	for i := uint64(1); i <= 10; i++ {
		// Deliberately out of slot order; sizes run 100..1000.
		storages = append(storages, sizedStorage{slot: 11 - i, size: i * 100})
	}

	sorted, sortMicros := sortedStorages(storages)
	stats := storageStats(sorted, sortMicros)

	require.Equal(t, 10, stats.StorageCount)
	require.GreaterOrEqual(t, stats.StorageSortMicros, int64(0))
	require.EqualValues(t, 500, stats.StorageSizeP50)
	require.EqualValues(t, 900, stats.StorageSizeP90)
	require.EqualValues(t, 1000, stats.StorageSizeP99)
}

func TestStorageStats_NoSizersLeavesQuartilesZero(t *testing.T) {
	sorted, sortMicros := sortedStorages([]accountsdb.Storage{testStorage(3), testStorage(1)})
	stats := storageStats(sorted, sortMicros)

	require.Equal(t, 2, stats.StorageCount)
	require.Zero(t, stats.StorageSizeP50)
	require.EqualValues(t, 1, sorted[0].Slot())
}
