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

package accountsdb

import (
	"context"
	"io/ioutil"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

type fixedStorage uint64

func (s fixedStorage) Slot() uint64 { return uint64(s) }

func openTestDurableBacking(t *testing.T) *LevelDBHashCache {
	t.Helper()
	dir, err := ioutil.TempDir("", "accountsdb-leveldb-")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	c, err := OpenLevelDBHashCache(dir)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestMemoryDB_DurableBackingSurvivesLRUEviction(t *testing.T) {
	durable := openTestDurableBacking(t)

	// A single-entry LRU forces the full hash out the moment an incremental
	// hash is recorded, but the durable backing must still answer
	// GetAccountsHash for the evicted base slot.
	db := NewMemoryDBWithDurableBacking(2, 1, durable)

	_, _, err := db.UpdateAccountsHash(context.Background(), CalcAccountsHashConfig{}, []Storage{fixedStorage(100)}, 100, HashStats{})
	require.NoError(t, err)

	full, wantCap, ok := db.GetAccountsHash(100)
	require.True(t, ok)

	_, _, err = db.UpdateIncrementalAccountsHash(context.Background(), CalcAccountsHashConfig{}, []Storage{fixedStorage(110)}, 110, HashStats{})
	require.NoError(t, err)

	// The in-memory LRU (size 1) has now evicted slot 100's entry.
	_, ok = db.hashCache.Get(uint64(100))
	require.False(t, ok)

	gotHash, gotCap, ok := db.GetAccountsHash(100)
	require.True(t, ok, "durable backing should answer for an LRU-evicted base hash")
	require.Equal(t, full, gotHash)
	require.Equal(t, wantCap, gotCap)
}

func TestMemoryDB_PurgeOldAccountsHashesDelegatesToDurableBacking(t *testing.T) {
	durable := openTestDurableBacking(t)
	db := NewMemoryDBWithDurableBacking(2, 16, durable)

	_, _, err := db.UpdateAccountsHash(context.Background(), CalcAccountsHashConfig{}, []Storage{fixedStorage(100)}, 100, HashStats{})
	require.NoError(t, err)

	_, _, ok := durable.Get(100)
	require.True(t, ok)

	db.PurgeOldAccountsHashes(200)

	_, _, ok = durable.Get(100)
	require.False(t, ok, "purge must delegate to the durable backing, not just the in-memory LRU")
}
