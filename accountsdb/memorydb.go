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
	"encoding/binary"
	"sort"
	"sync"

	"github.com/VictoriaMetrics/fastcache"
	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/lumoslabs/accounts-snapshot-coordinator/log"
)

// hashCacheEntry is what MemoryDB retains per slot: enough to answer
// GetAccountsHash and to rebuild the diagnostic dump on a missing base hash.
type hashCacheEntry struct {
	slot           uint64
	hash           Hash
	capitalization uint64
	incremental    bool
}

// MemoryDB is a reference, in-memory stand-in for the real on-disk
// accounts database. It is not a serious accounts-hash implementation, but
// it exercises every contract method ASC calls through, including a real
// bounded thread pool for the per-storage scan fan-out.
//
// The raw per-storage bytes are cached in a fastcache.Cache. The hash-cache
// proper (the thing ASC's Curator purges from) is an LRU, capped as a
// second line of defense beyond the Curator's slot-based eviction.
type MemoryDB struct {
	mu         sync.RWMutex
	byteCache  *fastcache.Cache
	hashCache  *lru.Cache // slot (uint64) -> *hashCacheEntry
	poolWeight int64

	// durable, if set, mirrors every retained hash to a LevelDBHashCache so
	// a hash the in-memory LRU has evicted can still be recovered.
	durable *LevelDBHashCache
}

// NewMemoryDB constructs a MemoryDB whose background thread pool may run up
// to poolWeight storage scans concurrently, and whose hash cache retains at
// most maxHashes entries absent an explicit purge.
func NewMemoryDB(poolWeight int64, maxHashes int) *MemoryDB {
	return NewMemoryDBWithDurableBacking(poolWeight, maxHashes, nil)
}

// NewMemoryDBWithDurableBacking is NewMemoryDB plus an optional durable
// LevelDBHashCache: every hash MemoryDB records or purges is mirrored to it,
// and a GetAccountsHash miss in the in-memory LRU falls back to it before
// reporting absence.
func NewMemoryDBWithDurableBacking(poolWeight int64, maxHashes int, durable *LevelDBHashCache) *MemoryDB {
	cache, err := lru.New(maxHashes)
	if err != nil {
		// Only size <= 0 causes an error, which is a programming mistake.
		panic(err)
	}
	return &MemoryDB{
		byteCache:  fastcache.New(64 * 1024 * 1024),
		hashCache:  cache,
		poolWeight: poolWeight,
		durable:    durable,
	}
}

// scanStorages computes a deterministic digest across storages by fanning
// per-storage scans out across a bounded worker pool, then folding the
// per-storage digests together in slot order so the result is independent
// of scheduling order. This stands in for the real Merkle accounts hash.
func (m *MemoryDB) scanStorages(ctx context.Context, storages []Storage) (Hash, uint64, error) {
	sorted := make([]Storage, len(storages))
	copy(sorted, storages)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Slot() < sorted[j].Slot() })

	digests := make([][32]byte, len(sorted))
	lamports := make([]uint64, len(sorted))

	sem := semaphore.NewWeighted(m.poolWeight)
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range sorted {
		i, s := i, s
		if err := sem.Acquire(gctx, 1); err != nil {
			return Hash{}, 0, err
		}
		g.Go(func() error {
			defer sem.Release(1)
			digest, lp := m.digestOne(s)
			digests[i] = digest
			lamports[i] = lp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Hash{}, 0, err
	}

	h, _ := blake2b.New256(nil)
	var total uint64
	for i, d := range digests {
		h.Write(d[:])
		total += lamports[i]
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out, total, nil
}

// digestOne returns a per-storage digest and the lamports it contributes.
// The cache lookup/store mirrors the disk layer's fastcache usage: repeated
// scans of the same storage (e.g. the diagnostic re-hash) don't redo work.
func (m *MemoryDB) digestOne(s Storage) ([32]byte, uint64) {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], s.Slot())

	if cached := m.byteCache.Get(nil, key[:]); len(cached) == 40 {
		var digest [32]byte
		copy(digest[:], cached[:32])
		lamports := binary.BigEndian.Uint64(cached[32:])
		return digest, lamports
	}

	// A storage's "content" in this stand-in is simply its slot, hashed
	// directly, so storages at distinct slots get distinct digests; a real
	// accounts database would hash the actual account records it contains.
	h := blake2b.Sum256(key[:])
	lamports := s.Slot() % 1000

	buf := make([]byte, 40)
	copy(buf[:32], h[:])
	binary.BigEndian.PutUint64(buf[32:], lamports)
	m.byteCache.Set(key[:], buf)

	return h, lamports
}

func (m *MemoryDB) UpdateAccountsHash(ctx context.Context, cfg CalcAccountsHashConfig, storages []Storage, slot uint64, stats HashStats) (Hash, uint64, error) {
	logHashStats("updating accounts hash", slot, stats)
	hash, lamports, err := m.scanStorages(ctx, storages)
	if err != nil {
		return Hash{}, 0, err
	}
	m.record(slot, hash, lamports, false)
	return hash, lamports, nil
}

func (m *MemoryDB) CalculateAccountsHash(ctx context.Context, cfg CalcAccountsHashConfig, storages []Storage, stats HashStats) (Hash, uint64, error) {
	return m.scanStorages(ctx, storages)
}

func (m *MemoryDB) UpdateIncrementalAccountsHash(ctx context.Context, cfg CalcAccountsHashConfig, storages []Storage, slot uint64, stats HashStats) (Hash, uint64, error) {
	logHashStats("updating incremental accounts hash", slot, stats)
	hash, lamports, err := m.scanStorages(ctx, storages)
	if err != nil {
		return Hash{}, 0, err
	}
	m.record(slot, hash, lamports, true)
	return hash, lamports, nil
}

func logHashStats(msg string, slot uint64, stats HashStats) {
	log.Debug(msg, "slot", slot, "storages", stats.StorageCount, "sort_us", stats.StorageSortMicros,
		"size_p50", stats.StorageSizeP50, "size_p90", stats.StorageSizeP90, "size_p99", stats.StorageSizeP99)
}

func (m *MemoryDB) record(slot uint64, hash Hash, capitalization uint64, incremental bool) {
	m.mu.Lock()
	m.hashCache.Add(slot, &hashCacheEntry{slot: slot, hash: hash, capitalization: capitalization, incremental: incremental})
	durable := m.durable
	m.mu.Unlock()

	if durable != nil {
		if err := durable.Put(slot, hash, capitalization, incremental); err != nil {
			log.Warn("failed to mirror accounts hash to durable backing", "slot", slot, "err", err)
		}
	}
}

func (m *MemoryDB) GetAccountsHash(slot uint64) (Hash, uint64, bool) {
	m.mu.RLock()
	v, ok := m.hashCache.Get(slot)
	durable := m.durable
	m.mu.RUnlock()

	if ok {
		e := v.(*hashCacheEntry)
		if e.incremental {
			return Hash{}, 0, false
		}
		return e.hash, e.capitalization, true
	}

	// The in-memory LRU evicted this slot (MaxRetainedHashes is a second
	// line of defense beyond the Curator's purge); fall back to durable
	// storage before reporting it absent.
	if durable != nil {
		return durable.Get(slot)
	}
	return Hash{}, 0, false
}

func (m *MemoryDB) GetAccountsHashes() map[uint64]Hash {
	return m.hashesWhere(false)
}

func (m *MemoryDB) GetIncrementalAccountsHashes() map[uint64]Hash {
	return m.hashesWhere(true)
}

func (m *MemoryDB) hashesWhere(incremental bool) map[uint64]Hash {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[uint64]Hash)
	for _, k := range m.hashCache.Keys() {
		v, ok := m.hashCache.Peek(k)
		if !ok {
			continue
		}
		e := v.(*hashCacheEntry)
		if e.incremental == incremental {
			out[e.slot] = e.hash
		}
	}
	return out
}

// PurgeOldAccountsHashes removes every retained hash for a slot strictly
// less than slot.
func (m *MemoryDB) PurgeOldAccountsHashes(slot uint64) {
	m.mu.Lock()
	for _, k := range m.hashCache.Keys() {
		if s, ok := k.(uint64); ok && s < slot {
			m.hashCache.Remove(k)
		}
	}
	durable := m.durable
	m.mu.Unlock()

	if durable != nil {
		if err := durable.PurgeOlderThan(slot); err != nil {
			log.Warn("failed to purge durable accounts hash backing", "slot", slot, "err", err)
		}
	}
}
