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
	"encoding/binary"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDBHashCache is a durable alternative to MemoryDB's in-memory LRU
// hash cache, backed by goleveldb. The Curator's purge policy is a
// statement about semantics, not about whether the backing store happens to
// be in-memory or on-disk: the same PurgeOldAccountsHashes contract applies
// either way.
//
// Keys are a big-endian uint64 slot followed by one flag byte (1 for an
// incremental hash, 0 for a full one), so that range scans (used by Purge)
// come back in slot order for free.
type LevelDBHashCache struct {
	db *leveldb.DB
}

// OpenLevelDBHashCache opens (creating if absent) a hash cache at path.
func OpenLevelDBHashCache(path string) (*LevelDBHashCache, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDBHashCache{db: db}, nil
}

func (c *LevelDBHashCache) Close() error { return c.db.Close() }

func slotKey(slot uint64, incremental bool) []byte {
	key := make([]byte, 9)
	binary.BigEndian.PutUint64(key[:8], slot)
	if incremental {
		key[8] = 1
	}
	return key
}

// Put records hash/capitalization for slot.
func (c *LevelDBHashCache) Put(slot uint64, hash Hash, capitalization uint64, incremental bool) error {
	val := make([]byte, 40)
	copy(val[:32], hash[:])
	binary.BigEndian.PutUint64(val[32:], capitalization)
	return c.db.Put(slotKey(slot, incremental), val, nil)
}

// Get returns the full-snapshot hash/capitalization recorded for slot.
func (c *LevelDBHashCache) Get(slot uint64) (Hash, uint64, bool) {
	val, err := c.db.Get(slotKey(slot, false), nil)
	if err != nil {
		return Hash{}, 0, false
	}
	var h Hash
	copy(h[:], val[:32])
	return h, binary.BigEndian.Uint64(val[32:]), true
}

// PurgeOlderThan deletes every entry (full or incremental) keyed under a
// slot strictly less than slot.
func (c *LevelDBHashCache) PurgeOlderThan(slot uint64) error {
	iter := c.db.NewIterator(&util.Range{Limit: slotKey(slot, false)}, nil)
	defer iter.Release()

	batch := new(leveldb.Batch)
	for iter.Next() {
		key := make([]byte, len(iter.Key()))
		copy(key, iter.Key())
		batch.Delete(key)
	}
	if err := iter.Error(); err != nil {
		return err
	}
	return c.db.Write(batch, nil)
}
