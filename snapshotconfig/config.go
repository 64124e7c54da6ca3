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

// Package snapshotconfig holds the operator-tunable policy knobs the
// accounts snapshot coordinator reads at startup and may reload at runtime:
// whether snapshot generation (and therefore hash purging) is enabled, how
// large the package queue is, and how many goroutines the Hasher's
// background pool may use. Config is loaded from TOML.
package snapshotconfig

import (
	"os"
	"reflect"

	"github.com/naoina/toml"
)

// Config is the live, reloadable policy for one ASC instance.
type Config struct {
	// SnapshotGenerationEnabled gates both snapshot archive creation and the
	// Curator's hash-purge policy.
	SnapshotGenerationEnabled bool

	// FullSnapshotArchivesDir and BankSnapshotsDir locate the downstream
	// packager's output and the per-bank snapshot state. ASC never writes
	// them; they are listed in the diagnostic dump when an incremental
	// snapshot's base hash is missing.
	FullSnapshotArchivesDir string
	BankSnapshotsDir        string

	// FullSnapshotIntervalSlots and IncrementalSnapshotIntervalSlots are
	// informational only: ASC itself never reads them (the bank-execution
	// pipeline decides when to emit packages), and the status endpoint does
	// not report them.
	FullSnapshotIntervalSlots        uint64
	IncrementalSnapshotIntervalSlots uint64

	// QueueCapacity sizes the PackageQueue's channel buffer.
	QueueCapacity int

	// HasherPoolWeight bounds the accounts database's background worker
	// pool.
	HasherPoolWeight int64

	// MaxRetainedHashes caps MemoryDB's LRU hash cache as a second line of
	// defense beyond the Curator's slot-based purge.
	MaxRetainedHashes int
}

// Default returns the policy a freshly started coordinator uses absent any
// config file: snapshot generation on, mainnet-flavored intervals.
func Default() Config {
	return Config{
		SnapshotGenerationEnabled:        true,
		FullSnapshotIntervalSlots:        25000,
		IncrementalSnapshotIntervalSlots: 100,
		QueueCapacity:                    4096,
		HasherPoolWeight:                 4,
		MaxRetainedHashes:                1024,
	}
}

// tomlSettings tolerates unknown fields rather than rejecting the config
// file outright, so a file written for a newer release still loads.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, field string) string { return field },
	FieldToKey:    func(rt reflect.Type, field string) string { return field },
	MissingField:  func(rt reflect.Type, field string) error { return nil },
}

// Load reads and parses a TOML config file, starting from Default() so that
// a partial file only overrides the fields it sets.
func Load(path string) (Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()

	if err := tomlSettings.NewDecoder(f).Decode(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
