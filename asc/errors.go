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
	"errors"
	"fmt"
	"io/ioutil"

	"github.com/davecgh/go-spew/spew"

	"github.com/lumoslabs/accounts-snapshot-coordinator/accountsdb"
	"github.com/lumoslabs/accounts-snapshot-coordinator/snapshotconfig"
)

// ErrQueueFull is returned when the package queue's transport is exhausted,
// either on upstream Send or ASC's own re-enqueue. Callers must treat it as
// fatal: the queue is logically unbounded from ASC's perspective.
var ErrQueueFull = errors.New("accounts package queue is full")

// ErrHasherIO is the sentinel wrapped by the Hasher when a storage read
// fails; the Verifier loop treats any error returned by the Hasher as
// fatal and shuts down.
var ErrHasherIO = errors.New("accounts hasher: storage read failed")

// FatalDiagnostic carries a human-readable dump alongside a fatal error.
// Both unrecoverable hashing conditions (missing base hash, capitalization
// mismatch) produce one of these: the Hasher writes its dump to the log.Crit
// line and then panics with it, so the panic value carries the full context
// without recomputing it. It is never returned to the Verifier loop.
type FatalDiagnostic struct {
	Err  error
	Dump string
}

func (f *FatalDiagnostic) Error() string { return f.Err.Error() }
func (f *FatalDiagnostic) Unwrap() error { return f.Err }

// newMissingBaseHashDiagnostic renders the dump for an incremental snapshot
// whose base slot has no cached hash: every full and incremental hash
// currently retained, plus the on-disk archive and bank-snapshot
// inventories, so the post-mortem can tell a purge bug apart from a base
// full snapshot that never completed.
func newMissingBaseHashDiagnostic(pkg AccountsPackage, baseSlot Slot, full, incremental map[uint64]accountsdb.Hash, cfg snapshotconfig.Config) *FatalDiagnostic {
	err := fmt.Errorf("incremental snapshot at slot %d requires an accounts hash for base slot %d, but none is retained", pkg.Slot, baseSlot)
	dump := spew.Sdump(struct {
		Package           AccountsPackage
		BaseSlot          Slot
		FullHashes        map[uint64]accountsdb.Hash
		IncrementalHashes map[uint64]accountsdb.Hash
		ArchiveInventory  []string
		BankSnapshots     []string
	}{pkg, baseSlot, full, incremental,
		dirInventory(cfg.FullSnapshotArchivesDir),
		dirInventory(cfg.BankSnapshotsDir)})
	return &FatalDiagnostic{Err: err, Dump: dump}
}

// dirInventory lists dir's entries for a diagnostic dump. An unset or
// unreadable directory contributes a marker entry instead of aborting: the
// dump is already on a fatal path and must never fail itself.
func dirInventory(dir string) []string {
	if dir == "" {
		return nil
	}
	entries, err := ioutil.ReadDir(dir)
	if err != nil {
		return []string{"<unreadable: " + err.Error() + ">"}
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

// newCapitalizationMismatchDiagnostic renders the dump for a full hash whose
// computed lamports disagree with the upstream assertion: the expected,
// first-pass, and recomputed capitalization.
func newCapitalizationMismatchDiagnostic(pkg AccountsPackage, got, recomputed uint64) *FatalDiagnostic {
	err := fmt.Errorf("accounts hash capitalization mismatch: expected %d, but calculated %d (then recalculated %d)",
		pkg.ExpectedCapitalization, got, recomputed)
	dump := spew.Sdump(struct {
		Package    AccountsPackage
		Expected   uint64
		Calculated uint64
		Recomputed uint64
	}{pkg, pkg.ExpectedCapitalization, got, recomputed})
	return &FatalDiagnostic{Err: err, Dump: dump}
}
