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
	"github.com/lumoslabs/accounts-snapshot-coordinator/accountsdb"
	"github.com/lumoslabs/accounts-snapshot-coordinator/log"
	"github.com/lumoslabs/accounts-snapshot-coordinator/snapshotconfig"
)

// Curator retires stale retained hashes once a newer package of the same
// (or a superseding) kind has been processed. It operates purely on a
// retention threshold rather than walking individual keys itself; the
// actual deletion is delegated to the accounts database.
type Curator struct {
	Accounts accountsdb.AccountsDB
}

// Purge applies the retention policy for one successfully processed package.
// Whether anything is purged at all depends on snapshot generation being
// enabled in cfg.
func (c *Curator) Purge(pkg AccountsPackage, cfg snapshotconfig.Config) {
	threshold, ok := c.retentionThreshold(pkg, cfg.SnapshotGenerationEnabled)
	if !ok {
		log.Debug("retaining accounts hash for a later incremental base lookup", "slot", pkg.Slot, "kind", pkg.Kind)
		return
	}

	log.Info("purging accounts hashes older than retention threshold", "slot", pkg.Slot, "threshold", threshold, "kind", pkg.Kind)
	c.Accounts.PurgeOldAccountsHashes(threshold)
}

// retentionThreshold decides whether this package triggers a purge and up
// to which slot. With snapshot generation disabled, retained hashes serve
// no consumer and are released eagerly regardless of kind. With generation
// enabled, a full snapshot retires everything strictly older than itself,
// since no incremental snapshot can ever reference a base slot that old; an
// incremental snapshot retires nothing on its own (its base slot is still
// the live reference point for the next incremental in the same chain); the
// vestigial EAH kind never purges.
func (c *Curator) retentionThreshold(pkg AccountsPackage, snapshotGenerationEnabled bool) (uint64, bool) {
	if !snapshotGenerationEnabled {
		return pkg.Slot, true
	}
	switch {
	case pkg.Kind.EpochAccountsHash:
		return 0, false
	case pkg.Kind.Snapshot && pkg.Kind.SnapshotKind == FullSnapshot:
		return pkg.Slot, true
	default:
		return 0, false
	}
}
