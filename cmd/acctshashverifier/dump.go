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

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/fjl/memsize"
	"github.com/olekukonko/tablewriter"

	"github.com/lumoslabs/accounts-snapshot-coordinator/accountsdb"
	"github.com/lumoslabs/accounts-snapshot-coordinator/asc"
)

// printQueueDump renders the packages still sitting in the queue when the
// verifier stopped: kind, slot, base slot, and how long ago each was
// enqueued.
func printQueueDump(queued []asc.AccountsPackage) {
	color.New(color.FgCyan, color.Bold).Println("accounts packages still queued")

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Kind", "Slot", "Base slot", "Enqueued ago"})
	for _, pkg := range queued {
		base := "-"
		if pkg.Kind.Snapshot && pkg.Kind.SnapshotKind == asc.IncrementalSnapshot {
			base = fmt.Sprintf("%d", pkg.Kind.BaseSlot)
		}
		table.Append([]string{
			pkg.Kind.String(),
			fmt.Sprintf("%d", pkg.Slot),
			base,
			time.Since(pkg.Enqueued).Truncate(time.Millisecond).String(),
		})
	}
	table.Render()
}

// printSummary renders the run's outcome as a table: one row per completed
// snapshot package, plus the reference accounts database's retained memory
// footprint.
func printSummary(packages []asc.SnapshotPackage, db *accountsdb.MemoryDB) {
	color.New(color.FgCyan, color.Bold).Println("accounts snapshot coordinator — run summary")

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Slot", "Kind", "Hash family", "Hash"})
	for _, pkg := range packages {
		kind := "merkle"
		hash := fmt.Sprintf("%x", pkg.Hash.Hash)
		if pkg.Hash.IsLattice {
			kind = "lattice"
			hash = "(materialized outside ASC)"
		}
		table.Append([]string{
			fmt.Sprintf("%d", pkg.Package.Slot),
			pkg.Package.Kind.String(),
			kind,
			hash,
		})
	}
	table.Render()

	report := memsize.Scan(db)
	color.New(color.FgYellow).Printf("reference accounts database retained memory: %s\n", memsize.HumanSize(report.Total))
}
