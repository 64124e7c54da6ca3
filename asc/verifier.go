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
	"time"

	"github.com/lumoslabs/accounts-snapshot-coordinator/log"
	"github.com/lumoslabs/accounts-snapshot-coordinator/snapshotconfig"
)

// defaultPollInterval is how long the Verifier sleeps when a drain finds
// the queue empty: roughly one slot duration, so a package emitted right
// after a miss waits at most one slot before being picked up.
const defaultPollInterval = 400 * time.Millisecond

// Verifier runs the main accounts-hash-verification loop: select, hash,
// purge, hand off, repeat, until its context is canceled. A Hasher error
// (an accounts-database I/O failure) is always fatal and stops the loop; a
// panic from the Hasher (capitalization mismatch, missing base hash, an EAH
// package reaching it) is left to propagate and crash the process, since
// each one means state downstream consumers cannot tolerate.
type Verifier struct {
	Queue    *PackageQueue
	Selector *Selector
	Hasher   *Hasher
	Curator  *Curator
	Handoff  Handoff
	Config   func() snapshotconfig.Config

	// PollInterval overrides the empty-queue sleep; zero means
	// defaultPollInterval.
	PollInterval time.Duration
}

// Run blocks until ctx is canceled or the Hasher reports an I/O error, in
// which case it returns that error so the caller (typically main) can log
// it and exit non-zero. Packages are processed back to back while the queue
// has work; the loop only sleeps when a drain comes up empty.
func (v *Verifier) Run(ctx context.Context) error {
	interval := v.PollInterval
	if interval == 0 {
		interval = defaultPollInterval
	}

	log.Info("accounts hash verifier starting", "thread", "solAcctHashVer")
	for {
		select {
		case <-ctx.Done():
			log.Info("accounts hash verifier stopping")
			return nil
		default:
		}

		handled, err := v.tick(ctx)
		if err != nil {
			verifierLoopErrorsCounter.Inc(1)
			return err
		}
		if handled {
			continue
		}
		select {
		case <-ctx.Done():
			log.Info("accounts hash verifier stopping")
			return nil
		case <-time.After(interval):
		}
	}
}

func (v *Verifier) tick(ctx context.Context) (bool, error) {
	handlingStart := time.Now()
	cfg := v.Config()

	result, err := v.Selector.Select(v.Queue)
	if err != nil {
		return false, err
	}
	if result == nil {
		return false, nil
	}

	pendingPackagesGauge.Update(int64(result.NumObserved))
	selectedPackagesMeter.Mark(1)
	reenqueuedPackagesMeter.Mark(int64(result.NumReenqueued))
	droppedPackagesMeter.Mark(int64(result.NumObserved - result.NumReenqueued - 1))

	pkg := result.Chosen
	enqueuedTimeMeter.Mark(time.Since(pkg.Enqueued).Microseconds())

	hash, incremental, timings, err := v.Hasher.CalculateAndVerify(ctx, pkg, cfg)
	if err != nil {
		log.Error("accounts hash calculation failed", "slot", pkg.Slot, "kind", pkg.Kind, "err", err)
		return false, err
	}
	if timings.calculateHashMicros != 0 {
		calculateHashMeter.Mark(timings.calculateHashMicros)
	}
	if timings.calculateIncrementalHashMicros != 0 {
		calculateIncrementalMeter.Mark(timings.calculateIncrementalHashMicros)
	}

	v.Curator.Purge(pkg, cfg)

	if pkg.Kind.Snapshot {
		v.Handoff.Push(SnapshotPackage{Package: pkg, Hash: hash, Incremental: incremental})
	}

	handlingTimeMeter.Mark(time.Since(handlingStart).Microseconds())
	log.Info("accounts hash verified", "slot", pkg.Slot, "kind", pkg.Kind, "reenqueued", result.NumReenqueued,
		"enqueued_us", time.Since(pkg.Enqueued).Microseconds(), "handling_us", time.Since(handlingStart).Microseconds())

	return true, nil
}
