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

import "github.com/lumoslabs/accounts-snapshot-coordinator/metrics"

// Instruments backing the accounts_hash_verifier datapoint, one per field,
// plus meters for selected and dropped packages and the verifier loop's own
// error counter.
var (
	pendingPackagesGauge      = metrics.NewRegisteredGauge("accounts_hash_verifier/num_outstanding_accounts_packages", nil)
	selectedPackagesMeter     = metrics.NewRegisteredMeter("accounts_hash_verifier/selected", nil)
	reenqueuedPackagesMeter   = metrics.NewRegisteredMeter("accounts_hash_verifier/num_re_enqueued_accounts_packages", nil)
	droppedPackagesMeter      = metrics.NewRegisteredMeter("accounts_hash_verifier/dropped", nil)
	enqueuedTimeMeter         = metrics.NewRegisteredMeter("accounts_hash_verifier/enqueued_time_us", nil)
	handlingTimeMeter         = metrics.NewRegisteredMeter("accounts_hash_verifier/handling_time_us", nil)
	calculateHashMeter        = metrics.NewRegisteredMeter("accounts_hash_verifier/calculate_hash", nil)
	calculateIncrementalMeter = metrics.NewRegisteredMeter("accounts_hash_verifier/calculate_incremental_accounts_hash_us", nil)
	verifierLoopErrorsCounter = metrics.NewRegisteredCounter("accounts_hash_verifier/loop_errors", nil)
)
