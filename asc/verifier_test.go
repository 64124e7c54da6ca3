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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lumoslabs/accounts-snapshot-coordinator/accountsdb"
	"github.com/lumoslabs/accounts-snapshot-coordinator/snapshotconfig"
)

type recordingHandoff struct {
	mu    sync.Mutex
	items []SnapshotPackage
}

func (r *recordingHandoff) Push(pkg SnapshotPackage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, pkg)
}

func (r *recordingHandoff) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

func TestVerifier_ShutsDownOnHasherIOError(t *testing.T) {
	db := &fakeAccountsDB{
		updateHash: func([]accountsdb.Storage, uint64) (accountsdb.Hash, uint64, error) {
			return accountsdb.Hash{}, 0, errors.New("boom")
		},
	}
	q := NewPackageQueue(8)
	require.NoError(t, q.Send(AccountsPackage{
		Kind:          Full(),
		Slot:          1,
		HashAlgorithm: Merkle,
		EpochSchedule: fakeEpochSchedule{},
		Accounts:      db,
	}))

	v := &Verifier{
		Queue:    q,
		Selector: &Selector{},
		Hasher:   &Hasher{},
		Curator:  &Curator{Accounts: db},
		Handoff:  &recordingHandoff{},
		Config:   func() snapshotconfig.Config { return snapshotconfig.Default() },
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := v.Run(ctx)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrHasherIO)
}

func TestVerifier_HandsOffSuccessfullyHashedPackage(t *testing.T) {
	want := accountsdb.Hash{0x42}
	db := &fakeAccountsDB{
		updateHash: func([]accountsdb.Storage, uint64) (accountsdb.Hash, uint64, error) {
			return want, 0, nil
		},
	}
	q := NewPackageQueue(8)
	require.NoError(t, q.Send(AccountsPackage{
		Kind:          Full(),
		Slot:          1,
		HashAlgorithm: Merkle,
		EpochSchedule: fakeEpochSchedule{},
		Accounts:      db,
	}))

	handoff := &recordingHandoff{}
	v := &Verifier{
		Queue:    q,
		Selector: &Selector{},
		Hasher:   &Hasher{},
		Curator:  &Curator{Accounts: db},
		Handoff:  handoff,
		Config:   func() snapshotconfig.Config { return snapshotconfig.Default() },
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for handoff.len() == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	err := v.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, handoff.len())
}
