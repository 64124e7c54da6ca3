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

package metrics

import (
	"os"
	"time"

	"github.com/elastic/gosigar"
)

var processRSSGauge = NewRegisteredGauge("system/memory/resident", nil)

// CollectProcessMetrics samples the running process's resident set size
// every d until stop is closed.
func CollectProcessMetrics(d time.Duration, stop <-chan struct{}) {
	pid := os.Getpid()
	ticker := time.NewTicker(d)
	defer ticker.Stop()

	var mem gosigar.ProcMem
	for {
		select {
		case <-ticker.C:
			if err := mem.Get(pid); err == nil {
				processRSSGauge.Update(int64(mem.Resident))
			}
		case <-stop:
			return
		}
	}
}
