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

package snapshotconfig

import (
	"sync"

	"github.com/rjeczalik/notify"

	"github.com/lumoslabs/accounts-snapshot-coordinator/log"
)

// Controller watches a config file on disk and hot-swaps the in-memory
// Config whenever it changes, so an operator can flip
// SnapshotGenerationEnabled without restarting the coordinator. Callers
// re-read Config() once per loop iteration rather than caching it.
type Controller struct {
	path string

	mu  sync.RWMutex
	cur Config

	events chan notify.EventInfo
	stop   chan struct{}
	done   chan struct{}
}

// NewStatic returns a Controller serving a fixed Config that never reloads.
// Watch is a no-op on a static controller. Useful for callers (tests, the
// demo harness with no --config flag) that want the Controller interface
// without a backing file.
func NewStatic(cfg Config) *Controller {
	done := make(chan struct{})
	close(done)
	return &Controller{cur: cfg, stop: make(chan struct{}), done: done}
}

// NewController loads path once synchronously and returns a Controller
// serving that config; call Watch to start picking up subsequent edits.
func NewController(path string) (*Controller, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	done := make(chan struct{})
	close(done)
	return &Controller{
		path:   path,
		cur:    cfg,
		events: make(chan notify.EventInfo, 8),
		stop:   make(chan struct{}),
		done:   done,
	}, nil
}

// Config returns the currently active configuration.
func (c *Controller) Config() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cur
}

// Watch starts a background goroutine that reloads Config on every write to
// the watched file, until Stop is called. Reload failures are logged and
// otherwise ignored: an operator mid-edit of the file may transiently leave
// it unparsable, and ASC should keep running on the last-good config rather
// than abort.
//
// Calling Watch on a static controller, or not calling it at all, leaves
// done pre-closed so Stop never blocks waiting for a goroutine that was
// never started.
func (c *Controller) Watch() error {
	if c.path == "" {
		return nil
	}
	if err := notify.Watch(c.path, c.events, notify.Write); err != nil {
		return err
	}
	c.done = make(chan struct{})
	go c.loop()
	return nil
}

func (c *Controller) loop() {
	defer close(c.done)
	defer notify.Stop(c.events)
	for {
		select {
		case <-c.events:
			cfg, err := Load(c.path)
			if err != nil {
				log.Warn("failed to reload snapshot config, keeping previous values", "path", c.path, "err", err)
				continue
			}
			c.mu.Lock()
			c.cur = cfg
			c.mu.Unlock()
			log.Info("reloaded snapshot config", "path", c.path, "snapshot_generation_enabled", cfg.SnapshotGenerationEnabled)
		case <-c.stop:
			return
		}
	}
}

// Stop halts the watch goroutine and waits for it to exit.
func (c *Controller) Stop() {
	close(c.stop)
	<-c.done
}
