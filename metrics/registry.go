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

import "sync"

// Registry holds every named instrument ASC has registered. A nil Registry
// argument to the NewRegistered* constructors means "use DefaultRegistry".
type Registry struct {
	mu    sync.Mutex
	items map[string]interface{}
}

// NewRegistry returns an empty, independent registry, whose instrument
// names do not collide with those of any other registry. ASC's own
// instruments and the demo harness use DefaultRegistry.
func NewRegistry() *Registry {
	return &Registry{items: make(map[string]interface{})}
}

// DefaultRegistry is used whenever a nil *Registry is passed to a
// NewRegistered* constructor.
var DefaultRegistry = NewRegistry()

func (r *Registry) getOrRegister(name string, make func() interface{}) interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.items[name]; ok {
		return v
	}
	v := make()
	r.items[name] = v
	return v
}

// Each calls fn once per registered instrument, used by the InfluxDB
// reporter to walk the full instrument set on each flush interval.
func (r *Registry) Each(fn func(name string, i interface{})) {
	r.mu.Lock()
	snapshot := make(map[string]interface{}, len(r.items))
	for k, v := range r.items {
		snapshot[k] = v
	}
	r.mu.Unlock()

	for name, v := range snapshot {
		fn(name, v)
	}
}

func resolve(r *Registry) *Registry {
	if r == nil {
		return DefaultRegistry
	}
	return r
}

// NewRegisteredMeter returns (creating if absent) the named Meter in r.
func NewRegisteredMeter(name string, r *Registry) *Meter {
	v := resolve(r).getOrRegister(name, func() interface{} { return newMeter() })
	return v.(*Meter)
}

// NewRegisteredCounter returns (creating if absent) the named Counter in r.
func NewRegisteredCounter(name string, r *Registry) *Counter {
	v := resolve(r).getOrRegister(name, func() interface{} { return newCounter() })
	return v.(*Counter)
}

// NewRegisteredGauge returns (creating if absent) the named Gauge in r.
func NewRegisteredGauge(name string, r *Registry) *Gauge {
	v := resolve(r).getOrRegister(name, func() interface{} { return newGauge() })
	return v.(*Gauge)
}
