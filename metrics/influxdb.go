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
	"time"

	influxClient "github.com/influxdata/influxdb/client/v2"

	"github.com/lumoslabs/accounts-snapshot-coordinator/log"
)

// InfluxDBConfig configures the periodic reporter.
type InfluxDBConfig struct {
	Addr     string
	Database string
	Username string
	Password string
	Tags     map[string]string
}

// InfluxDBReporter periodically writes every instrument in a Registry to an
// InfluxDB server as a single line-protocol batch.
type InfluxDBReporter struct {
	reg    *Registry
	client influxClient.Client
	cfg    InfluxDBConfig
}

// NewInfluxDBReporter dials addr and returns a reporter for reg. Dialing an
// HTTP client never itself blocks on the server being reachable.
func NewInfluxDBReporter(reg *Registry, cfg InfluxDBConfig) (*InfluxDBReporter, error) {
	c, err := influxClient.NewHTTPClient(influxClient.HTTPConfig{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
	})
	if err != nil {
		return nil, err
	}
	return &InfluxDBReporter{reg: reg, client: c, cfg: cfg}, nil
}

// Run flushes every d until stop is closed.
func (r *InfluxDBReporter) Run(d time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(d)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := r.send(); err != nil {
				log.Warn("influxdb metrics flush failed", "err", err)
			}
		case <-stop:
			return
		}
	}
}

func (r *InfluxDBReporter) send() error {
	bp, err := influxClient.NewBatchPoints(influxClient.BatchPointsConfig{Database: r.cfg.Database})
	if err != nil {
		return err
	}

	now := time.Now()
	r.reg.Each(func(name string, i interface{}) {
		fields := map[string]interface{}{}
		switch v := i.(type) {
		case *Meter:
			fields["count"] = v.Count()
			fields["rate1"] = v.Rate1()
		case *Counter:
			fields["count"] = v.Count()
		case *Gauge:
			fields["value"] = v.Value()
		default:
			return
		}
		pt, err := influxClient.NewPoint(name, r.cfg.Tags, fields, now)
		if err != nil {
			return
		}
		bp.AddPoint(pt)
	})

	return r.client.Write(bp)
}
