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

// Command acctshashverifier runs the accounts snapshot coordinator against a
// synthetic package producer, purely to exercise and demonstrate the asc
// pipeline end to end. It is not a production entrypoint: the real bank
// execution pipeline that produces AccountsPackage values is out of scope.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"time"

	"golang.org/x/time/rate"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/lumoslabs/accounts-snapshot-coordinator/accountsdb"
	"github.com/lumoslabs/accounts-snapshot-coordinator/asc"
	"github.com/lumoslabs/accounts-snapshot-coordinator/internal/statusserver"
	"github.com/lumoslabs/accounts-snapshot-coordinator/log"
	"github.com/lumoslabs/accounts-snapshot-coordinator/metrics"
	"github.com/lumoslabs/accounts-snapshot-coordinator/pending"
	"github.com/lumoslabs/accounts-snapshot-coordinator/snapshotconfig"
)

var (
	configFlag = cli.StringFlag{
		Name:  "config",
		Usage: "path to a snapshot-config TOML file",
	}
	rateFlag = cli.Float64Flag{
		Name:  "produce-rate",
		Usage: "synthetic AccountsPackage arrivals per second",
		Value: 50,
	}
	durationFlag = cli.DurationFlag{
		Name:  "duration",
		Usage: "how long to run before printing a summary and exiting",
		Value: 5 * time.Second,
	}
	listenFlag = cli.StringFlag{
		Name:  "listen",
		Usage: "address for the read-only status HTTP endpoint",
		Value: "127.0.0.1:6868",
	}
	influxDBAddrFlag = cli.StringFlag{
		Name:  "influxdb-addr",
		Usage: "InfluxDB HTTP address to ship metrics to; metrics sit in the registry unshipped if unset",
	}
	influxDBDatabaseFlag = cli.StringFlag{
		Name:  "influxdb-database",
		Usage: "InfluxDB database to write metrics into",
		Value: "acctshashverifier",
	}
	dumpQueueFlag = cli.BoolFlag{
		Name:  "dump-queue",
		Usage: "render the packages still queued at shutdown as a table",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "acctshashverifier"
	app.Usage = "demo harness for the accounts snapshot coordinator"
	app.Flags = []cli.Flag{configFlag, rateFlag, durationFlag, listenFlag, influxDBAddrFlag, influxDBDatabaseFlag, dumpQueueFlag}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	var controller *snapshotconfig.Controller
	if path := c.String(configFlag.Name); path != "" {
		var err error
		controller, err = snapshotconfig.NewController(path)
		if err != nil {
			return err
		}
	} else {
		controller = snapshotconfig.NewStatic(snapshotconfig.Default())
	}
	if err := controller.Watch(); err != nil {
		return err
	}
	cfg := controller.Config()

	db := accountsdb.NewMemoryDB(cfg.HasherPoolWeight, cfg.MaxRetainedHashes)
	queue := asc.NewPackageQueue(cfg.QueueCapacity)
	pendingPkgs := pending.New()

	verifier := &asc.Verifier{
		Queue:    queue,
		Selector: &asc.Selector{},
		Hasher:   &asc.Hasher{},
		Curator:  &asc.Curator{Accounts: db},
		Handoff:  pendingPkgs,
		Config:   controller.Config,
	}

	status := statusserver.New(pendingPkgs, controller)
	go func() {
		if err := http.ListenAndServe(c.String(listenFlag.Name), status); err != nil {
			log.Warn("status server exited", "err", err)
		}
	}()

	stopMetrics := make(chan struct{})
	go metrics.CollectProcessMetrics(time.Second, stopMetrics)
	if addr := c.String(influxDBAddrFlag.Name); addr != "" {
		reporter, err := metrics.NewInfluxDBReporter(metrics.DefaultRegistry, metrics.InfluxDBConfig{
			Addr:     addr,
			Database: c.String(influxDBDatabaseFlag.Name),
		})
		if err != nil {
			return err
		}
		go reporter.Run(10*time.Second, stopMetrics)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.Duration(durationFlag.Name))
	defer cancel()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt)
	go func() {
		<-sigc
		cancel()
	}()

	stopProducer := make(chan struct{})
	go produce(ctx, queue, db, c.Float64(rateFlag.Name), stopProducer)

	errc := make(chan error, 1)
	go func() { errc <- verifier.Run(ctx) }()

	var runErr error
	select {
	case <-ctx.Done():
		// Wait for the verifier to notice the cancellation, so the queue
		// dump below observes a stopped consumer.
		runErr = <-errc
	case runErr = <-errc:
	}
	close(stopProducer)
	close(stopMetrics)

	if c.Bool(dumpQueueFlag.Name) {
		printQueueDump(queue.DrainAvailable())
	}
	printSummary(pendingPkgs.DrainAll(), db)
	return runErr
}

// produce emits synthetic AccountsPackage values at roughly rateHz per
// second, limited with a token-bucket rate.Limiter.
func produce(ctx context.Context, q *asc.PackageQueue, db *accountsdb.MemoryDB, rateHz float64, stop <-chan struct{}) {
	limiter := rate.NewLimiter(rate.Limit(rateHz), int(rateHz)+1)
	epochs := fixedEpochSchedule{slotsPerEpoch: 432000}

	var slot asc.Slot
	var lastFull asc.Slot
	haveFull := false
	for {
		select {
		case <-stop:
			return
		default:
		}
		if err := limiter.Wait(ctx); err != nil {
			return
		}

		slot += uint64(1 + rand.Intn(4))
		kind := asc.Incremental(lastFull)
		if !haveFull || slot-lastFull > 1000 {
			kind = asc.Full()
			lastFull = slot
			haveFull = true
		}

		storages := syntheticStorages(lastFull, slot)
		pkg := asc.AccountsPackage{
			Kind:                   kind,
			Slot:                   slot,
			Storages:               storages,
			Accounts:               db,
			EpochSchedule:          epochs,
			ExpectedCapitalization: expectedCapitalization(storages),
			HashAlgorithm:          asc.Merkle,
			Enqueued:               time.Now(),
		}
		if err := q.Send(pkg); err != nil {
			log.Error("failed to enqueue synthetic package", "err", err)
			return
		}
	}
}

type fixedEpochSchedule struct{ slotsPerEpoch uint64 }

func (e fixedEpochSchedule) GetEpoch(slot asc.Slot) uint64 { return slot / e.slotsPerEpoch }

type syntheticStorage uint64

func (s syntheticStorage) Slot() uint64      { return uint64(s) }
func (s syntheticStorage) SizeBytes() uint64 { return 4096 + uint64(s)%1024 }

func syntheticStorages(from, to asc.Slot) []accountsdb.Storage {
	var out []accountsdb.Storage
	for s := from; s <= to; s++ {
		out = append(out, syntheticStorage(s))
	}
	return out
}

func expectedCapitalization(storages []accountsdb.Storage) uint64 {
	var total uint64
	for _, s := range storages {
		total += s.Slot() % 1000
	}
	return total
}
