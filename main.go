// SPDX-License-Identifier: ISC
// Copyright (c) 2022-2023 Slide Computer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// slided - non-fungible token registry daemon
//
// Holds the ledger state machine over a file backed stable region and
// a LevelDB snapshot store.  The dispatch layer that exposes the
// operations over a wire transport is plugged in on top of the ledger
// object; this shell owns process lifecycle, logging and restart.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bitmark-inc/exitwithstatus"
	"github.com/bitmark-inc/getoptions"
	"github.com/bitmark-inc/logger"

	"github.com/slide-computer/slided/account"
	"github.com/slide-computer/slided/blockstore"
	"github.com/slide-computer/slided/configuration"
	"github.com/slide-computer/slided/fault"
	"github.com/slide-computer/slided/ledger"
	"github.com/slide-computer/slided/messagebus"
	"github.com/slide-computer/slided/stable"
	"github.com/slide-computer/slided/storage"
)

// set by the linker: go build -ldflags "-X main.version=M.N" ./...
var version = "zero" // do not change this value

// main program
func main() {
	// ensure exit handler is first
	defer exitwithstatus.Handler()

	flags := []getoptions.Option{
		{Long: "help", HasArg: getoptions.NO_ARGUMENT, Short: 'h'},
		{Long: "quiet", HasArg: getoptions.NO_ARGUMENT, Short: 'q'},
		{Long: "version", HasArg: getoptions.NO_ARGUMENT, Short: 'V'},
		{Long: "config-file", HasArg: getoptions.REQUIRED_ARGUMENT, Short: 'c'},
	}

	program, options, _, err := getoptions.GetOS(flags)
	if nil != err {
		exitwithstatus.Message("%s: getoptions error: %s", program, err)
	}

	if len(options["version"]) > 0 {
		exitwithstatus.Message("%s: version: %s", program, version)
	}

	if len(options["help"]) > 0 {
		exitwithstatus.Message("usage: %s [--help] [--quiet] [--version] --config-file=FILE", program)
	}

	if 1 != len(options["config-file"]) {
		exitwithstatus.Message("%s: exactly one config-file option is required, %d were detected", program, len(options["config-file"]))
	}

	// read options and parse the configuration file
	configurationFile := options["config-file"][0]
	theConfiguration, err := configuration.GetConfiguration(configurationFile)
	if nil != err {
		exitwithstatus.Message("%s: failed to read configuration from: %q  error: %s", program, configurationFile, err)
	}

	// start logging
	if err = logger.Initialise(theConfiguration.Logging); nil != err {
		exitwithstatus.Message("%s: logger setup failed with error: %s", program, err)
	}
	defer logger.Finalise()

	err = fault.Initialise()
	if nil != err {
		exitwithstatus.Message("%s: fault setup failed with error: %s", program, err)
	}
	defer fault.Finalise()

	// create a logger channel for the main program
	log := logger.New("main")
	defer log.Info("finished")
	log.Info("starting…")
	log.Infof("version: %s", version)

	// ------------------
	// start of real main
	// ------------------

	// optional PID file
	// use if not running under a supervisor program like daemon(8)
	if "" != theConfiguration.PidFile {
		lockFile, err := os.OpenFile(theConfiguration.PidFile, os.O_WRONLY|os.O_EXCL|os.O_CREATE, os.ModeExclusive|0600)
		if err != nil {
			if os.IsExist(err) {
				exitwithstatus.Message("%s: another instance is already running", program)
			}
			exitwithstatus.Message("%s: PID file: %q creation failed, error: %s", program, theConfiguration.PidFile, err)
		}
		fmt.Fprintf(lockFile, "%d\n", os.Getpid())
		lockFile.Close()
		defer os.Remove(theConfiguration.PidFile)
	}

	// start the snapshot store
	log.Info("initialise storage")
	err = storage.Initialise(theConfiguration.SnapshotDatabase)
	if nil != err {
		log.Criticalf("storage initialise error: %s", err)
		exitwithstatus.Message("storage initialise error: %s", err)
	}
	defer storage.Finalise()

	// open the stable region holding the durable history
	log.Infof("open stable region: %q", theConfiguration.StableFile)
	region, err := stable.OpenFile(theConfiguration.StableFile)
	if nil != err {
		log.Criticalf("stable region open error: %s", err)
		exitwithstatus.Message("stable region open error: %s", err)
	}
	defer region.Close()

	// configuration already validated these
	registry, err := account.AccountFromString(theConfiguration.Registry.Identity)
	if nil != err {
		exitwithstatus.Message("registry identity error: %s", err)
	}

	store, err := blockstore.New(region, uint64(theConfiguration.BlockSize), registry)
	if nil != err {
		log.Criticalf("blockstore error: %s", err)
		exitwithstatus.Message("blockstore error: %s", err)
	}

	l := ledger.New(store, region, registry, nil, nil)

	// restore from the snapshot; reindex or bootstrap without one
	found, err := l.Restore()
	if nil != err {
		log.Criticalf("restore error: %s", err)
		exitwithstatus.Message("restore error: %s", err)
	}
	if found {
		log.Infof("restored registry: %q  tx total: %d", l.Name(), l.TxTotal())
	} else if 0 != l.DurableRecords() {
		// no snapshot but the region already holds flushed history;
		// bootstrapping would overwrite it from offset zero
		err = l.Reindex()
		if nil != err {
			log.Criticalf("reindex error: %s", err)
			exitwithstatus.Message("reindex error: %s", err)
		}
		log.Infof("reindexed registry from durable records: tx total: %d", l.TxTotal())
	} else if "" != theConfiguration.Registry.Custodian {
		custodian, err := account.AccountFromString(theConfiguration.Registry.Custodian)
		if nil != err {
			exitwithstatus.Message("custodian identity error: %s", err)
		}
		_, err = l.Init(theConfiguration.Registry.Name, theConfiguration.Registry.Symbol, custodian.Owner)
		if nil != err {
			log.Criticalf("init error: %s", err)
			exitwithstatus.Message("init error: %s", err)
		}
		log.Infof("bootstrapped registry: %q", l.Name())
	} else {
		err = l.Reindex()
		if nil != err {
			log.Criticalf("reindex error: %s", err)
			exitwithstatus.Message("reindex error: %s", err)
		}
		log.Infof("reindexed registry from durable records: tx total: %d", l.TxTotal())
	}

	// drain committed event announcements into the log
	go func() {
		eventLog := logger.New("events")
		for message := range messagebus.Chan() {
			eventLog.Infof("tx %d: %s", message.TxId, message.Event.Operation)
		}
	}()

	// wait for CTRL-C before shutting down to allow manual testing
	if 0 == len(options["quiet"]) {
		fmt.Printf("\n\nWaiting for CTRL-C (SIGINT) or 'kill <pid>' (SIGTERM)…")
	}

	// turn Signals into channel messages
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	sig := <-ch
	log.Infof("received signal: %v", sig)
	if 0 == len(options["quiet"]) {
		fmt.Printf("\nreceived signal: %v\n", sig)
		fmt.Printf("\nshutting down…\n")
	}

	log.Info("shutting down…")
	err = l.Snapshot()
	if nil != err {
		log.Criticalf("snapshot error: %s", err)
	}
	err = region.Sync()
	if nil != err {
		log.Criticalf("stable region sync error: %s", err)
	}
}
