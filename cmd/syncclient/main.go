// Copyright (C) 2024 The Foldersync Authors (see the CONTRIBUTORS file).
//
// This program is free software: you can redistribute it and/or modify it
// under the terms of the GNU General Public License as published by the Free
// Software Foundation, either version 3 of the License, or (at your option)
// any later version.
//
// This program is distributed in the hope that it will be useful, but WITHOUT
// ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or
// FITNESS FOR A PARTICULAR PURPOSE. See the GNU General Public License for
// more details.
//
// You should have received a copy of the GNU General Public License along
// with this program. If not, see <http://www.gnu.org/licenses/>.

// Command syncclient watches a local folder, captures filesystem events as
// commands, and runs periodic sync rounds against a syncserver.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/thejerf/suture/v4"
	_ "go.uber.org/automaxprocs"
	"golang.org/x/sync/errgroup"

	"github.com/foldersync/foldersync/internal/capture"
	"github.com/foldersync/foldersync/internal/config"
	"github.com/foldersync/foldersync/internal/logging"
	"github.com/foldersync/foldersync/internal/protocol"
	"github.com/foldersync/foldersync/internal/reporting"
	"github.com/foldersync/foldersync/internal/syncclient"
)

type clientFlags struct {
	ServerHost  string `arg:"" help:"Sync server hostname or IP."`
	ServerPort  int    `arg:"" help:"Sync server TCP port."`
	LocalFolder string `arg:"" type:"existingdir" help:"Folder to watch and keep in sync."`
	SyncPeriod  int    `arg:"" default:"10" help:"Seconds between sync rounds."`
	UserID      string `arg:"" optional:"" help:"Existing user id. Omit or pass the sentinel to onboard as a new user."`
	ConfigFile  string `optional:"" help:"Optional YAML config file layered under these flags."`
	SentryDSN   string `optional:"" help:"Sentry-compatible DSN for fatal-error reporting."`
	Debug       bool   `help:"Enable debug-level logging for the capture and driver facilities."`
}

var cli clientFlags

func main() {
	kong.Parse(&cli, kong.Description("Folder-synchronization client."))

	fileCfg, err := config.LoadClient(cli.ConfigFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	applyClientDefaults(&cli, fileCfg)

	if cli.Debug {
		logging.Default.SetDebug("capture", true)
		logging.Default.SetDebug("syncdriver", true)
	}

	reporter, err := reporting.New(cli.SentryDSN)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	addr := fmt.Sprintf("%s:%d", cli.ServerHost, cli.ServerPort)
	userID := cli.UserID
	deviceID := 0

	if userID == "" || userID == protocol.DefaultUserID {
		userID, err = syncclient.OnboardNewUser(addr, cli.LocalFolder)
		if err != nil {
			reporter.ReportFatal("onboarding", err)
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stdout, "onboarded new user %s\n", userID)
	} else {
		deviceID, err = syncclient.OnboardNewDevice(addr, userID, cli.LocalFolder)
		if err != nil {
			reporter.ReportFatal("onboarding", err)
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stdout, "onboarded device %d for user %s\n", deviceID, userID)
	}

	queue := capture.NewQueue()
	watcher := capture.NewFSWatcher(cli.LocalFolder)
	capturer := capture.NewCapturer(cli.LocalFolder, queue)
	driver := &syncclient.Driver{
		Addr:     addr,
		Folder:   cli.LocalFolder,
		UserID:   userID,
		DeviceID: deviceID,
		Queue:    queue,
	}

	if err := watcher.Start(); err != nil {
		reporter.ReportFatal("watcher", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The watcher's Capturer and the driver's periodic rounds run as two
	// goroutines in one errgroup. The driver stops when the group's context
	// ends; the Capturer stops once watcher.Stop closes its event channel.
	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		capturer.Run(watcher)
		return nil
	})
	group.Go(func() error {
		stopCh := make(chan struct{})
		go func() {
			<-gctx.Done()
			close(stopCh)
		}()
		driver.Run(time.Duration(cli.SyncPeriod)*time.Second, stopCh)
		return nil
	})

	// A suture supervisor runs a service that waits for the errgroup. It
	// does not recover or restart the driver/capturer goroutines: a panic
	// in either still ends the process.
	supervisor := suture.NewSimple("syncclient")
	supervisor.Add(errgroupService{group: group, ctx: gctx})
	go supervisor.Serve(ctx)

	<-ctx.Done()
	watcher.Stop()
	_ = group.Wait()
}

func applyClientDefaults(c *clientFlags, fileCfg config.Client) {
	if fileCfg.ServerHost != "" && c.ServerHost == "" {
		c.ServerHost = fileCfg.ServerHost
	}
	if fileCfg.ServerPort != 0 && c.ServerPort == 0 {
		c.ServerPort = fileCfg.ServerPort
	}
	if fileCfg.LocalFolder != "" && c.LocalFolder == "" {
		c.LocalFolder = fileCfg.LocalFolder
	}
	if fileCfg.SyncPeriodS != 0 && c.SyncPeriod == 10 {
		c.SyncPeriod = fileCfg.SyncPeriodS
	}
	if fileCfg.UserID != "" && c.UserID == "" {
		c.UserID = fileCfg.UserID
	}
	if fileCfg.SentryDSN != "" && c.SentryDSN == "" {
		c.SentryDSN = fileCfg.SentryDSN
	}
}

// errgroupService adapts an in-flight errgroup to suture.Service: Serve
// waits for the group's context to end and returns the group's result.
type errgroupService struct {
	group *errgroup.Group
	ctx   context.Context
}

func (s errgroupService) Serve(ctx context.Context) error {
	<-s.ctx.Done()
	return s.group.Wait()
}
