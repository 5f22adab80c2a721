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

// Command syncserver runs the central folder-synchronization server: it
// listens for client connections, onboards new users and devices, and
// serves sync rounds against the in-memory user registry.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/thejerf/suture/v4"
	_ "go.uber.org/automaxprocs"
	"golang.org/x/net/netutil"

	"github.com/foldersync/foldersync/internal/config"
	"github.com/foldersync/foldersync/internal/logging"
	"github.com/foldersync/foldersync/internal/reporting"
	"github.com/foldersync/foldersync/internal/statusapi"
	"github.com/foldersync/foldersync/internal/syncserver"
)

type serverFlags struct {
	ListenPort    int    `arg:"" help:"TCP port to listen on."`
	RemotesRoot   string `default:"./remotes" help:"Root directory for per-user authoritative folders."`
	ListenBacklog int64  `default:"5" help:"Maximum concurrent sync rounds in flight (5-7 per spec)."`
	ConfigFile    string `optional:"" help:"Optional YAML config file layered under these flags."`
	StatusListen  string `default:"127.0.0.1:8222" help:"Address for the /metrics and /healthz HTTP surface."`
	SentryDSN     string `optional:"" help:"Sentry-compatible DSN for fatal-error reporting."`
	Debug         bool   `help:"Enable debug-level logging for the dispatch facility."`
}

var cli serverFlags

func main() {
	kong.Parse(&cli, kong.Description("Central folder-synchronization server."))

	fileCfg, err := config.LoadServer(cli.ConfigFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	applyServerDefaults(&cli, fileCfg)

	if cli.Debug {
		logging.Default.SetDebug("dispatch", true)
	}

	reporter, err := reporting.New(cli.SentryDSN)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cli.RemotesRoot, 0o777); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cli.ListenPort))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	// Bound accepted-but-unserved connections at the listener itself, ahead
	// of the dispatcher's own round-concurrency semaphore, so a slow client
	// can't hold a bare accepted socket outside the configured backlog.
	ln = netutil.LimitListener(ln, int(cli.ListenBacklog))

	registry := syncserver.NewRegistry()
	dispatcher := syncserver.NewDispatcher(registry, cli.RemotesRoot, cli.ListenBacklog, reporter)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A suture supervisor restarts the accept loop if it ever panics or
	// returns a transient error, without tearing down the whole process.
	supervisor := suture.NewSimple("syncserver")
	supervisor.Add(acceptService{dispatcher: dispatcher, ln: ln})

	statusSrv := &http.Server{Addr: cli.StatusListen, Handler: statusapi.New()}
	go func() {
		if err := statusSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintln(os.Stderr, "status server:", err)
		}
	}()

	go supervisor.Serve(ctx)

	<-ctx.Done()
	ln.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	statusSrv.Shutdown(shutdownCtx)
}

func applyServerDefaults(c *serverFlags, fileCfg config.Server) {
	if fileCfg.ListenPort != 0 && c.ListenPort == 0 {
		c.ListenPort = fileCfg.ListenPort
	}
	if fileCfg.RemotesRoot != "" && c.RemotesRoot == "./remotes" {
		c.RemotesRoot = fileCfg.RemotesRoot
	}
	if fileCfg.ListenBacklog != 0 && c.ListenBacklog == 5 {
		c.ListenBacklog = int64(fileCfg.ListenBacklog)
	}
	if fileCfg.SentryDSN != "" && c.SentryDSN == "" {
		c.SentryDSN = fileCfg.SentryDSN
	}
	if fileCfg.StatusListen != "" && c.StatusListen == "127.0.0.1:8222" {
		c.StatusListen = fileCfg.StatusListen
	}
}

// acceptService adapts Dispatcher.Serve to suture.Service.
type acceptService struct {
	dispatcher *syncserver.Dispatcher
	ln         net.Listener
}

func (s acceptService) Serve(ctx context.Context) error {
	return s.dispatcher.Serve(ctx, s.ln)
}
