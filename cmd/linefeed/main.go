// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"comail.io/go/colog"
	"golang.org/x/net/http2"

	"github.com/ninibe/bigduration"
	"github.com/ninibe/linefeed"
	"github.com/ninibe/linefeed/transport"
)

const (
	// dataPathEnv names the data file to serve. It is the only required setting.
	dataPathEnv = "TEXT_FILE_PATH"

	// workerEnv marks a process as a pre-forked worker. The listener arrives
	// as fd 3 and the index is expected to be ready.
	workerEnv = "LINEFEED_WORKER"

	logsDir = "logs"
)

var (
	debug           = flag.Bool("debug", false, "Start on debug mode")
	listen          = flag.String("listen", ":8080", "Listen address")
	logLevel        = flag.String("loglevel", "info", "Logging level")
	workers         = flag.Int("workers", 0, "Number of pre-forked workers, 0 serves in-process")
	monInterval     = flag.String("monitor_interval", "30s", "Interval for data file staleness checks, 0 disables")
	shutdownTimeout = flag.String("shutdown_timeout", "5s", "Grace period for in-flight requests on shutdown")
	fullCheck       = flag.Bool("check", false, "Run a full index integrity check after bootstrap")
)

func main() {
	flag.Parse()
	colog.Register()

	serverLog := openLog("server.log")
	colog.SetOutput(io.MultiWriter(os.Stderr, serverLog))

	ll, err := colog.ParseLevel(*logLevel)
	fatalOn(err)
	colog.SetMinLevel(ll)

	if *debug {
		colog.SetFlags(log.LstdFlags | log.Lshortfile)
		colog.SetMinLevel(colog.LTrace)
	}

	path := os.Getenv(dataPathEnv)
	if path == "" {
		log.Fatalf("alert: environment variable %s must name the data file\n", dataPathEnv)
	}

	resolved, err := linefeed.ResolveDataPath(path)
	if errors.Is(err, linefeed.ErrPathOutsideRoot) {
		log.Fatalf("alert: SECURITY data path %q escapes the working directory\n", path)
	}
	fatalOn(err)

	mi, err := bigduration.ParseBigDuration(*monInterval)
	fatalOn(err)
	st, err := bigduration.ParseBigDuration(*shutdownTimeout)
	fatalOn(err)

	if os.Getenv(workerEnv) != "" {
		runWorker(resolved, mi, st)
		return
	}

	lines, rebuilt, err := linefeed.PrepareIndex(resolved)
	fatalOn(err)
	log.Printf("info: serving %q with %d lines indexed (rebuilt=%t)", resolved, lines, rebuilt)

	ln, err := net.Listen("tcp", *listen)
	fatalOn(err)
	log.Printf("info: listening on %q", *listen)

	if *workers <= 0 {
		serve(resolved, ln, mi, st)
		return
	}

	supervise(ln.(*net.TCPListener), *workers)
}

// serve bootstraps a LineFile in this process and blocks serving requests
// until SIGINT or SIGTERM triggers a graceful shutdown.
func serve(path string, ln net.Listener, mi, st bigduration.BigDuration) {
	lf, err := linefeed.Open(path, linefeed.MonitorInterval(mi))
	fatalOn(err)

	if *fullCheck {
		if errs := lf.Index().CheckIntegrity(context.Background()); len(errs) > 0 {
			for _, e := range errs {
				log.Printf("error: %s", e)
			}
			log.Fatalf("alert: index failed integrity check with %d errors\n", len(errs))
		}
		log.Printf("info: index passed integrity check")
	}

	ht := transport.NewHTTPTransport(lf)
	ht.SetAccessLog(openLog("access.log"))

	var server http.Server
	server.Handler = ht
	err = http2.ConfigureServer(&server, nil)
	fatalOn(err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig

		log.Printf("info: shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), st.Duration())
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Printf("error: shutdown: %s", err)
		}
	}()

	err = server.Serve(ln)
	if err != nil && err != http.ErrServerClosed {
		log.Fatalf("alert: %s\n", err)
	}

	<-done
	logClose(lf)
}

// supervise pre-forks n workers that inherit the bound listener as fd 3 and
// respawns them when they die. Workers that keep dying right after spawn take
// the whole server down, something is wrong with the bootstrap.
func supervise(ln *net.TCPListener, n int) {
	lnFile, err := ln.File()
	fatalOn(err)

	type exit struct {
		pid   int
		alive time.Duration
		err   error
	}

	exits := make(chan exit, n)
	procs := make(map[int]*os.Process, n)

	spawn := func() {
		cmd := exec.Command(os.Args[0], os.Args[1:]...)
		cmd.Env = append(os.Environ(), workerEnv+"=1")
		cmd.ExtraFiles = []*os.File{lnFile}
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		err := cmd.Start()
		fatalOn(err)

		procs[cmd.Process.Pid] = cmd.Process
		log.Printf("info: worker started pid=%d", cmd.Process.Pid)

		go func(started time.Time) {
			werr := cmd.Wait()
			exits <- exit{cmd.Process.Pid, time.Since(started), werr}
		}(time.Now())
	}

	for i := 0; i < n; i++ {
		spawn()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	earlyDeaths := 0
	for {
		select {
		case s := <-sig:
			log.Printf("info: %s received, stopping workers", s)
			for pid, p := range procs {
				if err := p.Signal(syscall.SIGTERM); err != nil {
					log.Printf("error: can't signal worker pid=%d: %s", pid, err)
				}
			}
			for range procs {
				<-exits
			}
			os.Exit(0)

		case e := <-exits:
			delete(procs, e.pid)
			log.Printf("warn: worker died pid=%d after %s: %v", e.pid, e.alive, e.err)

			if e.alive < time.Second {
				earlyDeaths++
			} else {
				earlyDeaths = 0
			}
			if earlyDeaths >= 3 {
				log.Fatalf("alert: workers keep dying on bootstrap, giving up\n")
			}

			spawn()
		}
	}
}

// runWorker is the post-fork entry point: it recovers the inherited listener
// and bootstraps its own LineFile, never reusing state from the master.
func runWorker(path string, mi, st bigduration.BigDuration) {
	f := os.NewFile(3, "listener")
	ln, err := net.FileListener(f)
	fatalOn(err)
	logClose(f)

	log.Printf("info: worker bootstrap pid=%d", os.Getpid())
	serve(path, ln, mi, st)
}

// openLog opens a log file under logs/, creating the directory on demand.
func openLog(name string) *os.File {
	err := os.MkdirAll(logsDir, 0755)
	fatalOn(err)

	f, err := os.OpenFile(filepath.Join(logsDir, name), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0666)
	fatalOn(err)

	return f
}

func fatalOn(err error) {
	if err != nil {
		log.Fatalf("alert: %s\n", err)
	}
}

func logClose(c io.Closer) {
	if err := c.Close(); err != nil {
		log.Printf("error: %s", err)
	}
}
