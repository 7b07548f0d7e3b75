// Command thoughtsd accepts framed thoughts over TCP and prints them once per flush interval
//
//	thoughtsd [flags] host:port
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"thoughtsd/internal/core/version"
	"thoughtsd/internal/modkit"
	"thoughtsd/internal/platform/config"
	"thoughtsd/internal/platform/logger"
	"thoughtsd/internal/platform/metrics"
	phttp "thoughtsd/internal/platform/net/http"
	"thoughtsd/internal/platform/net/middleware"

	thoughts "thoughtsd/internal/services/thoughts/module"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run returns the process exit code: 0 after a clean shutdown, 1 on startup failure, 2 on bad usage
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("thoughtsd", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		fFlush = fs.Duration("flush", 0, "flush interval (default 1s, env THOUGHTS_FLUSH_INTERVAL)")
		fAdmin = fs.String("admin", "", "admin http address for /healthz, /stats, /metrics (env THOUGHTS_ADMIN_ADDR)")
		fPprof = fs.Bool("pprof", false, "mount /debug/pprof on the admin server")
		fMax   = fs.Int("max-conns", 0, "cap on concurrently served connections, 0 = unlimited")
		fTZ    = fs.String("tz", "", "zone for report timestamps, e.g. UTC (default local)")
		fVer   = fs.Bool("version", false, "print version and exit")
	)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: thoughtsd [flags] host:port")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *fVer {
		fmt.Fprintln(stdout, version.Info("thoughtsd"))
		return 0
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}

	lopt := logger.FromEnv()
	lopt.Writer = stderr
	log := logger.New(lopt)

	over := thoughts.Options{
		Addr:          fs.Arg(0),
		FlushInterval: *fFlush,
		AdminAddr:     *fAdmin,
		AdminPprof:    *fPprof,
		MaxConns:      *fMax,
	}
	if *fTZ != "" {
		loc, err := time.LoadLocation(*fTZ)
		if err != nil {
			fmt.Fprintf(stderr, "bad -tz: %v\n", err)
			return 2
		}
		over.Location = loc
	}

	deps := modkit.Deps{
		Log:     log,
		Cfg:     config.New(),
		Metrics: metrics.NewCollector("thoughtsd"),
		Out:     stdout,
	}
	mod, err := thoughts.New(deps, over)
	if err != nil {
		return fail(stdout, log, err, "invalid options")
	}
	svc := mod.Service()

	// bind before anything else so a busy or malformed address never reaches the accept loop
	if err := svc.Listen(); err != nil {
		return fail(stdout, log, err, "bind failed")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return svc.Run(gctx) })

	if addr := mod.Options().AdminAddr; addr != "" {
		admin := phttp.NewServer(addr, log, func(m *chi.Mux) {
			m.Use(chimw.RequestID)
			m.Use(middleware.RecoverJSON(&log))
			m.Use(middleware.AccessLogZerolog(middleware.AccessLogOptions{Slow: time.Second, Log: &log}))
		})
		mod.MountRoutes(admin.Router())
		g.Go(func() error { return admin.Run(gctx) })
	}

	if err := g.Wait(); err != nil {
		return fail(stdout, log, err, "server stopped")
	}
	return 0
}

// fail prints the error line on the report output and logs it
func fail(stdout io.Writer, log logger.Logger, err error, msg string) int {
	fmt.Fprintf(stdout, "error: %v\n", err)
	log.Error().Err(err).Msg(msg)
	return 1
}
