// Command thoughtsd-upload sends one thought to a thoughtsd server
//
//	thoughtsd-upload [flags] host:port user_id thought
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"time"

	perr "thoughtsd/internal/platform/errors"
	"thoughtsd/internal/platform/logger"

	"thoughtsd/internal/core/frame"
	"thoughtsd/internal/core/version"
	"thoughtsd/internal/services/thoughts/client"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("thoughtsd-upload", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		fTime    = fs.String("time", "", "timestamp as RFC3339 or unix seconds (default now)")
		fRetries = fs.Int("retries", 3, "dial retries when the server refuses, negative disables")
		fTimeout = fs.Duration("timeout", 5*time.Second, "per attempt dial+write timeout")
		fVer     = fs.Bool("version", false, "print version and exit")
	)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: thoughtsd-upload [flags] host:port user_id thought")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *fVer {
		fmt.Fprintln(stdout, version.Info("thoughtsd-upload"))
		return 0
	}
	if fs.NArg() != 3 {
		fs.Usage()
		return 2
	}

	lopt := logger.FromEnv()
	lopt.Writer = stderr
	logger.Init(lopt)

	uid, err := strconv.ParseUint(fs.Arg(1), 10, 32)
	if err != nil {
		fmt.Fprintf(stderr, "bad user_id %q: must be an unsigned 32-bit integer\n", fs.Arg(1))
		return 2
	}
	ts, err := parseTime(*fTime, time.Now())
	if err != nil {
		fmt.Fprintf(stderr, "bad -time: %v\n", err)
		return 2
	}

	c := client.New(fs.Arg(0), client.Options{Timeout: *fTimeout, MaxRetries: retries(*fRetries)})
	t := frame.Thought{UserID: uint32(uid), Timestamp: ts, Text: fs.Arg(2)}
	if err := c.Send(ctx, t); err != nil {
		fmt.Fprintf(stdout, "error: %v\n", err)
		logger.Get().Error().Err(err).Str("code", perr.CodeOf(err).String()).Msg("upload failed")
		return 1
	}
	fmt.Fprintln(stdout, "done")
	return 0
}

// retries maps the flag onto client.Options where 0 means default
func retries(n int) int {
	if n == 0 {
		return -1
	}
	return n
}

// parseTime accepts "", unix seconds or RFC3339
func parseTime(s string, now time.Time) (uint32, error) {
	if s == "" {
		return uint32(now.Unix()), nil
	}
	if n, err := strconv.ParseUint(s, 10, 32); err == nil {
		return uint32(n), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, perr.InvalidArgf("%q is neither unix seconds nor RFC3339", s)
	}
	if t.Unix() < 0 || t.Unix() > int64(^uint32(0)) {
		return 0, perr.InvalidArgf("%q is outside the 32-bit unix range", s)
	}
	return uint32(t.Unix()), nil
}
