package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Brownie44l1/originserver/internal/handler"
	"github.com/Brownie44l1/originserver/internal/server"
)

const shutdownTimeout = 30 * time.Second

type options struct {
	server    server.Config
	logLevel  string
	logFormat string
}

// parseArgs reads "[flags] <port> <document-root>"
func parseArgs(args []string, stderr io.Writer) (options, error) {
	defaults := server.DefaultConfig()
	opts := options{server: defaults}

	fs := flag.NewFlagSet("originserver", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: originserver [flags] <port> <document-root>\n")
		fs.PrintDefaults()
	}
	fs.IntVar(&opts.server.Workers, "workers", defaults.Workers, "number of connections served concurrently")
	fs.IntVar(&opts.server.QueueSize, "queue", defaults.QueueSize, "accepted connections waiting for a worker")
	fs.DurationVar(&opts.server.ReadTimeout, "read-timeout", 0, "deadline for reading a request (0 disables)")
	fs.BoolVar(&opts.server.Confine, "confine", false, "answer 404 for targets outside the document root")
	fs.StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	fs.StringVar(&opts.logFormat, "log-format", server.FormatConsole, "log format (console or json)")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return opts, fmt.Errorf("expected <port> <document-root>, got %d arguments", fs.NArg())
	}

	port, err := strconv.Atoi(fs.Arg(0))
	if err != nil || port < 1 || port > 65535 {
		return opts, fmt.Errorf("invalid port %q", fs.Arg(0))
	}
	opts.server.Addr = net.JoinHostPort("", strconv.Itoa(port))

	root, err := filepath.Abs(fs.Arg(1))
	if err != nil {
		return opts, fmt.Errorf("document root: %w", err)
	}
	opts.server.DocumentRoot = root

	return opts, opts.server.Validate()
}

func run(args []string, stdout, stderr io.Writer) error {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		return err
	}

	out := stderr
	if opts.logFormat == server.FormatJSON {
		out = stdout
	}
	log, err := server.NewLogger(out, opts.logLevel, opts.logFormat)
	if err != nil {
		return err
	}

	h := handler.New(handler.Config{
		Root:    opts.server.DocumentRoot,
		Confine: opts.server.Confine,
	})
	srv := server.New(opts.server, h, log)
	if err := srv.Listen(); err != nil {
		return fmt.Errorf("listen on %s: %w", opts.server.Addr, err)
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve() }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errc:
		return err
	case sig := <-sigChan:
		log.Info().Stringer("signal", sig).Msg("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, server.ErrServerClosed) {
		return err
	}

	logStats(log, srv.Stats())
	return nil
}

func logStats(log zerolog.Logger, stats server.MetricsSnapshot) {
	log.Info().
		Int64("requests", stats.RequestsTotal).
		Int64("errors_4xx", stats.Errors4xx).
		Int64("errors_5xx", stats.Errors5xx).
		Int64("dropped", stats.Dropped).
		Dur("avg_latency", stats.AverageLatency).
		Msg("server stopped")
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "originserver: %v\n", err)
		os.Exit(1)
	}
}
