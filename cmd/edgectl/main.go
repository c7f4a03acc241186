// Command edgectl queries and controls an edge over its management channel.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/danmuck/edgemgmt/internal/auth"
	"github.com/danmuck/edgemgmt/internal/config"
	"github.com/danmuck/edgemgmt/internal/logging"
	"github.com/danmuck/edgemgmt/internal/observability"
	"github.com/danmuck/edgemgmt/internal/protocol"
	"github.com/danmuck/edgemgmt/internal/protocol/session"
	"github.com/danmuck/edgemgmt/internal/render"
	"github.com/danmuck/edgemgmt/internal/retry"
)

const (
	exitOK    = 0
	exitFail  = 1
	exitUsage = 2
)

var errUsage = errors.New("usage")

func main() {
	logging.ConfigureRuntime()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type cliFlags struct {
	configPath   string
	addr         string
	secret       string
	secretFile   string
	format       string
	columns      string
	timeout      time.Duration
	eventTimeout time.Duration
	retries      int
	metricsAddr  string
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("edgectl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: edgectl [flags] read|write|subscribe <command...>")
		fs.PrintDefaults()
	}
	var f cliFlags
	fs.StringVar(&f.configPath, "config", "", "client config file (toml)")
	fs.StringVar(&f.addr, "addr", "", "edge management address (host:port)")
	fs.StringVar(&f.secret, "secret", "", "management secret")
	fs.StringVar(&f.secretFile, "secret-file", "", "file holding the management secret")
	fs.StringVar(&f.format, "format", "", "output format: table|json|yaml|toml|raw")
	fs.StringVar(&f.columns, "columns", "", "comma separated fields to show")
	fs.DurationVar(&f.timeout, "timeout", 0, "per-reply timeout for read and write")
	fs.DurationVar(&f.eventTimeout, "event-timeout", 0, "timeout while waiting for an event")
	fs.IntVar(&f.retries, "retries", 0, "extra attempts for timed-out reads (writes are never retried)")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "serve /health and /metrics here while subscribed")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	kind, command, err := parseVerb(fs.Args())
	if err != nil {
		fs.Usage()
		return exitUsage
	}

	cfg, err := config.Load(f.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "edgectl: %v\n", err)
		return exitFail
	}
	if err := applyFlags(fs, f, &cfg); err != nil {
		fmt.Fprintf(stderr, "edgectl: %v\n", err)
		return exitUsage
	}

	if err := execute(ctx, cfg, kind, command, parseColumns(f.columns), stdout, stderr); err != nil {
		fmt.Fprintf(stderr, "edgectl: %v\n", err)
		return exitFail
	}
	return exitOK
}

func parseVerb(args []string) (protocol.Kind, string, error) {
	if len(args) < 2 {
		return 0, "", errUsage
	}
	command := strings.Join(args[1:], " ")
	switch strings.ToLower(args[0]) {
	case "read", "r":
		return protocol.KindRead, command, nil
	case "write", "w":
		return protocol.KindWrite, command, nil
	case "subscribe", "s", "listen":
		return protocol.KindSubscribe, command, nil
	default:
		return 0, "", errUsage
	}
}

// applyFlags overlays only the flags given on the command line.
func applyFlags(fs *flag.FlagSet, f cliFlags, cfg *config.ClientConfig) error {
	var err error
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "addr":
			cfg.Addr = strings.TrimSpace(f.addr)
		case "secret":
			cfg.Secret = f.secret
			cfg.SecretFile = ""
		case "secret-file":
			cfg.SecretFile = f.secretFile
			cfg.Secret = ""
		case "format":
			var format render.Format
			format, err = render.ParseFormat(f.format)
			cfg.Format = format
		case "timeout":
			cfg.RequestTimeout = f.timeout
		case "event-timeout":
			cfg.EventTimeout = f.eventTimeout
		case "retries":
			cfg.Retries = f.retries
		case "metrics-addr":
			cfg.MetricsAddr = strings.TrimSpace(f.metricsAddr)
		}
	})
	if err != nil {
		return err
	}
	if fs.Lookup("secret").Value.String() != "" && fs.Lookup("secret-file").Value.String() != "" {
		return errors.New("-secret and -secret-file are mutually exclusive")
	}
	return cfg.Validate()
}

func parseColumns(raw string) []string {
	var out []string
	for _, col := range strings.Split(raw, ",") {
		if col = strings.TrimSpace(col); col != "" {
			out = append(out, col)
		}
	}
	return out
}

func execute(ctx context.Context, cfg config.ClientConfig, kind protocol.Kind, command string, columns []string, stdout, stderr io.Writer) error {
	logger := observability.Logger("edgectl")
	secret, err := cfg.ResolveSecret()
	if err != nil {
		return err
	}
	registry, err := cfg.Registry()
	if err != nil {
		return err
	}
	opts := render.Options{Format: cfg.Format, Registry: registry, Columns: columns}

	sess, err := session.Dial(ctx, cfg.SessionConfig(secret), session.WithLogger(logger))
	if err != nil {
		return err
	}
	defer sess.Close()
	logger.Debug().
		Str("addr", cfg.Addr).
		Str("remote", sess.RemoteAddr()).
		Str("kind", kind.String()).
		Str("secret", auth.Redact(secret)).
		Msg("session open")

	switch kind {
	case protocol.KindSubscribe:
		return listen(ctx, cfg, sess, command, opts, stdout, stderr)
	case protocol.KindWrite:
		// a timed-out write may already have been applied, so it is never retried
		rows, err := sess.Write(ctx, command)
		if err != nil {
			return err
		}
		return render.Rows(stdout, command, rows, opts)
	default:
		rows, err := retry.Do(ctx, cfg.RetryPolicy(), func(ctx context.Context) ([]protocol.Record, error) {
			return sess.Read(ctx, command)
		})
		if err != nil {
			return err
		}
		return render.Rows(stdout, command, rows, opts)
	}
}

// listen subscribes and prints events until ctx ends or the session fails.
func listen(ctx context.Context, cfg config.ClientConfig, sess *session.Session, command string, opts render.Options, stdout, stderr io.Writer) error {
	ok, err := sess.Subscribe(ctx, command)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("could not subscribe")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	serverDone := make(chan error, 1)
	if cfg.MetricsAddr != "" {
		srv := observability.NewServer(observability.ServerOptions{
			Service:     "edgectl",
			Addr:        cfg.MetricsAddr,
			CorsOrigins: cfg.CorsOrigins,
			Logger:      observability.Logger("http"),
			Status: func() map[string]any {
				return map[string]any{"edge": cfg.Addr, "subscription": command}
			},
		})
		go func() { serverDone <- srv.Serve(ctx) }()
	} else {
		serverDone <- nil
	}

	err = receiveLoop(ctx, sess, command, opts, stdout)
	cancel()
	if srvErr := <-serverDone; srvErr != nil {
		fmt.Fprintf(stderr, "edgectl: status server: %v\n", srvErr)
	}
	return err
}

func receiveLoop(ctx context.Context, sess *session.Session, command string, opts render.Options, stdout io.Writer) error {
	for {
		ev, err := sess.ReceiveEvent(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := render.Event(stdout, command, ev, opts); err != nil {
			return err
		}
	}
}
