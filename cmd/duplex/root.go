package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	flag "github.com/spf13/pflag"

	"github.com/touka-aoi/duplex/domain"
	"github.com/touka-aoi/duplex/endpoint"
	"github.com/touka-aoi/duplex/internal/logger"
	"github.com/touka-aoi/duplex/metrics"
	"github.com/touka-aoi/duplex/server"
	"github.com/touka-aoi/duplex/transport/coderws"
	"github.com/touka-aoi/duplex/transport/gorillaws"
)

const (
	transportCoder   = "coder"
	transportGorilla = "gorilla"
)

type options struct {
	listen    string
	mode      string
	url       string
	transport string
	binary    bool
	timeout   time.Duration
	linger    time.Duration
}

func (o *options) validate() error {
	switch {
	case o.listen == "" && o.url == "":
		return errors.New("one of --listen or --url is required")
	case o.listen != "" && o.url != "":
		return errors.New("--listen and --url are mutually exclusive")
	}
	if _, err := server.ParseMode(o.mode); err != nil {
		return err
	}
	switch o.transport {
	case transportCoder, transportGorilla:
	default:
		return fmt.Errorf("unknown transport %q (want coder or gorilla)", o.transport)
	}
	if o.timeout <= 0 {
		return errors.New("--timeout must be positive")
	}
	if o.linger < 0 {
		return errors.New("--linger must not be negative")
	}
	return nil
}

// parseFlags parses args. It returns flag.ErrHelp when usage was requested.
func parseFlags(args []string, stderr io.Writer) (*options, error) {
	o := &options{}
	fs := flag.NewFlagSet("duplex", flag.ContinueOnError)
	fs.SetOutput(stderr)

	// ── serve ────────────────────────────────────────────────────
	fs.StringVarP(&o.listen, "listen", "l", "", "Serve on ADDR (e.g. :8080)")
	fs.StringVarP(&o.mode, "mode", "m", string(server.ModeEcho), "Service mode: echo or broadcast")

	// ── dial ─────────────────────────────────────────────────────
	fs.StringVarP(&o.url, "url", "u", "", "Dial a websocket URL and bridge stdin/stdout")
	fs.StringVarP(&o.transport, "transport", "t", transportCoder, "Websocket library: coder or gorilla")
	fs.BoolVarP(&o.binary, "binary", "b", false, "Send stdin lines as binary messages")
	fs.DurationVarP(&o.timeout, "timeout", "w", 10*time.Second, "Dial and close timeout")
	fs.DurationVar(&o.linger, "linger", 0, "Keep receiving this long after stdin ends")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage:\n  duplex --listen ADDR [--mode echo|broadcast]\n  duplex --url URL [--transport coder|gorilla] [--binary]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	return o, nil
}

// Execute parses args and runs the selected mode until ctx is done or the session ends.
func Execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	if o.listen != "" {
		return serve(ctx, o)
	}
	return bridge(ctx, o, stdin, stdout)
}

func serve(ctx context.Context, o *options) error {
	l := logger.Logger("duplex")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rec, err := metrics.NewPrometheus(reg)
	if err != nil {
		return err
	}

	cfg := endpoint.DefaultConfig()
	cfg.Metrics = rec
	mode, _ := server.ParseMode(o.mode)
	s := server.New(o.listen, server.NewHandler(mode, cfg), reg)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve() }()
	l.Info("serving", "addr", o.listen, "mode", mode)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.timeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

func dial(ctx context.Context, o *options) (domain.Transport, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	if o.transport == transportGorilla {
		return gorillaws.Dial(ctx, nil, o.url, nil)
	}
	return coderws.Dial(ctx, o.url, nil)
}

// bridge sends each stdin line as a message and prints every received message.
// On EOF it completes the sender, waits for it to flush and closes the connection.
func bridge(ctx context.Context, o *options, stdin io.Reader, stdout io.Writer) error {
	tr, err := dial(ctx, o)
	if err != nil {
		return err
	}
	e, err := endpoint.New(tr, endpoint.DefaultConfig())
	if err != nil {
		_ = tr.Close()
		return err
	}
	defer e.Dispose()

	printed := make(chan error, 1)
	go func() {
		for msg, err := range e.Messages(ctx) {
			if err != nil {
				printed <- err
				return
			}
			if _, err := fmt.Fprintf(stdout, "%s\n", msg.Payload()); err != nil {
				printed <- err
				return
			}
		}
		printed <- nil
	}()

	sc := bufio.NewScanner(stdin)
	for sc.Scan() {
		line := []byte(sc.Text())
		msg := domain.Text(line)
		if o.binary {
			msg = domain.Binary(line)
		}
		if err := e.Sender().Write(ctx, msg); err != nil {
			break
		}
	}
	e.Sender().Complete(sc.Err())

	if o.linger > 0 {
		select {
		case <-time.After(o.linger):
		case <-e.Done():
		case <-ctx.Done():
		}
	}

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.timeout)
	defer cancel()
	err = e.SendCompletion().Wait(closeCtx)
	if err == nil {
		err = e.Close(closeCtx)
	}
	if e.State() == endpoint.StateClosedNormally {
		// a close started by the peer is a clean exit too
		err = nil
	}
	if err != nil {
		return fmt.Errorf("close: %w", err)
	}
	if err := <-printed; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
