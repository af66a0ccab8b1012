package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/zsprackett/agent-office/internal/applog"
	"github.com/zsprackett/agent-office/internal/appwatch"
	"github.com/zsprackett/agent-office/internal/bridge"
	"github.com/zsprackett/agent-office/internal/config"
	"github.com/zsprackett/agent-office/internal/hook"
	"github.com/zsprackett/agent-office/internal/office"
	"github.com/zsprackett/agent-office/internal/ui"
	"github.com/zsprackett/agent-office/internal/webserver"
)

// maxHookPayload matches the relay's request body limit.
const maxHookPayload = 1 << 20

func usage() {
	fmt.Fprintf(os.Stderr, `usage: agent-office [command]

commands:
  serve   run the relay (default)
  watch   show the office dashboard in this terminal
  hook    forward a Claude Code hook payload from stdin to the relay
`)
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not load config: %v\n", err)
		cfg = config.Defaults()
	}
	return cfg, cfg.ApplyEnv(os.Getenv)
}

func initLogging(cfg config.Config, console io.Writer) (*slog.Logger, func()) {
	logger, logCloser, err := applog.Init(applog.InitConfig{
		LogDir:   cfg.LogDir,
		LogLevel: cfg.LogLevel,
		Console:  console,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not init log file: %v\n", err)
		return slog.Default(), func() {}
	}
	return logger, func() { logCloser.Close() }
}

func main() {
	cmd := "serve"
	if len(os.Args) >= 2 {
		cmd = os.Args[1]
	}

	var err error
	switch cmd {
	case "serve":
		err = runServe()
	case "watch":
		err = runWatch()
	case "hook":
		// Hooks run inline with Claude Code; never fail the tool call.
		runHook()
		return
	case "help", "-h", "--help":
		usage()
		return
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func runServe() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, closeLog := initLogging(cfg, os.Stderr)
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sampler := appwatch.New(logger)
	srv := webserver.New(webserver.Config{Host: cfg.Server.Host, Port: cfg.Server.Port}, sampler, logger)
	poller := appwatch.NewPoller(sampler, srv, srv, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(ctx)
	})
	g.Go(func() error {
		poller.Start()
		<-ctx.Done()
		poller.Stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("relay: %w", err)
	}
	logger.Info("relay stopped")
	return nil
}

func runWatch() error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("watch needs an interactive terminal")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, closeLog := initLogging(cfg, nil)
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := bridge.New(cfg.Bridge.URL,
		bridge.WithRetryDelay(cfg.Bridge.RetryDelay()),
		bridge.WithLogger(logger),
	)
	board := office.NewBoard(nil)
	apps := office.NewApps()
	director := office.NewDirector(board, apps, logger)
	director.Attach(b)

	dash := ui.NewDashboard(board, apps, director, b, logger)
	go func() {
		<-ctx.Done()
		dash.Stop()
	}()

	director.Start()
	defer director.Stop()
	b.Start(ctx)
	defer b.Stop()

	logger.Info("watching", "relay", cfg.Bridge.URL)
	return dash.Run()
}

func runHook() {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintln(os.Stderr, "agent-office hook: expected a hook payload on stdin")
		return
	}
	// A bad PORT only matters to serve.
	cfg, _ := loadConfig()

	body, err := io.ReadAll(io.LimitReader(os.Stdin, maxHookPayload))
	if err != nil {
		fmt.Fprintf(os.Stderr, "agent-office hook: read stdin: %v\n", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := hook.NewSender(cfg.Bridge.EventURL()).Send(ctx, body); err != nil {
		fmt.Fprintf(os.Stderr, "agent-office hook: %v\n", err)
	}
}
