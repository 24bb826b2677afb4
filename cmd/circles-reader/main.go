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

	"github.com/rs/zerolog"

	"circles_go/internal/config"
	"circles_go/internal/httpapi"
	"circles_go/internal/hub"
	"circles_go/internal/ipc"
	"circles_go/internal/logging"
	"circles_go/internal/mqtt"
	"circles_go/internal/tui"
	"circles_go/sdk"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to a TOML config file")
	envFile := flag.String("env", ".env", "dotenv file loaded before the environment is read")
	headless := flag.Bool("headless", false, "run without the terminal UI")
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "env load warning: %v\n", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}

	// The TUI owns the terminal, so its logs go to a file.
	var out io.Writer = os.Stdout
	if !*headless {
		f, err := logging.OpenFile(cfg.LogFile)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	logger := logging.Init("circles-reader", level, out)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := hub.New()
	opts := cfg.ReaderOptions()
	opts.Logger = &logger
	ctrl := sdk.NewController(h, opts, cfg.Mock)
	defer func() {
		if err := ctrl.Close(); err != nil {
			logger.Warn().Err(err).Msg("controller close")
		}
	}()

	logger.Info().
		Bool("mock", cfg.Mock).
		Str("device", cfg.Device).
		Str("http", cfg.HTTPAddr).
		Str("ipc", cfg.IPCSocket).
		Str("mqtt", cfg.MQTTBroker).
		Msg("starting")

	errCh := make(chan error, 2)
	if cfg.HTTPAddr != "" {
		srv := httpapi.New(cfg.HTTPAddr, ctrl, h, logger)
		srv.SetStartTimeout(opts.StartTimeout())
		go serve(ctx, errCh, logger, "http", srv.Run)
	}
	if cfg.IPCSocket != "" {
		srv := ipc.New(cfg.IPCSocket, ctrl, h, logger)
		srv.SetStartTimeout(opts.StartTimeout())
		go serve(ctx, errCh, logger, "ipc", srv.Run)
	}

	if cfg.MQTTBroker != "" {
		pub := mqtt.New(mqtt.Config{
			Broker:      cfg.MQTTBroker,
			TopicPrefix: cfg.MQTTTopicPrefix,
			ClientID:    cfg.MQTTClientID,
			Username:    os.Getenv("CIRCLES_MQTT_USERNAME"),
			Password:    os.Getenv("CIRCLES_MQTT_PASSWORD"),
		}, h, logger)
		if err := pub.Start(ctx); err != nil {
			logger.Error().Err(err).Msg("mqtt disabled")
		} else {
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				_ = pub.Stop(stopCtx)
			}()
		}
	}

	if !*headless {
		err := tui.Run(ctrl, h, cfg.Device, opts.StartTimeout())
		stop()
		return err
	}
	return runHeadless(ctx, ctrl, cfg, logger, errCh)
}

func serve(ctx context.Context, errCh chan<- error, logger zerolog.Logger, name string, run func(context.Context) error) {
	err := run(ctx)
	if err != nil {
		logger.Error().Err(err).Str("surface", name).Msg("server stopped")
	}
	errCh <- err
}

func runHeadless(ctx context.Context, ctrl *sdk.Controller, cfg config.Config, logger zerolog.Logger, errCh <-chan error) error {
	if cfg.Device != "" || cfg.Mock {
		startCtx, cancel := context.WithTimeout(ctx, cfg.ReaderOptions().StartTimeout())
		session, err := ctrl.StartReading(startCtx, cfg.Device)
		cancel()
		if err != nil {
			logger.Error().Err(err).Msg("auto start failed")
		} else {
			logger.Info().Str("session", session.ID.String()).Str("backend", string(session.Backend)).Msg("reading started")
		}
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}

	if ctrl.Current() != nil {
		if err := ctrl.StopReading(true); err != nil {
			logger.Warn().Err(err).Msg("stop on shutdown")
		}
	}
	logger.Info().Msg("shutdown")
	return nil
}
