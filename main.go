package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/freekieb7/httpd/filesystem"
	"github.com/freekieb7/httpd/handlers"
	"github.com/freekieb7/httpd/http"
	"github.com/freekieb7/httpd/telemetry"
)

const serviceName = "httpd"

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		log.Fatalln(err)
	}
}

func run(ctx context.Context, args []string) (err error) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := LoadConfig(args, os.Getenv)
	if err != nil {
		return err
	}

	exported := telemetry.Enabled()
	if exported {
		var shutdownTelemetry func(context.Context) error
		shutdownTelemetry, err = telemetry.Setup(ctx, serviceName)
		if err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, shutdownTelemetry(context.Background()))
		}()
	}

	logger := telemetry.NewLogger(serviceName, cfg.LogLevel, exported)
	slog.SetDefault(logger)

	fs, err := filesystem.NewLocalFileSystem(cfg.BaseDirectory)
	if err != nil {
		return err
	}

	router := http.NewRouter()
	router.Use(http.LoggerMiddleware(logger))
	handlers.Register(router, fs)

	server := http.NewServer(serviceName, router)
	server.Logger = logger
	server.Workers = cfg.Workers
	server.Backlog = cfg.Workers
	server.IdleTimeout = cfg.IdleTimeout
	server.MaxBodyBytes = cfg.MaxBodyBytes

	serverErrorChannel := make(chan error, 1)
	go func() {
		logger.Info("serving files", "directory", fs.Root(), "addr", cfg.Addr())
		serverErrorChannel <- server.ListenAndServe(ctx, cfg.Addr())
	}()

	select {
	case err := <-serverErrorChannel:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}
