package main

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/freekieb7/httpd/http"
)

const (
	defaultBaseDirectory   = "."
	defaultPort            = 1212
	defaultShutdownTimeout = 10 * time.Second
)

type Config struct {
	BaseDirectory string
	Port          int

	Workers         int
	IdleTimeout     time.Duration
	MaxBodyBytes    int64
	ShutdownTimeout time.Duration
	LogLevel        slog.Level
}

// LoadConfig reads `[baseDirectory] [port]` from args and the HTTPD_*
// overrides from getenv.
func LoadConfig(args []string, getenv func(string) string) (Config, error) {
	cfg := Config{
		BaseDirectory:   defaultBaseDirectory,
		Port:            defaultPort,
		Workers:         http.DefaultWorkerPoolSize,
		MaxBodyBytes:    http.DefaultMaxBodyBytes,
		ShutdownTimeout: defaultShutdownTimeout,
		LogLevel:        slog.LevelInfo,
	}

	if len(args) > 0 && args[0] != "" {
		cfg.BaseDirectory = args[0]
	}
	if len(args) > 1 {
		port, err := strconv.Atoi(args[1])
		if err != nil || port < 0 || port > 65535 {
			return cfg, fmt.Errorf("config: invalid port %q", args[1])
		}
		cfg.Port = port
	}

	if v := getenv("HTTPD_WORKERS"); v != "" {
		workers, err := strconv.Atoi(v)
		if err != nil || workers <= 0 {
			return cfg, fmt.Errorf("config: invalid HTTPD_WORKERS %q", v)
		}
		cfg.Workers = workers
	}

	if v := getenv("HTTPD_IDLE_TIMEOUT"); v != "" {
		timeout, err := time.ParseDuration(v)
		if err != nil || timeout < 0 {
			return cfg, fmt.Errorf("config: invalid HTTPD_IDLE_TIMEOUT %q", v)
		}
		cfg.IdleTimeout = timeout
	}

	if v := getenv("HTTPD_MAX_BODY_BYTES"); v != "" {
		limit, err := strconv.ParseInt(v, 10, 64)
		if err != nil || limit < 0 {
			return cfg, fmt.Errorf("config: invalid HTTPD_MAX_BODY_BYTES %q", v)
		}
		cfg.MaxBodyBytes = limit
	}

	if v := getenv("HTTPD_SHUTDOWN_TIMEOUT"); v != "" {
		timeout, err := time.ParseDuration(v)
		if err != nil || timeout <= 0 {
			return cfg, fmt.Errorf("config: invalid HTTPD_SHUTDOWN_TIMEOUT %q", v)
		}
		cfg.ShutdownTimeout = timeout
	}

	if v := getenv("HTTPD_LOG_LEVEL"); v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return cfg, fmt.Errorf("config: invalid HTTPD_LOG_LEVEL %q", v)
		}
	}

	return cfg, nil
}

func (cfg Config) Addr() string {
	return ":" + strconv.Itoa(cfg.Port)
}
