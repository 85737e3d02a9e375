package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/simple-post/pkg/simplepost/api"
	"github.com/tendant/simple-post/pkg/simplepost/config"
	fsstorage "github.com/tendant/simple-post/pkg/simplepost/storage/fs"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds process-level settings. Engine and store settings are read
// by config.WithEnv.
type Config struct {
	EnvPrefix    string        `env:"POST_ENV_PREFIX" env-default:""`
	MaxBodyBytes int64         `env:"MAX_BODY_BYTES" env-default:"1048576"`
	Timeout      time.Duration `env:"REQUEST_TIMEOUT" env-default:"30s"`
	Log          LogConfig
}

type LogConfig struct {
	Level      string `env:"LOG_LEVEL" env-default:"info"`
	Format     string `env:"LOG_FORMAT" env-default:"json"`
	Path       string `env:"LOG_PATH" env-default:""`
	MaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" env-default:"100"`
	MaxBackups int    `env:"LOG_MAX_BACKUPS" env-default:"3"`
	MaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" env-default:"7"`
	Compress   bool   `env:"LOG_COMPRESS" env-default:"false"`
}

func newLogger(cfg LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var out io.Writer = os.Stdout
	if cfg.Path != "" {
		if dir := filepath.Dir(cfg.Path); dir != "" {
			_ = os.MkdirAll(dir, 0o755)
		}
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		})
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(out, opts))
	}
	return slog.New(slog.NewJSONHandler(out, opts))
}

func main() {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.Log))

	serverConfig, err := config.Load(config.WithEnv(cfg.EnvPrefix))
	if err != nil {
		slog.Error("Failed to load configuration", "err", err)
		os.Exit(1)
	}

	rt, err := serverConfig.Build(context.Background())
	if err != nil {
		slog.Error("Failed to build service", "err", err)
		os.Exit(1)
	}
	defer func() {
		if err := rt.Close(); err != nil {
			slog.Error("Failed to release resources", "err", err)
		}
	}()

	server := app.DefaultApp()

	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	postHandler := api.NewPostHandler(rt.Service)
	chain := api.NewMiddlewareChain(
		api.RequestIDMiddleware,
		api.LoggingMiddleware(slog.Default()),
		api.RecoveryMiddleware,
		api.RequestSizeLimitMiddleware(cfg.MaxBodyBytes),
	)

	server.R.Route("/api/v1", func(r chi.Router) {
		r.Use(chain.Wrap)
		r.Use(middleware.Timeout(cfg.Timeout))
		r.Mount("/posts", postHandler.Routes())
	})

	// The filesystem backend's default layout points image URLs at /files.
	if fsBackend, ok := rt.Blobs.(*fsstorage.Backend); ok {
		server.R.Handle("/files/*", http.StripPrefix("/files/", http.FileServer(http.Dir(fsBackend.BaseDir()))))
	}

	slog.Info("Post server configured",
		"environment", serverConfig.Environment,
		"database", serverConfig.DatabaseType,
		"storage", serverConfig.Storage.Type,
		"lock", lockKind(serverConfig.LockURL),
	)
	server.Run()
}

func lockKind(lockURL string) string {
	if strings.HasPrefix(lockURL, "redis") {
		return "redis"
	}
	if lockURL == "" {
		return "memory"
	}
	return lockURL
}
