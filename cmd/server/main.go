package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"microblog/redis"
	"microblog/sqlite"
	"microblog/web"
	"microblog/web/validator"
)

type config struct {
	addr            string
	sqlitePath      string
	redisAddr       string
	sessionLifetime time.Duration
}

func loadConfig() config {
	lifetime, err := time.ParseDuration(getenv("SESSION_LIFETIME", "24h"))
	if err != nil {
		lifetime = 24 * time.Hour
	}
	return config{
		addr:            getenv("ADDR", ":8080"),
		sqlitePath:      getenv("SQLITE_PATH", "./microblog.db"),
		redisAddr:       os.Getenv("REDIS_ADDR"),
		sessionLifetime: lifetime,
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	cfg := loadConfig()
	ctx := context.Background()

	store, err := sqlite.Open(ctx, cfg.sqlitePath)
	if err != nil {
		logger.Error("Could not open database", "path", cfg.sqlitePath, "error", err.Error())
		os.Exit(1)
	}
	defer store.Close()

	// Sessions live in SQLite unless a Redis address is configured.
	var sessions web.Sessions = sqlite.NewSessions(store, cfg.sessionLifetime)
	if cfg.redisAddr != "" {
		rs, err := redis.Connect(ctx, cfg.redisAddr, cfg.sessionLifetime)
		if err != nil {
			logger.Error("Could not connect to redis", "addr", cfg.redisAddr, "error", err.Error())
			os.Exit(1)
		}
		sessions = rs
		logger.Info("Using redis sessions", "addr", cfg.redisAddr)
	}

	app := &web.App{
		Logger:   logger,
		Store:    store,
		Sessions: sessions,
		Val:      validator.New(),
	}

	handler := web.WithAccessLog(logger, web.WithRecover(logger, app))

	logger.Info("Listening", "addr", cfg.addr)
	if err := http.ListenAndServe(cfg.addr, handler); err != nil {
		logger.Error("Server stopped", "error", err.Error())
		os.Exit(1)
	}
}
