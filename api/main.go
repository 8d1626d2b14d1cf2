package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

const version = "1.0.0"

type application struct {
	config    config
	logger    *slog.Logger
	storage   store
	passwords *passwordHasher
	tokens    *tokenIssuer
	limiter   rateLimiter
	mailer    notifier
	wg        sync.WaitGroup
	startedAt time.Time
}

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := newLogger(os.Stdout, cfg.log.level, cfg.log.format)

	db, err := openDB(cfg)
	if err != nil {
		logger.Error("cannot connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("established a connection with database")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = migrate(ctx, db)
	cancel()
	if err != nil {
		logger.Error("cannot apply migrations", "error", err)
		os.Exit(1)
	}

	app, err := newApplication(cfg, logger, newStorage(db, cfg.db.queryTimeout))
	if err != nil {
		logger.Error("cannot initialise application", "error", err)
		os.Exit(1)
	}

	if cfg.limiter.enabled {
		limiter, stop := app.openLimiter()
		defer stop()
		app.limiter = limiter
	}
	if cfg.mailEnabled() {
		app.mailer = newMailer(cfg.smtp.host, cfg.smtp.port, cfg.smtp.username, cfg.smtp.password, cfg.smtp.sender)
	}

	if err := app.serve(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func newApplication(cfg config, logger *slog.Logger, s store) (*application, error) {
	passwords, err := newPasswordHasher(cfg.bcryptCost)
	if err != nil {
		return nil, err
	}
	tokens, err := newTokenIssuer(cfg.jwt.secret)
	if err != nil {
		return nil, err
	}
	return &application{
		config:    cfg,
		logger:    logger,
		storage:   s,
		passwords: passwords,
		tokens:    tokens,
		startedAt: time.Now(),
	}, nil
}

// openLimiter prefers the shared Redis limiter and falls back to the
// in-process one when Redis is not configured or not reachable.
func (app *application) openLimiter() (rateLimiter, func()) {
	cfg := app.config.limiter
	if cfg.redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.redisAddr, Password: cfg.redisPassword})
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := client.Ping(ctx).Err()
		cancel()
		if err == nil {
			maxRequests := int(cfg.maxRequestPerSecond * cfg.window.Seconds())
			if maxRequests < cfg.burst {
				maxRequests = cfg.burst
			}
			app.logger.Info("using redis rate limiter", "addr", cfg.redisAddr, "max_requests", maxRequests, "window", cfg.window)
			return newRedisLimiter(client, maxRequests, cfg.window), func() { client.Close() }
		}
		client.Close()
		app.logger.Warn("redis unreachable, using in-process rate limiter", "addr", cfg.redisAddr, "error", err)
	}
	limiter := newIPLimiter(cfg.maxRequestPerSecond, cfg.burst)
	ctx, cancel := context.WithCancel(context.Background())
	go limiter.runSweeper(ctx)
	return limiter, cancel
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
