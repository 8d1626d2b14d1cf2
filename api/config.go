package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type config struct {
	port int
	env  string
	db   struct {
		dsn                string
		maxOpenConnections int
		maxIdleConnections int
		maxIdleTime        time.Duration
		queryTimeout       time.Duration
	}
	jwt struct {
		secret string
	}
	bcryptCost int
	limiter    struct {
		enabled             bool
		maxRequestPerSecond float64
		burst               int
		redisAddr           string
		redisPassword       string
		window              time.Duration
	}
	cors struct {
		trustedOrigins []string
	}
	smtp struct {
		host     string
		port     int
		username string
		password string
		sender   string
	}
	notifyEmail string
	log         struct {
		level  string
		format string
	}
}

// loadConfig builds the process configuration from command line flags. The
// environment supplies the defaults for secrets and connection strings.
func loadConfig(args []string) (config, error) {
	var cfg config
	fs := flag.NewFlagSet("task-tracker-api", flag.ContinueOnError)

	port, err := envInt("PORT", 4000)
	if err != nil {
		return config{}, err
	}
	smtpPort, err := envInt("SMTP_PORT", 25)
	if err != nil {
		return config{}, err
	}

	fs.IntVar(&cfg.port, "port", port, "Server Port")
	fs.StringVar(&cfg.env, "env", envString("APP_ENV", "development"), "Environment [development|staging|production]")

	fs.StringVar(&cfg.db.dsn, "db-dsn", os.Getenv("DB_DSN"), "PostgreSQL DSN")
	fs.IntVar(&cfg.db.maxOpenConnections, "db-max-open-conns", 25, "PostgreSQL max open connections")
	fs.IntVar(&cfg.db.maxIdleConnections, "db-max-idle-conns", 25, "PostgreSQL max idle connections")
	fs.DurationVar(&cfg.db.maxIdleTime, "db-max-idle-time", 15*time.Minute, "PostgreSQL max connection idle time")
	fs.DurationVar(&cfg.db.queryTimeout, "db-query-timeout", 5*time.Second, "PostgreSQL per query timeout")

	fs.StringVar(&cfg.jwt.secret, "jwt-secret", os.Getenv("JWT_SECRET"), "JWT secret")
	fs.IntVar(&cfg.bcryptCost, "bcrypt-cost", 12, "bcrypt work factor")

	fs.BoolVar(&cfg.limiter.enabled, "limiter-enabled", true, "Enable rate limiter")
	fs.Float64Var(&cfg.limiter.maxRequestPerSecond, "limiter-rps", 2, "Rate limiter maximum requests per second")
	fs.IntVar(&cfg.limiter.burst, "limiter-burst", 4, "Rate limiter maximum burst")
	fs.StringVar(&cfg.limiter.redisAddr, "limiter-redis-addr", os.Getenv("REDIS_ADDR"), "Redis address for a shared rate limiter (host:port)")
	fs.StringVar(&cfg.limiter.redisPassword, "limiter-redis-password", os.Getenv("REDIS_PASSWORD"), "Redis password")
	fs.DurationVar(&cfg.limiter.window, "limiter-window", time.Minute, "Fixed window used by the Redis rate limiter")

	var trustedOrigins string
	fs.StringVar(&trustedOrigins, "cors-trusted-origins", os.Getenv("CORS_TRUSTED_ORIGINS"), "Trusted CORS origins (space separated)")

	fs.StringVar(&cfg.smtp.host, "smtp-host", os.Getenv("SMTP_HOST"), "SMTP host")
	fs.IntVar(&cfg.smtp.port, "smtp-port", smtpPort, "SMTP port")
	fs.StringVar(&cfg.smtp.username, "smtp-username", os.Getenv("SMTP_USERNAME"), "SMTP username")
	fs.StringVar(&cfg.smtp.password, "smtp-password", os.Getenv("SMTP_PASSWORD"), "SMTP password")
	fs.StringVar(&cfg.smtp.sender, "smtp-sender", os.Getenv("SMTP_SENDER"), "SMTP sender")
	fs.StringVar(&cfg.notifyEmail, "notify-email", os.Getenv("NOTIFY_EMAIL"), "Address notified about new registrations")

	fs.StringVar(&cfg.log.level, "log-level", envString("LOG_LEVEL", "info"), "Log level [debug|info|warn|error]")
	fs.StringVar(&cfg.log.format, "log-format", envString("LOG_FORMAT", "json"), "Log format [json|text]")

	if err := fs.Parse(args); err != nil {
		return config{}, err
	}
	cfg.cors.trustedOrigins = strings.Fields(trustedOrigins)

	if err := cfg.validate(); err != nil {
		return config{}, err
	}
	return cfg, nil
}

func (c config) validate() error {
	var errs []error
	if c.db.dsn == "" {
		errs = append(errs, errors.New("db-dsn (DB_DSN) is required"))
	}
	if c.jwt.secret == "" {
		errs = append(errs, errors.New("jwt-secret (JWT_SECRET) is required"))
	}
	if c.bcryptCost < bcrypt.MinCost || c.bcryptCost > bcrypt.MaxCost {
		errs = append(errs, errors.New("bcrypt-cost is out of range"))
	}
	if c.db.queryTimeout <= 0 {
		errs = append(errs, errors.New("db-query-timeout must be positive"))
	}
	if c.limiter.enabled && (c.limiter.maxRequestPerSecond <= 0 || c.limiter.burst <= 0) {
		errs = append(errs, errors.New("limiter-rps and limiter-burst must be positive"))
	}
	return errors.Join(errs...)
}

func (c config) mailEnabled() bool {
	return c.smtp.host != "" && c.notifyEmail != ""
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}
