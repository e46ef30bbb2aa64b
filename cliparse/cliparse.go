package cliparse

import (
	"errors"
	"flag"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port              int
	DatabaseURL       string
	DatabaseType      string
	RedisURL          string
	SessionSecret     string
	HubGracePeriod    time.Duration
	SubscriberBuffer  int
	ReconcileInterval time.Duration
}

const (
	defaultPort              = 3333
	defaultHubGracePeriod    = 30 * time.Second
	defaultSubscriberBuffer  = 64
	defaultReconcileInterval = 10 * time.Second
)

// ParseFlags reads flags and falls back to environment variables
func ParseFlags(args []string) (Config, error) {
	var cfg Config

	fs := flag.NewFlagSet("livepoll", flag.ContinueOnError)

	// Network and storage (can be CLI args or env)
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite or postgres)")
	fs.StringVar(&cfg.RedisURL, "redis", "", "Redis URL for the tally store (empty = in memory)")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.SessionSecret, "session-secret", "", "Session cookie signing secret (prefer env)")

	// Tuning
	fs.DurationVar(&cfg.HubGracePeriod, "hub-grace", -1, "How long an idle poll topic is kept")
	fs.IntVar(&cfg.SubscriberBuffer, "subscriber-buffer", 0, "Per-observer event buffer")
	fs.DurationVar(&cfg.ReconcileInterval, "reconcile-interval", 0, "How often dirty polls are reconciled")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	// Fall back to environment variables
	if cfg.Port == 0 {
		if portStr := os.Getenv("PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return Config{}, errors.New("invalid PORT env variable")
			}
			cfg.Port = port
		} else {
			cfg.Port = defaultPort
		}
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}

	if cfg.DatabaseType == "" {
		cfg.DatabaseType = os.Getenv("DATABASE_TYPE")
		if cfg.DatabaseType == "" {
			cfg.DatabaseType = "sqlite"
		}
	}
	if cfg.DatabaseType != "sqlite" && cfg.DatabaseType != "postgres" {
		return Config{}, errors.New("database type must be sqlite or postgres")
	}

	if cfg.RedisURL == "" {
		cfg.RedisURL = os.Getenv("REDIS_URL")
	}

	// Secrets - MUST be provided
	if cfg.SessionSecret == "" {
		cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	}
	if cfg.SessionSecret == "" {
		return Config{}, errors.New("SESSION_SECRET required")
	}

	if cfg.HubGracePeriod < 0 {
		d, err := durationEnv("HUB_GRACE_PERIOD", defaultHubGracePeriod)
		if err != nil {
			return Config{}, err
		}
		cfg.HubGracePeriod = d
	}
	if cfg.HubGracePeriod < 0 {
		return Config{}, errors.New("hub grace period must not be negative")
	}

	if cfg.SubscriberBuffer == 0 {
		if s := os.Getenv("SUBSCRIBER_BUFFER"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil {
				return Config{}, errors.New("invalid SUBSCRIBER_BUFFER env variable")
			}
			cfg.SubscriberBuffer = n
		} else {
			cfg.SubscriberBuffer = defaultSubscriberBuffer
		}
	}
	if cfg.SubscriberBuffer < 1 {
		return Config{}, errors.New("subscriber buffer must be at least 1")
	}

	if cfg.ReconcileInterval == 0 {
		d, err := durationEnv("RECONCILE_INTERVAL", defaultReconcileInterval)
		if err != nil {
			return Config{}, err
		}
		cfg.ReconcileInterval = d
	}
	if cfg.ReconcileInterval <= 0 {
		return Config{}, errors.New("reconcile interval must be positive")
	}

	return cfg, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errors.New("invalid " + key + " env variable")
	}
	return d, nil
}
