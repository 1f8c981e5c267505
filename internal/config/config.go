// Package config содержит логику чтения конфигурации сервиса Nexoria.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/nexoria-ledger/internal/model"
)

const (
	defaultRunAddress      = "localhost:8080"
	defaultSeedBalance     = "1000"
	defaultFeedInterval    = 15 * time.Second
	defaultFeedProbability = 0.3
)

// Config содержит параметры конфигурации сервиса Nexoria.
type Config struct {
	RunAddress  string `env:"RUN_ADDRESS"`
	DatabaseURI string `env:"DATABASE_URI"`
	AuthSecret  string `env:"AUTH_SECRET"`
	// SeedBalance задаёт стартовый баланс нового пользователя в основных единицах.
	SeedBalance     string        `env:"SEED_BALANCE"`
	FeedInterval    time.Duration `env:"FEED_INTERVAL"`
	FeedProbability float64       `env:"FEED_PROBABILITY"`
}

// LoadDotEnv подгружает переменные из файла .env, если он есть.
// Уже заданные переменные окружения не перезаписываются.
func LoadDotEnv(filenames ...string) error {
	if err := godotenv.Load(filenames...); err != nil {
		return fmt.Errorf("load dotenv: %w", err)
	}
	return nil
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envCfg := *cfg

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI, in-memory store when empty")
	flag.StringVar(&cfg.AuthSecret, "s", "", "secret for session cookie signing")
	flag.StringVar(&cfg.SeedBalance, "b", defaultSeedBalance, "starting balance of a new user")
	flag.DurationVar(&cfg.FeedInterval, "i", defaultFeedInterval, "live feed tick interval, 0 disables the feed")
	flag.Float64Var(&cfg.FeedProbability, "p", defaultFeedProbability, "probability of a live feed event per tick")

	flag.Parse()

	if envCfg.RunAddress != "" {
		cfg.RunAddress = envCfg.RunAddress
	}
	if envCfg.DatabaseURI != "" {
		cfg.DatabaseURI = envCfg.DatabaseURI
	}
	if envCfg.AuthSecret != "" {
		cfg.AuthSecret = envCfg.AuthSecret
	}
	if envCfg.SeedBalance != "" {
		cfg.SeedBalance = envCfg.SeedBalance
	}
	// Ноль для ленты допустим, поэтому важно наличие переменной.
	if isSet("FEED_INTERVAL") {
		cfg.FeedInterval = envCfg.FeedInterval
	}
	if isSet("FEED_PROBABILITY") {
		cfg.FeedProbability = envCfg.FeedProbability
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}

	if _, err := cfg.SeedBalanceMinor(); err != nil {
		return nil, err
	}
	if cfg.FeedProbability < 0 || cfg.FeedProbability > 1 {
		return nil, fmt.Errorf("feed probability %v out of [0, 1]", cfg.FeedProbability)
	}

	return cfg, nil
}

func isSet(key string) bool {
	v, ok := os.LookupEnv(key)
	return ok && v != ""
}

// SeedBalanceMinor разбирает стартовый баланс и переводит его в минорные единицы.
func (c *Config) SeedBalanceMinor() (int64, error) {
	d, err := decimal.NewFromString(c.SeedBalance)
	if err != nil {
		return 0, fmt.Errorf("parse seed balance %q: %w", c.SeedBalance, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("seed balance %q is negative", c.SeedBalance)
	}

	minor, err := model.MinorFromDecimal(d)
	if err != nil {
		return 0, fmt.Errorf("seed balance: %w", err)
	}
	return minor, nil
}
