// Package config содержит логику чтения конфигурации квест-бота.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации квест-бота.
type Config struct {
	RunAddress  string `env:"RUN_ADDRESS"`
	DatabaseURI string `env:"DATABASE_URI"`

	PlatformBaseURL string `env:"PLATFORM_BASE_URL" envDefault:"https://quests.yom.net"`
	IdentityBaseURL string `env:"IDENTITY_BASE_URL" envDefault:"https://app.dynamicauth.com/api/v0"`
	AuthAppID       string `env:"AUTH_APP_ID"`

	WebsiteID         string `env:"WEBSITE_ID"`
	OrganizationID    string `env:"ORGANIZATION_ID"`
	LoyaltyCurrencyID string `env:"LOYALTY_CURRENCY_ID"`

	ChainID    string `env:"CHAIN_ID" envDefault:"1"`
	WalletName string `env:"WALLET_NAME" envDefault:"metamask"`

	ClaimDelay      time.Duration `env:"CLAIM_DELAY" envDefault:"1s"`
	CheckinInterval time.Duration `env:"CHECKIN_INTERVAL" envDefault:"24h"`
	TasksInterval   time.Duration `env:"TASKS_INTERVAL" envDefault:"6h"`

	DisableBrowser bool `env:"DISABLE_BROWSER"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI for session store (empty for in-memory)")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	return cfg, nil
}
