// config/config.go
package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is read once at startup from the environment (and .env when present).
type Config struct {
	DatabaseURL    string   `env:"DATABASE_URL,required,notEmpty"`
	ListenAddr     string   `env:"LISTEN_ADDR" envDefault:":5200"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	GatewayToken   string   `env:"GATEWAY_TOKEN"`

	// Neighbouring services
	SyncServiceURL   string `env:"SYNC_SERVICE_URL"`
	GameServiceToken string `env:"GAME_SERVICE_TOKEN"`

	// Background jobs
	ExpiryScanInterval time.Duration `env:"EXPIRY_SCAN_INTERVAL" envDefault:"1m"`
	RosterSyncInterval time.Duration `env:"ROSTER_SYNC_INTERVAL" envDefault:"1m"`
	ShopPollInterval   time.Duration `env:"SHOP_POLL_INTERVAL" envDefault:"10s"`

	R2 R2Config
}

// R2Config controls mission report archiving. Archiving is off when Bucket is empty.
type R2Config struct {
	AccountID       string `env:"CLOUDFLARE_ACCOUNT_ID"`
	AccessKeyID     string `env:"R2_ACCESS_KEY_ID"`
	AccessKeySecret string `env:"R2_ACCESS_KEY_SECRET"`
	Bucket          string `env:"R2_BUCKET_NAME"`
	CDNBaseURL      string `env:"CDN_BASE_URL"`
}

func (c R2Config) Enabled() bool { return c.Bucket != "" }

// Load reads .env (if any) and parses the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}
	return Parse()
}

// Parse reads configuration from the process environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	for i, origin := range cfg.AllowedOrigins {
		cfg.AllowedOrigins[i] = strings.TrimSpace(origin)
	}
	return cfg, nil
}

// WorkersConfigured reports whether the sync-service workers have what they need.
func (c Config) WorkersConfigured() bool {
	return c.SyncServiceURL != "" && c.GameServiceToken != ""
}
