package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr    string `env:"LISTEN_ADDR" envDefault:":7940"`
	DBPath        string `env:"DB_PATH" envDefault:"./data/worshiplive.db"`
	MigrationsDir string `env:"MIGRATIONS_DIR" envDefault:"./migrations"`
	CORSOrigin    string `env:"CORS_ORIGIN"`
	TrustProxy    bool   `env:"TRUST_PROXY" envDefault:"false"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`

	HubDriver     string `env:"HUB_DRIVER" envDefault:"local"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// MediaBaseURL resolves relative slide media URLs for server-hosted
	// projections.
	MediaBaseURL string `env:"MEDIA_BASE_URL"`

	NoticeHistory int           `env:"NOTICE_HISTORY" envDefault:"10"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"168h"`
	StaleWorship  time.Duration `env:"STALE_WORSHIP_AFTER" envDefault:"12h"`
	SurfaceLinger time.Duration `env:"SURFACE_LINGER" envDefault:"30s"`

	PrayerNotifyDiscord string `env:"PRAYER_NOTIFY_DISCORD"`
	PrayerNotifyWebhook string `env:"PRAYER_NOTIFY_WEBHOOK"`
	PrayerNotifyNtfy    string `env:"PRAYER_NOTIFY_NTFY"`
}

// FollowConfig configures the headless follower.
type FollowConfig struct {
	ServerURL    string  `env:"WORSHIP_SERVER_URL" envDefault:"http://localhost:7940"`
	WorshipID    int64   `env:"WORSHIP_ID"`
	ContentRate  float64 `env:"CONTENT_RATE_LIMIT" envDefault:"20"`
	ContentBurst int     `env:"CONTENT_RATE_BURST" envDefault:"10"`
	LogLevel     string  `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty    bool    `env:"LOG_PRETTY" envDefault:"true"`
}

// loadDotEnv reads the given files (".env" by default) into the process
// environment. Missing files are ignored.
func loadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

func Load(dotenv ...string) (*Config, error) {
	if err := loadDotEnv(dotenv...); err != nil {
		return nil, err
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.HubDriver {
	case "local", "redis":
	default:
		return fmt.Errorf("HUB_DRIVER must be local or redis, got %q", c.HubDriver)
	}
	if c.NoticeHistory < 0 {
		return errors.New("NOTICE_HISTORY must not be negative")
	}
	if c.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	return nil
}

func LoadFollow(dotenv ...string) (*FollowConfig, error) {
	if err := loadDotEnv(dotenv...); err != nil {
		return nil, err
	}
	var cfg FollowConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return &cfg, nil
}
