package config

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/sethvargo/go-envconfig"
	log "github.com/sirupsen/logrus"
)

const envPrefix = "NG_"

type (
	Config struct {
		TelegramAPIToken string `env:"TOKEN,required"`
		BotUsername      string `env:"BOT_USERNAME"`
		AdminID          int64  `env:"ADMIN_ID"`
		SecurityLogID    int64  `env:"SECURITY_LOG_CHAT_ID"`
		LogLevel         int    `env:"LOG_LEVEL,default=4"`
		DotPath          string `env:"DOT_PATH,default=~/.phishguard"`
		HTTPAddr         string `env:"HTTP_ADDR,default=:2112"`
		MaxFileSize      int64  `env:"MAX_FILE_SIZE,default=20971520"`
		Reputation       Reputation
		LLM              LLM
		Throttle         Throttle
		AdminCacheTTL    time.Duration `env:"ADMIN_CACHE_TTL,default=5m"`
	}

	Reputation struct {
		APIKey            string        `env:"VT_API_KEY"`
		BaseURL           string        `env:"VT_API_URL,default=https://www.virustotal.com/api/v3"`
		PollInterval      time.Duration `env:"VT_POLL_INTERVAL,default=3s"`
		PollAttempts      int           `env:"VT_POLL_ATTEMPTS,default=20"`
		Timeout           time.Duration `env:"VT_TIMEOUT,default=30s"`
		RequestsPerMinute int           `env:"VT_REQUESTS_PER_MINUTE,default=0"`
	}

	LLM struct {
		APIKey  string        `env:"LLM_API_KEY"`
		Model   string        `env:"LLM_API_MODEL,default=llama-3.3-70b-versatile"`
		BaseURL string        `env:"LLM_API_URL,default=https://api.groq.com/openai/v1"`
		Type    string        `env:"LLM_API_TYPE,default=openai"`
		Timeout time.Duration `env:"LLM_TIMEOUT,default=30s"`
	}

	Throttle struct {
		Interval time.Duration `env:"THROTTLE_INTERVAL,default=2s"`
		Idle     time.Duration `env:"THROTTLE_IDLE,default=10m"`
	}
)

var (
	once         sync.Once
	globalConfig = &Config{}
	globalErr    error
)

// Load reads an optional .env file and then the NG_ prefixed environment once per process.
func Load() (Config, error) {
	once.Do(func() {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			log.WithField("error", err.Error()).Warn("cant read .env file")
		}
		cfg, err := Parse(context.Background(), envconfig.OsLookuper())
		if err != nil {
			globalErr = err
			return
		}
		log.Traceln("loaded config")
		globalConfig = cfg
	})
	return *globalConfig, globalErr
}

// Parse builds a Config from the given lookuper, applying the NG_ prefix.
func Parse(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}
	envcfg := envconfig.Config{
		Lookuper: envconfig.PrefixLookuper(envPrefix, lookuper),
		Target:   cfg,
	}
	if err := envconfig.ProcessWith(ctx, &envcfg); err != nil {
		return nil, fmt.Errorf("process env config: %w", err)
	}
	dotPath, err := homedir.Expand(cfg.DotPath)
	if err != nil {
		return nil, fmt.Errorf("expand dot path: %w", err)
	}
	cfg.DotPath = dotPath
	return cfg, nil
}

func Get() Config {
	cfg, err := Load()
	if err != nil {
		log.WithField("error", err.Error()).Error("cant load config")
	}
	return cfg
}

func (c LLM) Enabled() bool {
	return c.APIKey != ""
}

func (c Reputation) Enabled() bool {
	return c.APIKey != ""
}
