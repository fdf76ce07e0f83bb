package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Bot      BotConfig
	API      APIConfig
	Database DatabaseConfig
	Poll     PollConfig
	Server   ServerConfig
	Log      LogConfig
}

type BotConfig struct {
	Token        string
	SyncInterval time.Duration
}

type APIConfig struct {
	BaseURL  string
	Token    string
	Cookie   string
	PageSize int
	Timeout  time.Duration
}

type DatabaseConfig struct {
	Path string
}

type PollConfig struct {
	Interval      time.Duration
	RetentionDays int
}

type ServerConfig struct {
	Port int
}

type LogConfig struct {
	Level string
}

func Load() (*Config, error) {
	viper.AutomaticEnv()

	viper.SetDefault("BOT_TOKEN", "")
	viper.SetDefault("BOT_SYNC_INTERVAL", "3m")
	viper.SetDefault("API_BASE_URL", "http://183.136.134.132:168")
	viper.SetDefault("API_TOKEN", "")
	viper.SetDefault("API_COOKIE", "")
	viper.SetDefault("API_PAGE_SIZE", 500)
	viper.SetDefault("API_TIMEOUT", "30s")
	viper.SetDefault("DATABASE_PATH", "orders.db")
	viper.SetDefault("POLL_INTERVAL", "5m")
	viper.SetDefault("RETENTION_DAYS", 2)
	viper.SetDefault("SERVER_PORT", 8080)
	viper.SetDefault("LOG_LEVEL", "info")

	syncInterval, err := time.ParseDuration(viper.GetString("BOT_SYNC_INTERVAL"))
	if err != nil {
		return nil, fmt.Errorf("parsing BOT_SYNC_INTERVAL: %w", err)
	}

	apiTimeout, err := time.ParseDuration(viper.GetString("API_TIMEOUT"))
	if err != nil {
		return nil, fmt.Errorf("parsing API_TIMEOUT: %w", err)
	}

	pollInterval, err := time.ParseDuration(viper.GetString("POLL_INTERVAL"))
	if err != nil {
		return nil, fmt.Errorf("parsing POLL_INTERVAL: %w", err)
	}

	cfg := &Config{
		Bot: BotConfig{
			Token:        viper.GetString("BOT_TOKEN"),
			SyncInterval: syncInterval,
		},
		API: APIConfig{
			BaseURL:  viper.GetString("API_BASE_URL"),
			Token:    viper.GetString("API_TOKEN"),
			Cookie:   viper.GetString("API_COOKIE"),
			PageSize: viper.GetInt("API_PAGE_SIZE"),
			Timeout:  apiTimeout,
		},
		Database: DatabaseConfig{
			Path: viper.GetString("DATABASE_PATH"),
		},
		Poll: PollConfig{
			Interval:      pollInterval,
			RetentionDays: viper.GetInt("RETENTION_DAYS"),
		},
		Server: ServerConfig{
			Port: viper.GetInt("SERVER_PORT"),
		},
		Log: LogConfig{
			Level: viper.GetString("LOG_LEVEL"),
		},
	}

	return cfg, nil
}

// Validate checks the settings the bot cannot run without.
func (c *Config) Validate() error {
	if c.Bot.Token == "" {
		return fmt.Errorf("BOT_TOKEN is not set")
	}
	if c.API.Token == "" {
		return fmt.Errorf("API_TOKEN is not set")
	}
	return nil
}
