package main

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every runtime setting for the service. Values come from a
// config.{yaml,json} file when one exists, with environment variables
// overriding individual keys.
type Config struct {
	Server struct {
		Port string
	}
	DB struct {
		URL          string
		MaxOpenConns int
	}
	OpenAI struct {
		APIKey  string
		Model   string
		BaseURL string
	}
	Push struct {
		URL     string
		Enabled bool
	}
	Demo struct {
		Enabled bool
		Token   string
	}
	ShutdownTimeout time.Duration
}

// loadConfig reads configuration from config file and environment.
// A missing config file is not an error — env vars alone are enough to run.
func loadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("Server.Port", "3000")
	v.SetDefault("DB.MaxOpenConns", 10)
	v.SetDefault("OpenAI.Model", "gpt-4o-mini")
	v.SetDefault("OpenAI.BaseURL", "https://api.openai.com/v1")
	v.SetDefault("Push.URL", "https://exp.host/--/api/v2/push/send")
	v.SetDefault("Push.Enabled", true)
	v.SetDefault("Demo.Enabled", false)
	v.SetDefault("Demo.Token", "demo-token")
	v.SetDefault("ShutdownTimeout", 10*time.Second)

	// Environment overrides, matching the names used in .env / deploy configs.
	v.AutomaticEnv()
	_ = v.BindEnv("Server.Port", "PORT")
	_ = v.BindEnv("DB.URL", "DB_URL")
	_ = v.BindEnv("OpenAI.APIKey", "OPENAI_API_KEY")
	_ = v.BindEnv("OpenAI.Model", "OPENAI_MODEL")
	_ = v.BindEnv("OpenAI.BaseURL", "OPENAI_BASE_URL")
	_ = v.BindEnv("Push.URL", "PUSH_URL")
	_ = v.BindEnv("Push.Enabled", "PUSH_ENABLED")
	_ = v.BindEnv("Demo.Enabled", "DEMO_MODE")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}
