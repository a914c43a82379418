package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	DatabaseURL string `mapstructure:"database_url"`
	ServerPort  string `mapstructure:"server_port"`
	JWTSecret   string `mapstructure:"jwt_secret"`

	Site      SiteConfig      `mapstructure:"site"`
	Templates TemplatesConfig `mapstructure:"templates"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Email     EmailConfig     `mapstructure:"email"`
	Push      PushConfig      `mapstructure:"push"`
}

// SiteConfig tags every alert with the emitting site. This is the only
// tenant separation the engine provides.
type SiteConfig struct {
	Name   string `mapstructure:"name"`
	Domain string `mapstructure:"domain"`
}

type TemplatesConfig struct {
	Dir string `mapstructure:"dir"`
}

type DispatchConfig struct {
	// Interval between scheduled dispatch runs.
	Interval time.Duration `mapstructure:"interval"`

	// LeaseTTL bounds how long a crashed run can hold the dispatch lease.
	LeaseTTL time.Duration `mapstructure:"lease_ttl"`

	// MaxAttempts caps delivery attempts per alert; 0 retries forever.
	MaxAttempts int `mapstructure:"max_attempts"`
}

// RedisConfig points at the shared store backing the dispatch lease. An
// empty addr selects the in-process lease, which is only safe when exactly
// one dispatcher process exists.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type EmailConfig struct {
	From     string `mapstructure:"from"`
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type PushConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// Load reads the configuration from a YAML file and returns a Config instance.
func Load() *Config {
	v := viper.New()

	// Look for config in the current directory and ./config
	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.AddConfigPath("./config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		log.Fatalf("Error reading config file: %v", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		log.Fatalf("Error unmarshalling config: %v", err)
	}

	// Fallback defaults
	if config.ServerPort == "" {
		config.ServerPort = "8080"
	}

	if config.JWTSecret == "" {
		log.Fatal("JWT secret must be set in the config file")
	}

	if config.Site.Name == "" {
		config.Site.Name = "alert-api"
	}
	if config.Templates.Dir == "" {
		config.Templates.Dir = "templates"
	}
	if config.Dispatch.Interval == 0 {
		config.Dispatch.Interval = time.Minute
	}
	if config.Email.SMTPPort == 0 {
		config.Email.SMTPPort = 587
	}

	return &config
}
