package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Logging    LoggingConfig    `yaml:"logging"`
	Repository RepositoryConfig `yaml:"repository"`
	Workers    WorkersConfig    `yaml:"workers"`
	Limits     LimitsConfig     `yaml:"limits"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	Host string `yaml:"host"`
}

type DatabaseConfig struct {
	URL           string `yaml:"url"`
	MigrationsDir string `yaml:"migrations_dir"`
}

type LoggingConfig struct {
	Development bool `yaml:"development"`
}

type RepositoryConfig struct {
	Type string `yaml:"type"` // "postgres" или "inmemory"
}

type WorkersConfig struct {
	ReminderInterval time.Duration `yaml:"reminder_interval"`
	ReminderBatch    int           `yaml:"reminder_batch"`
	SweepInterval    time.Duration `yaml:"sweep_interval"`
	SweepBatch       int           `yaml:"sweep_batch"`
}

type LimitsConfig struct {
	RatePerMinute int `yaml:"rate_per_minute"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.yml"
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("не могу открыть %s: %w", path, err)
	}
	defer file.Close()

	var cfg Config
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("ошибка парсинга %s: %w", path, err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Repository.Type == "" {
		c.Repository.Type = "inmemory"
	}
	if c.Workers.ReminderInterval <= 0 {
		c.Workers.ReminderInterval = time.Minute
	}
	if c.Workers.ReminderBatch <= 0 {
		c.Workers.ReminderBatch = 200
	}
	if c.Workers.SweepInterval <= 0 {
		c.Workers.SweepInterval = time.Hour
	}
	if c.Workers.SweepBatch <= 0 {
		c.Workers.SweepBatch = 100
	}
	if c.Limits.RatePerMinute <= 0 {
		c.Limits.RatePerMinute = 100
	}
}

func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}
