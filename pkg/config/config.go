package config

import (
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	DSN     string        `toml:"dsn"`
	Crawler CrawlerConfig `toml:"crawler"`
	Server  ServerConfig  `toml:"server"`
	Logging LoggingConfig `toml:"logging"`
}

type CrawlerConfig struct {
	Concurrency    int    `toml:"concurrency"`
	RequestTimeout string `toml:"request_timeout"`
	MaxPagesPerRun int    `toml:"max_pages_per_run"`
	SnippetContext int    `toml:"snippet_context"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

func Default() *Config {
	var cfg Config
	cfg.Crawler.Concurrency = 8
	cfg.Crawler.RequestTimeout = "15s"
	cfg.Crawler.MaxPagesPerRun = 500
	cfg.Crawler.SnippetContext = 120
	cfg.Server.Addr = ":8080"
	cfg.Logging.Format = "text"
	cfg.Logging.Level = "info"
	return &cfg
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()

	err = toml.Unmarshal(data, cfg)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *CrawlerConfig) GetRequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil {
		return 15 * time.Second // Fallback
	}
	return d
}
