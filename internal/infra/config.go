package infra

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultUserAgent is a browser-like user agent string to avoid bot detection
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Config holds every application setting. Sensitive and deployment-specific
// values can be overridden through environment variables after loading.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Bot struct {
		Prefix      string   `yaml:"prefix"`
		OwnerIDs    []string `yaml:"owner_ids"`
		ConsoleUser string   `yaml:"console_user"`
	} `yaml:"bot"`

	Market struct {
		APIURL          string   `yaml:"api_url"`
		APIKey          string   `yaml:"api_key"`
		PollIntervalSec int      `yaml:"poll_interval_sec"`
		Symbols         []string `yaml:"symbols"`
		Stream          struct {
			WSURL string `yaml:"ws_url"`
		} `yaml:"stream"`
	} `yaml:"market"`

	Storage struct {
		Path     string `yaml:"path"`
		IconsDir string `yaml:"icons_dir"`
	} `yaml:"storage"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.Bot.Prefix == "" {
		return fmt.Errorf("bot prefix is required")
	}
	if c.Bot.ConsoleUser == "" {
		return fmt.Errorf("console user id is required")
	}

	if c.Market.APIURL == "" || (!hasPrefix(c.Market.APIURL, "http://") && !hasPrefix(c.Market.APIURL, "https://")) {
		return fmt.Errorf("invalid market API URL: %s", c.Market.APIURL)
	}
	if len(c.Market.Symbols) == 0 {
		return fmt.Errorf("at least one market symbol is required")
	}
	if c.Market.PollIntervalSec <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if ws := c.Market.Stream.WSURL; ws != "" && !hasPrefix(ws, "ws://") && !hasPrefix(ws, "wss://") {
		return fmt.Errorf("invalid stream WS URL: %s", ws)
	}

	if c.Storage.Path == "" {
		return fmt.Errorf("storage path is required")
	}

	return nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[0:len(prefix)] == prefix
}

// overrideWithEnv applies environment variable overrides when present.
func overrideWithEnv(cfg *Config) {
	if url := os.Getenv("COINBOT_MARKET_URL"); url != "" {
		cfg.Market.APIURL = url
	}
	if key := os.Getenv("COINBOT_MARKET_KEY"); key != "" {
		cfg.Market.APIKey = key
	}
	if ws := os.Getenv("COINBOT_STREAM_URL"); ws != "" {
		cfg.Market.Stream.WSURL = ws
	}
	if path := os.Getenv("COINBOT_DB_PATH"); path != "" {
		cfg.Storage.Path = path
	}
}
