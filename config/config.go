package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	ModeDirect = "direct"
	ModeDigest = "digest"

	DefaultInterval            = 1800 * time.Second
	DefaultWaitReady           = 2 * time.Minute
	DefaultEmptyNotice         = "No hay nuevas noticias"
	DefaultTelegramMinInterval = time.Second

	// MinInterval is the shortest accepted pause between two cycles
	MinInterval = time.Second
)

// TomlMiniflux holds the feed reader connection
type TomlMiniflux struct {
	URL   string `toml:"url"`
	Token string `toml:"token"`
	// Maximum number of entries per cycle, 0 means no limit
	Limit int `toml:"limit,omitempty"`
	// Only relay entries of this category, 0 means all
	Category int64 `toml:"category,omitempty"`
}

// TomlMatrix is one Matrix room to deliver to
type TomlMatrix struct {
	URL   string `toml:"url"`
	Token string `toml:"token"`
	Room  string `toml:"room"`
	// Minimum time between two messages, 0 means no limit
	MinInterval time.Duration `toml:"min_interval,omitempty"`
}

// TomlTelegram is one Telegram chat, optionally a topic, to deliver to
type TomlTelegram struct {
	BaseURL  string `toml:"base_url,omitempty"`
	Token    string `toml:"token"`
	ChatID   string `toml:"chat_id"`
	ThreadID string `toml:"thread_id,omitempty"`
	// Minimum time between two messages, defaults to one second, negative
	// disables the limit
	MinInterval time.Duration `toml:"min_interval,omitempty"`
}

// TomlSummarizer is the language model used in digest mode
type TomlSummarizer struct {
	API         string `toml:"api,omitempty"`
	URL         string `toml:"url"`
	APIKey      string `toml:"api_key"`
	Model       string `toml:"model"`
	Version     string `toml:"version,omitempty"`
	Description string `toml:"description,omitempty"`
	Prompt      string `toml:"prompt"`
	MaxTokens   int    `toml:"max_tokens"`
}

// TomlConfig represents the top-level configuration
type TomlConfig struct {
	Mode        string        `toml:"mode"`
	Interval    time.Duration `toml:"interval"`
	EmptyNotice string        `toml:"empty_notice,omitempty"`
	// Address of the status server, empty disables it
	Listen    string        `toml:"listen,omitempty"`
	WaitReady time.Duration `toml:"wait_ready,omitempty"`

	Miniflux   TomlMiniflux   `toml:"miniflux"`
	Matrix     []TomlMatrix   `toml:"matrix,omitempty"`
	Telegram   []TomlTelegram `toml:"telegram,omitempty"`
	Summarizer TomlSummarizer `toml:"summarizer,omitempty"`
}

func LoadConfig(path string) (*TomlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config TomlConfig
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

// WriteConfig encodes the configuration as TOML. An existing file is not
// overwritten.
func WriteConfig(path string, config *TomlConfig) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("error creating config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

// ApplyDefaults fills every unset field that has a default
func (c *TomlConfig) ApplyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeDigest
	}
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
	if c.EmptyNotice == "" {
		c.EmptyNotice = DefaultEmptyNotice
	}
	if c.WaitReady == 0 {
		c.WaitReady = DefaultWaitReady
	}
	for i := range c.Telegram {
		if c.Telegram[i].MinInterval == 0 {
			c.Telegram[i].MinInterval = DefaultTelegramMinInterval
		}
	}
}

// Validate reports every problem at once
func (c *TomlConfig) Validate() error {
	var errs []error

	if c.Miniflux.URL == "" {
		errs = append(errs, errors.New("miniflux url is required"))
	}
	if c.Miniflux.Token == "" {
		errs = append(errs, errors.New("miniflux token is required"))
	}
	if c.Miniflux.Limit < 0 {
		errs = append(errs, errors.New("miniflux limit cannot be negative"))
	}

	if len(c.Matrix) == 0 && len(c.Telegram) == 0 {
		errs = append(errs, errors.New("at least one matrix or telegram destination is required"))
	}
	for i, m := range c.Matrix {
		if m.URL == "" || m.Token == "" || m.Room == "" {
			errs = append(errs, fmt.Errorf("matrix destination %d needs url, token and room", i+1))
		}
	}
	for i, t := range c.Telegram {
		if t.Token == "" || t.ChatID == "" {
			errs = append(errs, fmt.Errorf("telegram destination %d needs token and chat_id", i+1))
		}
	}

	switch c.Mode {
	case ModeDirect:
	case ModeDigest:
		s := c.Summarizer
		if s.URL == "" || s.APIKey == "" || s.Model == "" || s.Prompt == "" {
			errs = append(errs, errors.New("digest mode needs summarizer url, api_key, model and prompt"))
		}
		if s.MaxTokens <= 0 {
			errs = append(errs, errors.New("digest mode needs a positive summarizer max_tokens"))
		}
		if s.API != "" && s.API != "anthropic" && s.API != "openai" {
			errs = append(errs, fmt.Errorf("unknown summarizer api %q", s.API))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown mode %q, expected %s or %s", c.Mode, ModeDirect, ModeDigest))
	}

	// a bare integer in TOML decodes as nanoseconds
	if c.Interval < MinInterval {
		errs = append(errs, fmt.Errorf("interval must be at least %s, got %s (use a unit such as \"30m\")", MinInterval, c.Interval))
	}
	if c.WaitReady > 0 && c.WaitReady < time.Second {
		errs = append(errs, fmt.Errorf("wait_ready must be at least 1s or negative, got %s (use a unit such as \"2m\")", c.WaitReady))
	}

	return errors.Join(errs...)
}
