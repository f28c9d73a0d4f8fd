package config

import (
	"errors"
	"os"
	"strings"
)

type Config struct {
	Canvas    CanvasConfig    `json:"canvas"`
	Notify    NotifyConfig    `json:"notify"`
	Logging   LoggingConfig   `json:"logging"`
	Poll      PollConfig      `json:"poll"`
	Snapshots SnapshotsConfig `json:"snapshots"`
	Journal   *JournalConfig  `json:"journal,omitempty"`
}

// CanvasConfig points at the Canvas REST API.
//
// BaseURL and Token may also come from the CANVAS_URL / CANVAS_API_TOKEN
// environment variables, which take precedence over file values.
type CanvasConfig struct {
	BaseURL string `json:"base_url"`
	Token   string `json:"token,omitempty"`

	// RequestTimeout is a Go duration string (e.g. "10s"). Default "15s".
	RequestTimeout string `json:"request_timeout,omitempty"`
	// RatePerSec caps outgoing API requests. Default 5.
	RatePerSec int `json:"rate_per_sec,omitempty"`
	// PerPage is the page size for list endpoints. Default 50.
	PerPage int `json:"per_page,omitempty"`
}

// NotifyConfig selects delivery channels. At least one must be configured.
type NotifyConfig struct {
	Ntfy     *NtfyConfig     `json:"ntfy,omitempty"`
	Telegram *TelegramConfig `json:"telegram,omitempty"`

	// RatePerSec caps notification sends across all channels. Default 3.
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

type NtfyConfig struct {
	// Server defaults to "https://ntfy.sh".
	Server string `json:"server,omitempty"`
	// Topic may also come from the NTFY_TOPIC environment variable.
	Topic string `json:"topic,omitempty"`
}

type TelegramConfig struct {
	Token  string `json:"token"`
	ChatID int64  `json:"chat_id"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// PollConfig controls daemon-mode scheduling. Ignored with -once.
type PollConfig struct {
	// Schedule is a cron spec or "@every <duration>". Default "@every 15m".
	Schedule string `json:"schedule,omitempty"`
	// Timezone is an IANA TZ name for cron evaluation, e.g. "America/New_York".
	Timezone string `json:"timezone,omitempty"`
}

// SnapshotsConfig controls where the two seen-state files live.
type SnapshotsConfig struct {
	// Dir defaults to ".". Files are seen_grades.json and seen_assignments.json.
	Dir string `json:"dir,omitempty"`
}

// JournalConfig controls the optional delivery journal.
//
// Driver values:
//   - "file": append-only JSON Lines
//   - "sqlite": SQLite database file (requires the sqlite build tag)
//
// If the section is omitted or Driver is empty/"none", the journal is off.
type JournalConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// ApplyEnv overlays environment variables onto cfg. Environment wins so
// secrets can stay out of the config file.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv("CANVAS_URL")); v != "" {
		c.Canvas.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("CANVAS_API_TOKEN")); v != "" {
		c.Canvas.Token = v
	}
	if v := strings.TrimSpace(os.Getenv("NTFY_TOPIC")); v != "" {
		if c.Notify.Ntfy == nil {
			c.Notify.Ntfy = &NtfyConfig{}
		}
		c.Notify.Ntfy.Topic = v
	}
}

// Validate checks the fields a run cannot proceed without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Canvas.BaseURL) == "" {
		return errors.New("canvas.base_url is required (or CANVAS_URL)")
	}
	if strings.TrimSpace(c.Canvas.Token) == "" {
		return errors.New("canvas.token is required (or CANVAS_API_TOKEN)")
	}
	hasNtfy := c.Notify.Ntfy != nil && strings.TrimSpace(c.Notify.Ntfy.Topic) != ""
	hasTelegram := c.Notify.Telegram != nil &&
		strings.TrimSpace(c.Notify.Telegram.Token) != "" && c.Notify.Telegram.ChatID != 0
	if !hasNtfy && !hasTelegram {
		return errors.New("at least one notify channel is required (notify.ntfy.topic or notify.telegram)")
	}
	if _, err := ParseDurationField("canvas.request_timeout", c.Canvas.RequestTimeout); err != nil {
		return err
	}
	if c.Journal != nil {
		if _, err := ParseDurationField("journal.busy_timeout", c.Journal.BusyTimeout); err != nil {
			return err
		}
	}
	if c.Canvas.RatePerSec < 0 {
		return errors.New("canvas.rate_per_sec must be >= 0")
	}
	if c.Notify.RatePerSec < 0 {
		return errors.New("notify.rate_per_sec must be >= 0")
	}
	return nil
}

