package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ICSConfig describes a single busy-calendar subscription whose events
// are imported as block rules.
type ICSConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label used in logs.
	Name string `yaml:"name" json:"name"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the board.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// PreviewConfig controls the headless-browser board snapshot used for
// messenger link previews.
type PreviewConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	Width   int  `yaml:"width" json:"width"`
	Height  int  `yaml:"height" json:"height"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the board and API.
	Listen string `yaml:"listen" json:"listen"`

	// PageTitle is the heading shown on the board page.
	PageTitle string `yaml:"page_title" json:"page_title"`

	// TelegramUsername is the operator's Telegram handle (without @)
	// used to build booking deep links on open slots.
	TelegramUsername string `yaml:"telegram_username" json:"telegram_username"`

	// SheetURL is the shared Google Sheet holding the rule table. Both
	// the /edit sharing form and the raw CSV export form are accepted.
	// Empty means no sheet source; the board then shows everything open.
	SheetURL string `yaml:"sheet_url" json:"sheet_url"`

	// RefreshCron is a cron-style schedule string (e.g. "* * * * *")
	// used for periodic rule refresh.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// HorizonDays is the number of future days shown on the board.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	// Slots is the fixed ordered grid of bookable time labels offered
	// every day. Labels are opaque; they are matched verbatim against
	// rule rows.
	Slots []string `yaml:"slots" json:"slots"`

	// SlotMinutes is the nominal length of one slot, used only for
	// busy-calendar overlap and the exported feed, never for matching.
	SlotMinutes int `yaml:"slot_minutes" json:"slot_minutes"`

	// Timezone is the IANA timezone the horizon is anchored in
	// (e.g. "Europe/London"). Slot labels themselves are opaque.
	Timezone string `yaml:"timezone" json:"timezone"`

	// ICS is the list of subscribed busy-calendar sources.
	ICS []ICSConfig `yaml:"ics" json:"ics"`

	// Preview, if enabled, captures the board to preview.png after
	// each refresh.
	Preview PreviewConfig `yaml:"preview" json:"preview"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// defaultSlots is the 10:15-20:15 grid the board started with.
var defaultSlots = []string{
	"10:15", "11:30", "12:45",
	"14:00", "15:15", "16:30",
	"17:45", "19:00", "20:15",
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:           "127.0.0.1:8080",
		PageTitle:        "English Lesson Slots",
		TelegramUsername: "",
		SheetURL:         "",
		RefreshCron:      "* * * * *",
		HorizonDays:      14,
		Slots:            append([]string(nil), defaultSlots...),
		SlotMinutes:      75,
		Timezone:         "Local",
		ICS:              []ICSConfig{},
		Preview:          PreviewConfig{Enabled: false},
		BasicAuth:        nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs (e.g., older versions) still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.PageTitle == "" {
		c.PageTitle = "English Lesson Slots"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "* * * * *"
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = 14
	}
	if len(c.Slots) == 0 {
		c.Slots = append([]string(nil), defaultSlots...)
	}
	if c.SlotMinutes <= 0 {
		c.SlotMinutes = 75
	}
	if c.Timezone == "" {
		c.Timezone = "Local"
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".slotcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	return nil
}

// Save is a convenience method on Config that delegates to the
// package-level Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
