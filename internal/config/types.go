package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"adventbot/internal/clock"
)

// Config is the single startup configuration document.
//
// The file may be JSON or YAML; both are decoded strictly (unknown fields are
// rejected) so typos fail fast instead of silently disabling features.
type Config struct {
	Telegram   TelegramConfig   `json:"telegram"`
	Logging    LoggingConfig    `json:"logging"`
	Campaign   CampaignConfig   `json:"campaign"`
	OpenWindow OpenWindowConfig `json:"open_window"`
	TracksFile string           `json:"tracks_file"`
	Storage    StorageConfig    `json:"storage"`
	Broadcast  BroadcastConfig  `json:"broadcast"`
}

type TelegramConfig struct {
	Token       string `json:"token"`
	AdminUserID int64  `json:"admin_user_id"`
	PollTimeout string `json:"poll_timeout"`
}

type LoggingConfig struct {
	Level   string            `json:"level"`
	Console bool              `json:"console"`
	File    LoggingFileConfig `json:"file"`
}

type LoggingFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// CampaignConfig describes the calendar window and the daily trigger times.
// Slots maps a slot tag ("1".."3") to a local HH:MM trigger time.
type CampaignConfig struct {
	Timezone string            `json:"timezone"`
	Start    string            `json:"start"`
	End      string            `json:"end"`
	Slots    map[string]string `json:"slots"`
	Top5At   string            `json:"top5_at"`
}

// OpenWindowConfig gates /today to a daily local-time window.
// From is inclusive, To is exclusive.
type OpenWindowConfig struct {
	Enabled bool   `json:"enabled"`
	From    string `json:"from"`
	To      string `json:"to"`
}

type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout"`
}

type BroadcastConfig struct {
	RatePerSec int `json:"rate_per_sec"`
}

var slotTags = []string{"1", "2", "3"}

// Validate checks everything that must hold before the process may start.
// Any error returned here is fatal at startup.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is required (or set TELEGRAM_BOT_TOKEN)")
	}
	if c.Telegram.AdminUserID == 0 {
		return fmt.Errorf("telegram.admin_user_id is required")
	}
	if _, err := ParseDurationField("telegram.poll_timeout", c.Telegram.PollTimeout); err != nil {
		return err
	}

	if strings.TrimSpace(c.Campaign.Timezone) == "" {
		return fmt.Errorf("campaign.timezone is required")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	start, end, err := c.Campaign.Window()
	if err != nil {
		return err
	}
	if end.Before(start) {
		return fmt.Errorf("campaign.end %q is before campaign.start %q", c.Campaign.End, c.Campaign.Start)
	}
	if len(c.Campaign.Slots) == 0 {
		return fmt.Errorf("campaign.slots must define at least one slot")
	}
	for tag, at := range c.Campaign.Slots {
		if !validSlotTag(tag) {
			return fmt.Errorf("campaign.slots: unknown slot tag %q (want 1, 2 or 3)", tag)
		}
		if _, _, err := ParseHHMM(at); err != nil {
			return fmt.Errorf("campaign.slots[%s]: %w", tag, err)
		}
	}
	if _, _, err := ParseHHMM(c.Campaign.Top5At); err != nil {
		return fmt.Errorf("campaign.top5_at: %w", err)
	}

	if c.OpenWindow.Enabled {
		if _, _, err := ParseHHMM(c.OpenWindow.From); err != nil {
			return fmt.Errorf("open_window.from: %w", err)
		}
		if _, _, err := ParseHHMM(c.OpenWindow.To); err != nil {
			return fmt.Errorf("open_window.to: %w", err)
		}
	}

	if strings.TrimSpace(c.TracksFile) == "" {
		return fmt.Errorf("tracks_file is required")
	}

	switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
	case "json", "sqlite", "sqlite3", "memory":
	default:
		return fmt.Errorf("storage.driver %q is unknown (want json, sqlite or memory)", c.Storage.Driver)
	}
	if strings.TrimSpace(c.Storage.Path) == "" && !strings.EqualFold(c.Storage.Driver, "memory") {
		return fmt.Errorf("storage.path is required for driver %q", c.Storage.Driver)
	}
	if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
		return err
	}

	if c.Broadcast.RatePerSec < 0 {
		return fmt.Errorf("broadcast.rate_per_sec must be >= 0")
	}
	return nil
}

// Location loads the configured campaign time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(strings.TrimSpace(c.Campaign.Timezone))
	if err != nil {
		return nil, fmt.Errorf("campaign.timezone: %w", err)
	}
	return loc, nil
}

// Window parses the inclusive campaign start/end dates.
func (cc CampaignConfig) Window() (start, end time.Time, err error) {
	start, err = time.Parse(clock.DateLayout, strings.TrimSpace(cc.Start))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("campaign.start: invalid date %q (want YYYY-MM-DD)", cc.Start)
	}
	end, err = time.Parse(clock.DateLayout, strings.TrimSpace(cc.End))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("campaign.end: invalid date %q (want YYYY-MM-DD)", cc.End)
	}
	return start, end, nil
}

// ParseHHMM parses a local wall-clock time in "HH:MM" form.
func ParseHHMM(s string) (hour, minute int, err error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h, m, nil
}

func validSlotTag(tag string) bool {
	for _, t := range slotTags {
		if t == tag {
			return true
		}
	}
	return false
}
