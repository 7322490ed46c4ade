package bot

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"coinbot/internal/infra"
	"coinbot/internal/service"
)

const (
	settingPrefix    = "prefix"
	settingBootTimes = "boot_times"
	disabledKeyFmt   = "disabled:%s"
	maxBootTimes     = 10
)

// SettingsStore persists bot preferences across restarts.
type SettingsStore interface {
	SaveSetting(key, value string) error
	LoadSettings() (map[string]string, error)
}

// Bot binds the command dispatcher to the ledger and quote services. It is
// transport-agnostic: any line-based source can feed HandleCommand.
type Bot struct {
	ledger   *service.Ledger
	board    *service.QuoteBoard
	settings SettingsStore
	stats    *infra.Stats

	mu        sync.RWMutex
	prefix    string
	disabled  map[string]bool
	owners    map[string]bool
	bootTimes []float64
}

// New creates a Bot with the configured prefix and owner set.
func New(cfg *infra.Config, ledger *service.Ledger, board *service.QuoteBoard, settings SettingsStore) *Bot {
	owners := make(map[string]bool, len(cfg.Bot.OwnerIDs))
	for _, id := range cfg.Bot.OwnerIDs {
		owners[id] = true
	}

	return &Bot{
		ledger:   ledger,
		board:    board,
		settings: settings,
		stats:    infra.GlobalStats,
		prefix:   cfg.Bot.Prefix,
		disabled: make(map[string]bool),
		owners:   owners,
	}
}

// LoadSettings applies persisted preference overrides (prefix, disabled
// commands, boot history). Missing settings leave config defaults in place.
func (b *Bot) LoadSettings() error {
	if b.settings == nil {
		return nil
	}
	stored, err := b.settings.LoadSettings()
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for key, value := range stored {
		switch {
		case key == settingPrefix:
			b.prefix = value
		case key == settingBootTimes:
			var times []float64
			if json.Unmarshal([]byte(value), &times) == nil {
				b.bootTimes = times
			}
		case strings.HasPrefix(key, "disabled:"):
			if value == "1" {
				b.disabled[strings.TrimPrefix(key, "disabled:")] = true
			}
		}
	}
	return nil
}

// RecordBoot appends a boot duration to the persisted history, keeping the
// most recent entries only.
func (b *Bot) RecordBoot(d time.Duration) error {
	b.mu.Lock()
	b.bootTimes = append(b.bootTimes, d.Seconds())
	if len(b.bootTimes) > maxBootTimes {
		b.bootTimes = b.bootTimes[len(b.bootTimes)-maxBootTimes:]
	}
	data, err := json.Marshal(b.bootTimes)
	b.mu.Unlock()
	if err != nil {
		return err
	}

	if b.settings == nil {
		return nil
	}
	return b.settings.SaveSetting(settingBootTimes, string(data))
}

// Prefix returns the active command prefix.
func (b *Bot) Prefix() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.prefix
}

func (b *Bot) isOwner(userID string) bool {
	return b.owners[userID]
}

func (b *Bot) isDisabled(command string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.disabled[command]
}

func (b *Bot) toggleCommand(command string) (bool, error) {
	b.mu.Lock()
	nowDisabled := !b.disabled[command]
	b.disabled[command] = nowDisabled
	b.mu.Unlock()

	if b.settings == nil {
		return nowDisabled, nil
	}
	value := "0"
	if nowDisabled {
		value = "1"
	}
	return nowDisabled, b.settings.SaveSetting(fmt.Sprintf(disabledKeyFmt, command), value)
}

func (b *Bot) setPrefix(prefix string) error {
	b.mu.Lock()
	b.prefix = prefix
	b.mu.Unlock()

	if b.settings == nil {
		return nil
	}
	return b.settings.SaveSetting(settingPrefix, prefix)
}
