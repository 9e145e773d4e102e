// internal/settings/settings.go
package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/raidpilot/internal/status"
	"github.com/xkilldash9x/raidpilot/internal/store"
)

// Settings are the user-controlled switches.
type Settings struct {
	AutoRaid        bool `json:"autoRaidEnabled" mapstructure:"auto_raid" yaml:"auto_raid"`
	AutoCombat      bool `json:"autoCombatEnabled" mapstructure:"auto_combat" yaml:"auto_combat"`
	Breaks          bool `json:"breaksEnabled" mapstructure:"breaks" yaml:"breaks"`
	RandomizeBreaks bool `json:"randomizeBreaks" mapstructure:"randomize_breaks" yaml:"randomize_breaks"`
}

// AnyAutomation reports whether at least one automated action is enabled.
func (s Settings) AnyAutomation() bool {
	return s.AutoRaid || s.AutoCombat
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	AutoRaid        *bool `json:"autoRaidEnabled,omitempty"`
	AutoCombat      *bool `json:"autoCombatEnabled,omitempty"`
	Breaks          *bool `json:"breaksEnabled,omitempty"`
	RandomizeBreaks *bool `json:"randomizeBreaks,omitempty"`
}

// Apply returns s with the patch's non-nil fields applied.
func (p Patch) Apply(s Settings) Settings {
	if p.AutoRaid != nil {
		s.AutoRaid = *p.AutoRaid
	}
	if p.AutoCombat != nil {
		s.AutoCombat = *p.AutoCombat
	}
	if p.Breaks != nil {
		s.Breaks = *p.Breaks
	}
	if p.RandomizeBreaks != nil {
		s.RandomizeBreaks = *p.RandomizeBreaks
	}
	return s
}

// DisableAutomation is the patch that turns both automated actions off.
func DisableAutomation() Patch {
	off := false
	return Patch{AutoRaid: &off, AutoCombat: &off}
}

// Store owns the settings document. Every successful change is announced on the bus.
type Store struct {
	kv       store.KV
	bus      *status.Bus
	defaults Settings
	logger   *zap.Logger

	// writeMu orders writes: the document persisted last and the change published last
	// are always the one current holds.
	writeMu sync.Mutex
	mu      sync.Mutex
	current Settings
}

// NewStore creates a Store. defaults are used until something has been saved.
func NewStore(kv store.KV, bus *status.Bus, defaults Settings, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		kv:       kv,
		bus:      bus,
		defaults: defaults,
		current:  defaults,
		logger:   logger.Named("settings"),
	}
}

// Load reads the persisted settings, falling back to the defaults on first run.
func (s *Store) Load(ctx context.Context) (Settings, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var loaded Settings
	err := store.GetJSON(ctx, s.kv, store.KeySettings, &loaded)
	switch {
	case errors.Is(err, store.ErrNotFound):
		loaded = s.defaults
	case err != nil:
		return s.Current(), fmt.Errorf("failed to load settings: %w", err)
	}

	s.mu.Lock()
	s.current = loaded
	s.mu.Unlock()
	return loaded, nil
}

// Current returns the last loaded or saved settings.
func (s *Store) Current() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Save replaces the settings. The in-memory copy and subscribers are updated even when
// persisting fails; the error is still returned so the caller can report it.
func (s *Store) Save(ctx context.Context, next Settings) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.saveLocked(ctx, next)
}

func (s *Store) saveLocked(ctx context.Context, next Settings) error {
	s.mu.Lock()
	s.current = next
	s.mu.Unlock()

	err := store.PutJSON(ctx, s.kv, store.KeySettings, next)
	if err != nil {
		s.logger.Warn("Failed to persist settings", zap.Error(err))
		err = fmt.Errorf("failed to save settings: %w", err)
	}
	if s.bus != nil {
		s.bus.Publish(status.TopicSettings, next)
	}
	return err
}

// Update applies patch to the current settings and saves the result. Concurrent updates
// are applied one after another, so no patch is lost.
func (s *Store) Update(ctx context.Context, patch Patch) (Settings, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	next := patch.Apply(s.Current())
	return next, s.saveLocked(ctx, next)
}

// Subscribe returns a channel of settings changes. Payloads are Settings values.
func (s *Store) Subscribe() (<-chan status.Message, func()) {
	return s.bus.Subscribe(status.TopicSettings)
}
