// SPDX-License-Identifier: MIT

// Package config merges environment defaults, an optional YAML overrides
// file and store-backed settings into one live view. Precedence, lowest to
// highest: registry defaults < environment < file < store.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/airwaveio/airwave/internal/log"
	"github.com/airwaveio/airwave/internal/model"
)

// envPrefix namespaces environment overrides, e.g. AIRWAVE_TAR1090_URL.
const envPrefix = "AIRWAVE"

// SettingsStore is the slice of the store the manager needs.
type SettingsStore interface {
	GetSetting(category, key string) (string, error)
	SetSetting(category, key, value string) error
	AllSettings() ([]model.Setting, error)
}

// ChangeFunc is invoked synchronously after a successful Set. Listeners
// must be fast; blocking work belongs on a goroutine.
type ChangeFunc func(category, key, value string)

// Manager is the layered configuration component.
type Manager struct {
	store  SettingsStore
	logger zerolog.Logger

	mu        sync.RWMutex
	fileVals  map[string]string // "category.key" -> value, from YAML overrides
	storeVals map[string]string // "category.key" -> value, from settings table

	listenerMu sync.RWMutex
	listeners  map[string][]ChangeFunc // "category.key" or "category.*"
}

// NewManager builds a manager over the given settings store. Store-backed
// overrides are loaded eagerly so a boot failure surfaces here.
func NewManager(store SettingsStore) (*Manager, error) {
	m := &Manager{
		store:     store,
		logger:    log.WithComponent("config"),
		fileVals:  make(map[string]string),
		storeVals: make(map[string]string),
		listeners: make(map[string][]ChangeFunc),
	}
	if store != nil {
		settings, err := store.AllSettings()
		if err != nil {
			return nil, fmt.Errorf("config: load settings: %w", err)
		}
		for _, st := range settings {
			if _, err := lookupOption(st.Category, st.Key); err != nil {
				m.logger.Warn().
					Str("event", "config.unknown_setting").
					Str("category", st.Category).
					Str("key", st.Key).
					Msg("ignoring unknown persisted setting")
				continue
			}
			m.storeVals[st.Category+"."+st.Key] = st.Value
		}
	}
	return m, nil
}

// Get returns the effective value for category/key, resolving layers in
// precedence order. Unknown keys return the empty string.
func (m *Manager) Get(category, key string) string {
	opt, err := lookupOption(category, key)
	if err != nil {
		return ""
	}
	ck := category + "." + key

	m.mu.RLock()
	if v, ok := m.storeVals[ck]; ok {
		m.mu.RUnlock()
		return v
	}
	if v, ok := m.fileVals[ck]; ok {
		m.mu.RUnlock()
		return v
	}
	m.mu.RUnlock()

	envName := envPrefix + "_" + strings.ToUpper(category) + "_" + strings.ToUpper(key)
	if v, ok := os.LookupEnv(envName); ok {
		if err := validateValue(opt, v); err == nil {
			return v
		}
		m.logger.Warn().Str("env", envName).Msg("ignoring malformed environment override")
	}
	return opt.Default
}

// GetBool returns the effective boolean value (false on parse failure).
func (m *Manager) GetBool(category, key string) bool {
	v, _ := strconv.ParseBool(m.Get(category, key))
	return v
}

// GetInt returns the effective integer value (0 on parse failure).
func (m *Manager) GetInt(category, key string) int {
	v, _ := strconv.Atoi(m.Get(category, key))
	return v
}

// GetFloat returns the effective float value (0 on parse failure).
func (m *Manager) GetFloat(category, key string) float64 {
	v, _ := strconv.ParseFloat(m.Get(category, key), 64)
	return v
}

// GetDurationMS interprets an integer option as milliseconds.
func (m *Manager) GetDurationMS(category, key string) time.Duration {
	return time.Duration(m.GetInt(category, key)) * time.Millisecond
}

// Set validates, persists and applies an override, then fires listeners
// synchronously. A validation failure leaves the current value untouched.
func (m *Manager) Set(category, key, value string) error {
	opt, err := lookupOption(category, key)
	if err != nil {
		return err
	}
	if err := validateValue(opt, value); err != nil {
		return err
	}
	if m.store != nil {
		if err := m.store.SetSetting(category, key, value); err != nil {
			return fmt.Errorf("config: persist %s.%s: %w", category, key, err)
		}
	}

	ck := category + "." + key
	m.mu.Lock()
	m.storeVals[ck] = value
	m.mu.Unlock()

	m.logger.Info().
		Str("event", "config.set").
		Str("category", category).
		Str("key", key).
		Msg("configuration updated")

	m.fire(category, key, value)
	return nil
}

// OnChange registers fn for a specific category/key. An empty key
// subscribes to every change in the category.
func (m *Manager) OnChange(category, key string, fn ChangeFunc) {
	ck := category + "." + key
	if key == "" {
		ck = category + ".*"
	}
	m.listenerMu.Lock()
	m.listeners[ck] = append(m.listeners[ck], fn)
	m.listenerMu.Unlock()
}

func (m *Manager) fire(category, key, value string) {
	m.listenerMu.RLock()
	exact := append([]ChangeFunc(nil), m.listeners[category+"."+key]...)
	wild := append([]ChangeFunc(nil), m.listeners[category+".*"]...)
	m.listenerMu.RUnlock()

	for _, fn := range exact {
		fn(category, key, value)
	}
	for _, fn := range wild {
		fn(category, key, value)
	}
}

// applyFileValues swaps in a freshly loaded overrides file and fires
// listeners for keys whose effective value changed.
func (m *Manager) applyFileValues(vals map[string]string) {
	m.mu.Lock()
	old := m.fileVals
	m.fileVals = vals
	m.mu.Unlock()

	if diff := cmp.Diff(old, vals); diff != "" {
		m.logger.Info().
			Str("event", "config.file_reloaded").
			Int("keys", len(vals)).
			Msg("overrides file reloaded")
	}

	for ck, v := range vals {
		if old[ck] == v {
			continue
		}
		parts := strings.SplitN(ck, ".", 2)
		if len(parts) == 2 {
			m.fire(parts[0], parts[1], v)
		}
	}
}
