// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// LoadFile reads a YAML overrides file shaped as category -> key -> value.
// Unknown keys are rejected so typos fail loudly instead of silently
// falling back to defaults.
func (m *Manager) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read overrides file: %w", err)
	}

	var doc map[string]map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("config: parse overrides file: %w", err)
	}

	vals := make(map[string]string)
	for category, keys := range doc {
		for key, v := range keys {
			opt, err := lookupOption(category, key)
			if err != nil {
				return err
			}
			value := fmt.Sprintf("%v", v)
			if err := validateValue(opt, value); err != nil {
				return err
			}
			vals[category+"."+key] = value
		}
	}

	m.applyFileValues(vals)
	return nil
}

// WatchFile reloads the overrides file on every write event until ctx is
// done. Best-effort: a reload failure keeps the previous values.
func (m *Manager) WatchFile(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: create watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("config: watch overrides file: %w", err)
	}

	m.logger.Info().
		Str("event", "config.watcher_started").
		Str("path", path).
		Msg("watching overrides file")

	go func() {
		defer func() { _ = watcher.Close() }()
		// Editors often emit bursts of events on save; debounce them.
		var pending <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					pending = time.After(250 * time.Millisecond)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				m.logger.Warn().Err(err).Str("event", "config.watcher_error").Msg("overrides watcher error")
			case <-pending:
				pending = nil
				if err := m.LoadFile(path); err != nil && !errors.Is(err, os.ErrNotExist) {
					m.logger.Warn().Err(err).
						Str("event", "config.reload_failed").
						Msg("overrides reload failed, keeping previous values")
				}
			}
		}
	}()
	return nil
}
