// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airwaveio/airwave/internal/model"
)

type memSettings struct {
	rows map[string]model.Setting
}

func newMemSettings() *memSettings {
	return &memSettings{rows: make(map[string]model.Setting)}
}

func (s *memSettings) GetSetting(category, key string) (string, error) {
	return s.rows[category+"."+key].Value, nil
}

func (s *memSettings) SetSetting(category, key, value string) error {
	s.rows[category+"."+key] = model.Setting{Category: category, Key: key, Value: value}
	return nil
}

func (s *memSettings) AllSettings() ([]model.Setting, error) {
	out := make([]model.Setting, 0, len(s.rows))
	for _, st := range s.rows {
		out = append(out, st)
	}
	return out, nil
}

func TestGetDefaults(t *testing.T) {
	m, err := NewManager(nil)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9000", m.Get("whisper", "server_url"))
	assert.Equal(t, 5000, m.GetInt("tar1090", "poll_interval"))
	assert.False(t, m.GetBool("tar1090", "enabled"))
	assert.InDelta(t, 2.5, m.GetFloat("opensky", "default_radius"), 0.001)
	assert.Equal(t, "", m.Get("nope", "nope"), "unknown keys read as empty")
}

func TestPrecedenceLayers(t *testing.T) {
	st := newMemSettings()
	require.NoError(t, st.SetSetting("tar1090", "url", "http://store/aircraft.json"))

	t.Setenv("AIRWAVE_TAR1090_URL", "http://env/aircraft.json")

	m, err := NewManager(st)
	require.NoError(t, err)

	// Store beats everything.
	assert.Equal(t, "http://store/aircraft.json", m.Get("tar1090", "url"))

	// Without a store value the file layer wins.
	m2, err := NewManager(newMemSettings())
	require.NoError(t, err)
	m2.applyFileValues(map[string]string{"tar1090.url": "http://file/aircraft.json"})
	assert.Equal(t, "http://file/aircraft.json", m2.Get("tar1090", "url"))

	// Without store or file the environment wins over the default.
	m3, err := NewManager(nil)
	require.NoError(t, err)
	assert.Equal(t, "http://env/aircraft.json", m3.Get("tar1090", "url"))
}

func TestMalformedEnvIgnored(t *testing.T) {
	t.Setenv("AIRWAVE_TAR1090_POLL_INTERVAL", "not-a-number")
	m, err := NewManager(nil)
	require.NoError(t, err)
	assert.Equal(t, 5000, m.GetInt("tar1090", "poll_interval"))
}

func TestSetValidatesAndPersists(t *testing.T) {
	st := newMemSettings()
	m, err := NewManager(st)
	require.NoError(t, err)

	require.NoError(t, m.Set("tar1090", "poll_interval", "10000"))
	assert.Equal(t, 10000, m.GetInt("tar1090", "poll_interval"))
	assert.Equal(t, "10000", st.rows["tar1090.poll_interval"].Value)

	assert.Error(t, m.Set("tar1090", "poll_interval", "fast"))
	assert.Error(t, m.Set("tar1090", "bogus_key", "1"))
	assert.Error(t, m.Set("bogus_category", "url", "x"))
	assert.Equal(t, 10000, m.GetInt("tar1090", "poll_interval"), "failed set leaves value untouched")
}

func TestUnknownPersistedSettingIgnored(t *testing.T) {
	st := newMemSettings()
	st.rows["legacy.gone"] = model.Setting{Category: "legacy", Key: "gone", Value: "1"}
	require.NoError(t, st.SetSetting("eamwatch", "api_token", "tok"))

	m, err := NewManager(st)
	require.NoError(t, err)
	assert.Equal(t, "tok", m.Get("eamwatch", "api_token"))
}

func TestOnChangeListeners(t *testing.T) {
	m, err := NewManager(newMemSettings())
	require.NoError(t, err)

	var exact, wild []string
	m.OnChange("tar1090", "url", func(_, _, value string) { exact = append(exact, value) })
	m.OnChange("tar1090", "", func(_, key, _ string) { wild = append(wild, key) })

	require.NoError(t, m.Set("tar1090", "url", "http://a/aircraft.json"))
	require.NoError(t, m.Set("tar1090", "poll_interval", "9000"))

	assert.Equal(t, []string{"http://a/aircraft.json"}, exact)
	assert.Equal(t, []string{"url", "poll_interval"}, wild)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tar1090:
  enabled: true
  url: http://receiver/aircraft.json
opensky:
  default_radius: 3.0
`), 0o644))

	m, err := NewManager(nil)
	require.NoError(t, err)
	require.NoError(t, m.LoadFile(path))

	assert.True(t, m.GetBool("tar1090", "enabled"))
	assert.Equal(t, "http://receiver/aircraft.json", m.Get("tar1090", "url"))
	assert.InDelta(t, 3.0, m.GetFloat("opensky", "default_radius"), 0.001)
}

func TestLoadFileRejectsUnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tar1090:\n  pol_interval: 5000\n"), 0o644))

	m, err := NewManager(nil)
	require.NoError(t, err)
	assert.Error(t, m.LoadFile(path))
}

func TestFileReloadFiresListeners(t *testing.T) {
	m, err := NewManager(nil)
	require.NoError(t, err)

	var fired int
	m.OnChange("tar1090", "url", func(_, _, _ string) { fired++ })

	m.applyFileValues(map[string]string{"tar1090.url": "http://a"})
	m.applyFileValues(map[string]string{"tar1090.url": "http://a"}) // unchanged, no fire
	m.applyFileValues(map[string]string{"tar1090.url": "http://b"})
	assert.Equal(t, 2, fired)
}
