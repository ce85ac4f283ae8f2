// SPDX-License-Identifier: MIT

package audio

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestWAV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seg.wav")
	w, err := newWAVWriter(path, 16000)
	require.NoError(t, err)
	require.NoError(t, w.writeSamples(chunk(160, 1000)))
	_, err = w.close()
	require.NoError(t, err)
	return path
}

func TestWhisperTranscribe(t *testing.T) {
	path := writeTestWAV(t)
	want, err := os.ReadFile(path)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/transcribe", r.URL.Path)
		assert.Equal(t, "en", r.URL.Query().Get("language"))
		assert.Equal(t, "base", r.URL.Query().Get("model"))
		assert.Equal(t, "audio/wav", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, want, body)

		_, _ = w.Write([]byte(`{
			"text": "  SKYKING SKYKING DO NOT ANSWER ",
			"segments": [
				{"t0": 0.0, "t1": 2.5, "text": " SKYKING SKYKING "},
				{"t0": 2.5, "t1": 4.0, "text": "DO NOT ANSWER"}
			]
		}`))
	}))
	defer srv.Close()

	c := NewWhisperClient(WhisperConfig{ServerURL: srv.URL, Language: "en", Model: "base"})
	c.client = srv.Client()

	text, spans, err := c.Transcribe(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "SKYKING SKYKING DO NOT ANSWER", text)
	require.Len(t, spans, 2)
	assert.Equal(t, "SKYKING SKYKING", spans[0].Text)
	assert.Equal(t, 2.5, spans[0].T1)
}

func TestWhisperRetriesOnce(t *testing.T) {
	path := writeTestWAV(t)

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"text": "TEST", "segments": []}`))
	}))
	defer srv.Close()

	c := NewWhisperClient(WhisperConfig{ServerURL: srv.URL})
	c.client = srv.Client()

	text, _, err := c.Transcribe(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "TEST", text)
	assert.Equal(t, int32(2), calls.Load())
}

func TestWhisperGivesUpAfterRetry(t *testing.T) {
	path := writeTestWAV(t)

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewWhisperClient(WhisperConfig{ServerURL: srv.URL})
	c.client = srv.Client()

	_, _, err := c.Transcribe(context.Background(), path)
	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestWhisperNoRetryOnCancel(t *testing.T) {
	path := writeTestWAV(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewWhisperClient(WhisperConfig{ServerURL: "http://127.0.0.1:1"})
	_, _, err := c.Transcribe(ctx, path)
	require.Error(t, err)
}
