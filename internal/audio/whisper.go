// SPDX-License-Identifier: MIT

package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/airwaveio/airwave/internal/metrics"
	"github.com/airwaveio/airwave/internal/model"
)

const whisperTimeout = 60 * time.Second

// WhisperConfig points at the external transcription server.
type WhisperConfig struct {
	ServerURL string
	Language  string
	Model     string
}

// WhisperClient posts WAV segments to the whisper server, one retry on
// failure. Each attempt has its own 60 second budget.
type WhisperClient struct {
	cfg    WhisperConfig
	client *http.Client
}

// NewWhisperClient builds the client.
func NewWhisperClient(cfg WhisperConfig) *WhisperClient {
	return &WhisperClient{
		cfg:    cfg,
		client: &http.Client{Timeout: whisperTimeout},
	}
}

type whisperResponse struct {
	Text     string                    `json:"text"`
	Segments []model.TranscriptionSpan `json:"segments"`
}

// Transcribe sends one WAV file and returns the text plus timed spans.
func (c *WhisperClient) Transcribe(ctx context.Context, wavPath string) (string, []model.TranscriptionSpan, error) {
	start := time.Now()
	text, spans, err := c.post(ctx, wavPath)
	if err != nil && ctx.Err() == nil {
		text, spans, err = c.post(ctx, wavPath)
	}
	metrics.WhisperDurationSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.WhisperRequestsTotal.WithLabelValues("error").Inc()
		return "", nil, err
	}
	metrics.WhisperRequestsTotal.WithLabelValues("ok").Inc()
	return text, spans, nil
}

func (c *WhisperClient) post(ctx context.Context, wavPath string) (string, []model.TranscriptionSpan, error) {
	wav, err := os.ReadFile(wavPath)
	if err != nil {
		return "", nil, fmt.Errorf("whisper: read segment: %w", err)
	}

	q := url.Values{}
	if c.cfg.Language != "" {
		q.Set("language", c.cfg.Language)
	}
	if c.cfg.Model != "" {
		q.Set("model", c.cfg.Model)
	}
	endpoint := strings.TrimSuffix(c.cfg.ServerURL, "/") + "/transcribe"
	if enc := q.Encode(); enc != "" {
		endpoint += "?" + enc
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(wav))
	if err != nil {
		return "", nil, fmt.Errorf("whisper: build request: %w", err)
	}
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("whisper: post: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("whisper: unexpected status %d", resp.StatusCode)
	}

	var doc whisperResponse
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return "", nil, fmt.Errorf("whisper: decode: %w", err)
	}
	for i := range doc.Segments {
		doc.Segments[i].Text = strings.TrimSpace(doc.Segments[i].Text)
	}
	return strings.TrimSpace(doc.Text), doc.Segments, nil
}
