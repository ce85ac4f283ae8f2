// SPDX-License-Identifier: MIT

// Package youtube captures the audio track of a livestream by spawning
// ffmpeg and feeding the decoded PCM to the VOX recorder. The subprocess
// is supervised: on exit it is restarted with exponential backoff.
package youtube

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os/exec"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/airwaveio/airwave/internal/bus"
	"github.com/airwaveio/airwave/internal/log"
	"github.com/airwaveio/airwave/internal/metrics"
	"github.com/airwaveio/airwave/internal/procgroup"
	"github.com/airwaveio/airwave/internal/source"
)

const (
	initialBackoff = 2 * time.Second
	maxBackoff     = 60 * time.Second
	terminateGrace = 3 * time.Second
	readChunk      = 4096 // bytes per stdout read, 2048 samples mono
)

// PCMSink consumes decoded audio. Samples are interleaved int16 frames at
// the configured sample rate.
type PCMSink interface {
	WritePCM(feedID string, channels int, samples []int16)
}

// Config describes one livestream capture.
type Config struct {
	StreamURL  string
	FeedID     string
	FFmpegPath string
	SampleRate int
	Channels   int
}

// Source supervises one ffmpeg subprocess per livestream.
type Source struct {
	cfg    Config
	sink   PCMSink
	bus    *bus.Bus
	logger zerolog.Logger

	cancel context.CancelFunc
	done   chan struct{}

	connected  atomic.Bool
	lastUpdate atomic.Int64
	bytesRead  atomic.Int64
}

// New builds the capture source. SampleRate and Channels must match what
// the VOX recorder expects (16 kHz, 1 or 2 channels).
func New(cfg Config, sink PCMSink, b *bus.Bus) *Source {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels == 0 {
		cfg.Channels = 1
	}
	return &Source{
		cfg:    cfg,
		sink:   sink,
		bus:    b,
		logger: log.WithSource("youtube").With().Str("feed", cfg.FeedID).Logger(),
	}
}

// Name implements source.Source.
func (s *Source) Name() string { return "youtube:" + s.cfg.FeedID }

// Start launches the supervision loop. Non-blocking.
func (s *Source) Start(ctx context.Context) error {
	if s.cfg.StreamURL == "" {
		return fmt.Errorf("youtube: stream_url not configured")
	}
	if s.done != nil {
		return fmt.Errorf("youtube: already started")
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.superviseLoop(loopCtx)
	return nil
}

// Stop cancels the loop, terminates ffmpeg and waits, bounded by ctx.
func (s *Source) Stop(ctx context.Context) error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("youtube: stop timed out: %w", ctx.Err())
	}
}

// Stats implements source.Source. MessageCount reports decoded bytes.
func (s *Source) Stats() source.Stats {
	return source.Stats{
		Connected:    s.connected.Load(),
		LastUpdate:   time.UnixMilli(s.lastUpdate.Load()),
		MessageCount: s.bytesRead.Load(),
	}
}

func (s *Source) superviseLoop(ctx context.Context) {
	defer close(s.done)

	backoff := initialBackoff
	for {
		if ctx.Err() != nil {
			return
		}

		start := time.Now()
		err := s.runOnce(ctx)
		s.setConnected(false, err)
		if ctx.Err() != nil {
			return
		}

		// A run that held the stream for a while earns a fresh backoff.
		if time.Since(start) > 2*maxBackoff {
			backoff = initialBackoff
		}
		s.logger.Warn().Err(err).
			Dur("restart_in", backoff).
			Str("event", "source.ffmpeg_exited").
			Msg("decoder exited, restarting")

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// runOnce spawns ffmpeg and pumps its stdout until the subprocess exits
// or ctx is done. Always reaps the process before returning.
func (s *Source) runOnce(ctx context.Context) error {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", s.cfg.StreamURL,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", fmt.Sprintf("%d", s.cfg.SampleRate),
		"-ac", fmt.Sprintf("%d", s.cfg.Channels),
		"-f", "s16le",
		"pipe:1",
	}
	cmd := exec.Command(s.cfg.FFmpegPath, args...)
	procgroup.Set(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("youtube: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("youtube: start ffmpeg: %w", err)
	}

	s.logger.Info().Int("pid", cmd.Process.Pid).Str("event", "source.ffmpeg_started").Msg("decoder started")
	s.setConnected(true, nil)

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	pumpDone := make(chan error, 1)
	go func() { pumpDone <- s.pump(stdout) }()

	select {
	case <-ctx.Done():
		err := procgroup.Terminate(cmd, waitCh, terminateGrace)
		<-pumpDone
		return err
	case err := <-waitCh:
		<-pumpDone
		if err != nil {
			return fmt.Errorf("youtube: ffmpeg: %w", err)
		}
		return fmt.Errorf("youtube: ffmpeg exited")
	}
}

// pump converts little-endian s16 stdout bytes into samples for the sink.
func (s *Source) pump(r io.Reader) error {
	br := bufio.NewReaderSize(r, readChunk*4)
	buf := make([]byte, readChunk)
	var carry []byte

	for {
		n, err := br.Read(buf)
		if n > 0 {
			data := append(carry, buf[:n]...)
			usable := len(data) &^ 1 // whole samples only
			carry = append([]byte(nil), data[usable:]...)

			samples := make([]int16, usable/2)
			for i := range samples {
				samples[i] = int16(binary.LittleEndian.Uint16(data[2*i:]))
			}
			s.sink.WritePCM(s.cfg.FeedID, s.cfg.Channels, samples)
			s.bytesRead.Add(int64(n))
			s.lastUpdate.Store(time.Now().UnixMilli())
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

func (s *Source) setConnected(up bool, cause error) {
	if s.connected.Swap(up) == up {
		return
	}
	name := s.Name()
	if up {
		metrics.SourceConnected.WithLabelValues(name).Set(1)
		s.bus.Publish(bus.TopicSourceStatus, bus.SourceStatus{Source: name, OK: true})
		return
	}
	metrics.SourceConnected.WithLabelValues(name).Set(0)
	status := bus.SourceStatus{Source: name, OK: false}
	if cause != nil {
		status.Error = cause.Error()
	}
	s.bus.Publish(bus.TopicSourceStatus, status)
}
