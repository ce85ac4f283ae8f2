// SPDX-License-Identifier: MIT

// Package daemon boots and supervises every AirWave component. Boot order
// is Store, Schema Validator, Config Manager, Trackers, Processor,
// Sources; shutdown drains in reverse.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/airwaveio/airwave/internal/audio"
	"github.com/airwaveio/airwave/internal/bus"
	"github.com/airwaveio/airwave/internal/config"
	"github.com/airwaveio/airwave/internal/eam"
	"github.com/airwaveio/airwave/internal/log"
	"github.com/airwaveio/airwave/internal/manager"
	"github.com/airwaveio/airwave/internal/process"
	"github.com/airwaveio/airwave/internal/schema"
	"github.com/airwaveio/airwave/internal/source"
	"github.com/airwaveio/airwave/internal/source/adsb"
	"github.com/airwaveio/airwave/internal/source/airframes"
	"github.com/airwaveio/airwave/internal/source/eamwatch"
	"github.com/airwaveio/airwave/internal/source/youtube"
	"github.com/airwaveio/airwave/internal/store"
	"github.com/airwaveio/airwave/internal/track"
)

const (
	evictInterval   = 60 * time.Second
	statsInterval   = 60 * time.Second
	cleanupInterval = 6 * time.Hour
	drainTimeout    = 10 * time.Second
)

// Options configures the daemon.
type Options struct {
	DBPath     string
	ConfigFile string
	OpsAddr    string
}

// Daemon owns every component for one process lifetime.
type Daemon struct {
	opts   Options
	logger zerolog.Logger

	store      *store.Store
	validator  *schema.Validator
	cfg        *config.Manager
	bus        *bus.Bus
	tracker    *track.Tracker
	hfgcs      *track.HFGCSTracker
	processor  *process.Processor
	recorder   *audio.Recorder
	aggregator *eam.Aggregator
	sources    *manager.Manager

	ready atomic.Bool
}

// New boots the components in dependency order. Any error here is fatal;
// the caller exits non-zero.
func New(opts Options) (*Daemon, error) {
	d := &Daemon{opts: opts, logger: log.WithComponent("daemon")}

	st, err := store.Open(store.DefaultConfig(opts.DBPath))
	if err != nil {
		return nil, fmt.Errorf("daemon: open store: %w", err)
	}
	d.store = st

	validator, err := schema.Load()
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("daemon: load schemas: %w", err)
	}
	d.validator = validator

	cfgMgr, err := config.NewManager(st)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("daemon: config manager: %w", err)
	}
	d.cfg = cfgMgr
	if opts.ConfigFile != "" {
		if err := cfgMgr.LoadFile(opts.ConfigFile); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("daemon: config file: %w", err)
		}
	}

	d.bus = bus.New(d.cfg.GetInt("broadcast", "queue_size"))
	d.tracker = track.NewTracker(
		time.Duration(d.cfg.GetInt("system", "aircraft_stale_seconds"))*time.Second, st)
	d.hfgcs = track.NewHFGCSTracker(
		time.Duration(d.cfg.GetInt("system", "hfgcs_stale_seconds"))*time.Second, d.bus)
	d.processor = process.New(st, validator, d.tracker, d.hfgcs, d.bus)

	whisper := audio.NewWhisperClient(audio.WhisperConfig{
		ServerURL: d.cfg.Get("whisper", "server_url"),
		Language:  d.cfg.Get("whisper", "language"),
		Model:     d.cfg.Get("whisper", "model"),
	})
	voxCfg := audio.VOXConfig{
		SampleRate:  d.cfg.GetInt("audio", "sample_rate"),
		Threshold:   int16(d.cfg.GetInt("audio", "vad_threshold")),
		SpeechOnset: int64(d.cfg.GetInt("audio", "speech_onset_ms")),
		SilenceHang: int64(d.cfg.GetInt("audio", "silence_hang_ms")),
		MaxSegment:  int64(d.cfg.GetInt("audio", "max_segment_ms")),
		Dir:         d.cfg.Get("audio", "recordings_dir"),
	}
	recorder, err := audio.NewRecorder(voxCfg, st, whisper, d.bus)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("daemon: recorder: %w", err)
	}
	d.recorder = recorder
	d.aggregator = eam.NewAggregator(st, d.bus)

	d.sources = manager.New(d.bus)
	d.registerSources()
	return d, nil
}

// registerSources binds a factory per enabled upstream. Factories read
// configuration at call time, so Restart picks up changed settings.
func (d *Daemon) registerSources() {
	cfg, b, sink := d.cfg, d.bus, d.processor

	if cfg.GetBool("tar1090", "enabled") {
		d.sources.Register("tar1090", func() (source.Source, error) {
			return adsb.NewTAR1090(cfg.Get("tar1090", "url"), sink, b,
				cfg.GetDurationMS("tar1090", "poll_interval")), nil
		})
	}
	if cfg.GetBool("opensky", "enabled") {
		d.sources.Register("opensky", func() (source.Source, error) {
			return adsb.NewOpenSky(adsb.OpenSkyConfig{
				CenterLat: cfg.GetFloat("opensky", "default_lat"),
				CenterLon: cfg.GetFloat("opensky", "default_lon"),
				RadiusDeg: cfg.GetFloat("opensky", "default_radius"),
				Interval:  cfg.GetDurationMS("opensky", "poll_interval"),
			}, sink, b), nil
		})
	}
	if cfg.GetBool("adsbexchange", "enabled") {
		d.sources.Register("adsbexchange", func() (source.Source, error) {
			return adsb.NewExchange(adsb.ExchangeConfig{
				APIURL:   cfg.Get("adsbexchange", "api_url"),
				APIKey:   cfg.Get("adsbexchange", "api_key"),
				Lat:      cfg.GetFloat("adsbexchange", "default_lat"),
				Lon:      cfg.GetFloat("adsbexchange", "default_lon"),
				DistNM:   cfg.GetInt("adsbexchange", "default_dist"),
				Interval: cfg.GetDurationMS("adsbexchange", "poll_interval"),
			}, sink, b), nil
		})
	}
	if cfg.GetBool("airframes", "enabled") {
		d.sources.Register("airframes", func() (source.Source, error) {
			return airframes.New(airframes.Config{
				WSURL:   cfg.Get("airframes", "ws_url"),
				NATSURL: cfg.Get("airframes", "nats_url"),
				APIKey:  cfg.Get("airframes", "api_key"),
			}, sink, b), nil
		})
	}
	if cfg.GetBool("eamwatch", "enabled") {
		d.sources.Register("eamwatch", func() (source.Source, error) {
			return eamwatch.New(eamwatch.Config{
				APIURL:   cfg.Get("eamwatch", "api_url"),
				APIToken: cfg.Get("eamwatch", "api_token"),
				Interval: cfg.GetDurationMS("eamwatch", "poll_interval"),
			}, sink, b), nil
		})
	}
	if cfg.GetBool("youtube", "enabled") {
		d.sources.Register("youtube", func() (source.Source, error) {
			return youtube.New(youtube.Config{
				StreamURL:  cfg.Get("youtube", "stream_url"),
				FeedID:     cfg.Get("youtube", "feed_id"),
				FFmpegPath: cfg.Get("youtube", "ffmpeg_path"),
				SampleRate: cfg.GetInt("audio", "sample_rate"),
				Channels:   cfg.GetInt("youtube", "channels"),
			}, d.recorder, b), nil
		})
	}
}

// Run starts everything and blocks until ctx is cancelled, then drains:
// sources first, then the processor, audio path, aggregator, and finally
// the store and bus.
func (d *Daemon) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if err := d.processor.Start(gctx); err != nil {
		return err
	}
	if err := d.aggregator.Start(gctx); err != nil {
		return err
	}
	if d.opts.ConfigFile != "" {
		if err := d.cfg.WatchFile(gctx, d.opts.ConfigFile); err != nil {
			d.logger.Warn().Err(err).Msg("config watcher unavailable")
		}
	}
	d.sources.StartAll(gctx)

	g.Go(func() error { return d.serveOps(gctx) })
	g.Go(func() error { return d.tickLoop(gctx) })

	d.ready.Store(true)
	d.logger.Info().Str("event", "daemon.ready").Msg("all components running")

	<-gctx.Done()
	d.ready.Store(false)
	d.logger.Info().Str("event", "daemon.draining").Msg("shutting down")

	d.sources.StopAll()

	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := d.processor.Stop(drainCtx); err != nil {
		d.logger.Warn().Err(err).Msg("processor drain failed")
	}
	d.flushAircraft()
	d.recorder.Close()
	if err := d.aggregator.Stop(drainCtx); err != nil {
		d.logger.Warn().Err(err).Msg("aggregator drain failed")
	}

	err := g.Wait()
	d.bus.Close()
	if cerr := d.store.Close(); cerr != nil {
		d.logger.Warn().Err(cerr).Msg("store close failed")
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// LogLevel returns the configured log level for the process logger.
func (d *Daemon) LogLevel() string {
	return d.cfg.Get("system", "log_level")
}

// Reload re-reads the overrides file, used by the SIGHUP handler.
func (d *Daemon) Reload() {
	if d.opts.ConfigFile == "" {
		return
	}
	if err := d.cfg.LoadFile(d.opts.ConfigFile); err != nil {
		d.logger.Warn().Err(err).Str("event", "config.reload_failed").Msg("reload failed, keeping previous values")
		return
	}
	d.logger.Info().Str("event", "config.reloaded").Msg("configuration reloaded")
}

// tickLoop runs the periodic maintenance: tracker eviction, statistics
// publication and store cleanup.
func (d *Daemon) tickLoop(ctx context.Context) error {
	evict := time.NewTicker(evictInterval)
	stats := time.NewTicker(statsInterval)
	cleanup := time.NewTicker(cleanupInterval)
	defer evict.Stop()
	defer stats.Stop()
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-evict.C:
			// Flush before evicting so an aircraft's final state lands
			// in aircraft_tracking ahead of its removal from the map.
			d.flushAircraft()
			d.tracker.EvictStale(now)
			d.hfgcs.EvictStale(now)
		case <-stats.C:
			d.publishStats()
		case <-cleanup.C:
			d.runCleanup()
		}
	}
}

func (d *Daemon) publishStats() {
	day := time.Now().UTC().Format("2006-01-02")
	rows, err := d.store.DailyStats(day)
	if err != nil {
		d.logger.Warn().Err(err).Msg("stats query failed")
		return
	}
	d.bus.Publish(bus.TopicStatsUpdated, map[string]any{
		"day":              day,
		"counts":           rows,
		"live_aircraft":    d.tracker.Size(),
		"message_sequence": d.processor.Sequence(),
	})
}

// flushAircraft persists every live tracker snapshot, so track history
// survives process restarts and GetAircraftTrack can serve traffic that
// never produced a text message.
func (d *Daemon) flushAircraft() {
	for _, ac := range d.tracker.ListActive() {
		ac := ac
		if err := d.store.UpsertAircraftState(&ac); err != nil {
			d.logger.Warn().Err(err).Str("aircraft", ac.Identifier()).Msg("aircraft flush failed")
		}
	}
}

func (d *Daemon) runCleanup() {
	policy := store.CleanupPolicy{
		MessageRetentionDays: d.cfg.GetInt("system", "database_retention_days"),
		AircraftStaleHours:   24,
		PhotoRetentionDays:   d.cfg.GetInt("photos", "retention_days"),
	}
	if err := d.store.Cleanup(policy); err != nil {
		d.logger.Warn().Err(err).Msg("cleanup failed")
	}
}
