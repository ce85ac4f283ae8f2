// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/airwaveio/airwave/internal/apperr"
	"github.com/airwaveio/airwave/internal/store"
)

// opsRouter assembles the operational HTTP surface: health probes, metrics
// and read-only state for debugging. The public client edge is a separate
// service; this listener stays internal.
func (d *Daemon) opsRouter(ctx context.Context) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if !d.ready.Load() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/sources", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, d.sources.Stats())
		})
		r.Post("/sources/{name}/restart", func(w http.ResponseWriter, req *http.Request) {
			if err := d.sources.Restart(ctx, chi.URLParam(req, "name")); err != nil {
				writeError(w, err)
				return
			}
			w.WriteHeader(http.StatusAccepted)
		})

		r.Get("/messages", func(w http.ResponseWriter, req *http.Request) {
			msgs, err := d.store.GetMessagesRecent(queryLimit(req, 100))
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, msgs)
		})
		r.Get("/messages/search", func(w http.ResponseWriter, req *http.Request) {
			q := req.URL.Query().Get("q")
			if q == "" {
				writeError(w, apperr.New(apperr.KindValidation, "search_query_missing", "query parameter q is required"))
				return
			}
			msgs, err := d.store.SearchMessages(q, queryLimit(req, 100))
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, msgs)
		})

		r.Get("/aircraft", func(w http.ResponseWriter, req *http.Request) {
			live := d.tracker.ListActive()
			if len(live) == 0 {
				// Cold start: serve the last flushed snapshots until
				// live traffic rebuilds the map.
				persisted, err := d.store.GetActiveAircraft(queryLimit(req, 100))
				if err != nil {
					writeError(w, err)
					return
				}
				writeJSON(w, persisted)
				return
			}
			writeJSON(w, live)
		})
		r.Get("/aircraft/{identifier}/track", func(w http.ResponseWriter, req *http.Request) {
			trk, err := d.store.GetAircraftTrack(chi.URLParam(req, "identifier"))
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, trk)
		})
		r.Get("/hfgcs", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, d.hfgcs.ListActive())
		})
		r.Get("/photos/{registration}", func(w http.ResponseWriter, req *http.Request) {
			photo, err := d.store.GetAircraftPhoto(chi.URLParam(req, "registration"))
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, photo)
		})

		r.Get("/eams", func(w http.ResponseWriter, req *http.Request) {
			eams, err := d.store.GetRecentEAMs(queryLimit(req, 50))
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, eams)
		})
		r.Get("/recordings/{segment_id}", func(w http.ResponseWriter, req *http.Request) {
			seg, err := d.store.GetRecording(chi.URLParam(req, "segment_id"))
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, seg)
		})

		r.Get("/config/{category}/{key}", func(w http.ResponseWriter, req *http.Request) {
			category := chi.URLParam(req, "category")
			key := chi.URLParam(req, "key")
			writeJSON(w, map[string]string{
				"category": category,
				"key":      key,
				"value":    d.cfg.Get(category, key),
			})
		})
		r.Put("/config/{category}/{key}", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				Value string `json:"value"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeError(w, apperr.Wrap(apperr.KindValidation, "config_body_invalid", err))
				return
			}
			category := chi.URLParam(req, "category")
			key := chi.URLParam(req, "key")
			if err := d.cfg.Set(category, key, body.Value); err != nil {
				writeError(w, apperr.Wrap(apperr.KindValidation, "config_set_rejected", err))
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
	})
	return r
}

func (d *Daemon) serveOps(ctx context.Context) error {
	srv := &http.Server{
		Addr:              d.opts.OpsAddr,
		Handler:           d.opsRouter(ctx),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	d.logger.Info().Str("addr", d.opts.OpsAddr).Str("event", "ops.listening").Msg("ops server listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func queryLimit(req *http.Request, fallback int) int {
	if raw := req.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

// writeError maps the error taxonomy onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, store.ErrNotFound) {
		status = http.StatusNotFound
	} else {
		switch apperr.KindOf(err) {
		case apperr.KindValidation:
			status = http.StatusBadRequest
		case apperr.KindNotFound:
			status = http.StatusNotFound
		case apperr.KindUnauthorized:
			status = http.StatusUnauthorized
		case apperr.KindConflict:
			status = http.StatusConflict
		case apperr.KindServiceUnavailable, apperr.KindTransient:
			status = http.StatusServiceUnavailable
		}
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
