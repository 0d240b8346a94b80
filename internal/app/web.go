// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/paulmach/orb/geojson"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/geotrack/internal/gps"
	"github.com/relabs-tech/geotrack/internal/location"
	"github.com/relabs-tech/geotrack/internal/poi"
	"github.com/relabs-tech/geotrack/internal/tracking"
)

// Tracker is the session surface the web API drives.
type Tracker interface {
	Snapshot() (location.Snapshot, bool)
	Status() tracking.Status
	RequestPermission(ctx context.Context) (gps.Permission, error)
	Start(ctx context.Context) error
	Stop()
	Reset()
}

// Server serves the location API, the websocket stream and metrics.
type Server struct {
	ctx      context.Context // parent of background acquisitions
	tracker  Tracker
	pois     *poi.Catalog
	stream   *Stream
	gatherer prometheus.Gatherer
	log      logrus.FieldLogger
}

// NewServer wires the handlers. Acquisitions started over HTTP run under
// ctx so they end with the process.
func NewServer(ctx context.Context, tracker Tracker, pois *poi.Catalog, stream *Stream, gatherer prometheus.Gatherer, log logrus.FieldLogger) *Server {
	if pois == nil {
		pois = poi.New()
	}
	return &Server{ctx: ctx, tracker: tracker, pois: pois, stream: stream, gatherer: gatherer, log: log}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/location", s.handleLocation)
	mux.HandleFunc("GET /api/location.geojson", s.handleLocationGeoJSON)
	mux.HandleFunc("GET /api/session", s.handleStatus)
	mux.HandleFunc("POST /api/session/{action}", s.handleCommand)
	mux.HandleFunc("GET /api/pois", s.handlePOIs)
	mux.Handle("GET /ws/location", s.stream)
	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	// Static files from ./web as the root
	mux.Handle("GET /", http.FileServer(http.Dir("web")))
	return mux
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Warn("json encode error")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.tracker.Snapshot()
	if !ok {
		s.writeError(w, http.StatusServiceUnavailable, "no data yet")
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleLocationGeoJSON(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.tracker.Snapshot()
	if !ok {
		s.writeError(w, http.StatusServiceUnavailable, "no data yet")
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	if err := json.NewEncoder(w).Encode(SnapshotFeature(snap)); err != nil {
		s.log.WithError(err).Warn("json encode error")
	}
}

// SnapshotFeature renders snap as a GeoJSON point feature carrying the
// signal fields as properties.
func SnapshotFeature(snap location.Snapshot) *geojson.Feature {
	f := geojson.NewFeature(snap.Point())
	f.Properties["heading"] = snap.Heading
	f.Properties["smoothed_heading"] = snap.SmoothedHeading
	f.Properties["is_moving"] = snap.IsMoving
	f.Properties["is_valid"] = snap.IsValid
	f.Properties["signal_strength"] = string(snap.SignalStrength)
	f.Properties["time"] = snap.Timestamp
	if snap.Accuracy != nil {
		f.Properties["accuracy_m"] = *snap.Accuracy
	}
	if snap.Speed != nil {
		f.Properties["speed_mps"] = *snap.Speed
	}
	return f
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.tracker.Status())
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	switch action := r.PathValue("action"); action {
	case "start":
		if st := s.tracker.Status(); st.State == tracking.StateAcquiring || st.IsTracking {
			s.writeError(w, http.StatusConflict, tracking.ErrAlreadyRunning.Error())
			return
		}
		go func() {
			err := s.tracker.Start(s.ctx)
			if err != nil && !errors.Is(err, tracking.ErrStopped) && !errors.Is(err, tracking.ErrAlreadyRunning) {
				s.log.WithError(err).Warn("session start failed")
			}
		}()
		s.writeJSON(w, http.StatusAccepted, s.tracker.Status())
	case "stop":
		s.tracker.Stop()
		s.writeJSON(w, http.StatusOK, s.tracker.Status())
	case "reset":
		s.tracker.Reset()
		s.writeJSON(w, http.StatusOK, s.tracker.Status())
	case "permission":
		perm, err := s.tracker.RequestPermission(r.Context())
		if err != nil {
			s.writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{
			"permission": perm.String(),
			"status":     s.tracker.Status(),
		})
	default:
		s.writeError(w, http.StatusNotFound, "unknown session action "+strconv.Quote(action))
	}
}

func (s *Server) handlePOIs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !q.Has("lat") && !q.Has("lon") {
		w.Header().Set("Content-Type", "application/geo+json")
		if err := json.NewEncoder(w).Encode(s.pois.FeatureCollection()); err != nil {
			s.log.WithError(err).Warn("json encode error")
		}
		return
	}

	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(q.Get("lon"), 64)
	if errLat != nil || errLon != nil || !finite(lat) || !finite(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		s.writeError(w, http.StatusBadRequest, "lat and lon must be valid coordinates")
		return
	}

	resp := map[string]any{}
	if q.Has("radius_m") {
		radius, err := strconv.ParseFloat(q.Get("radius_m"), 64)
		if err != nil || !finite(radius) || radius < 0 {
			s.writeError(w, http.StatusBadRequest, "radius_m must be a non-negative number")
			return
		}
		within := s.pois.Within(lat, lon, radius)
		if within == nil {
			within = []poi.Match{}
		}
		resp["within"] = within
	}
	if m, ok := s.pois.Nearest(lat, lon); ok {
		resp["nearest"] = m
	} else {
		resp["nearest"] = nil
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// finite rejects the NaN and Inf spellings strconv.ParseFloat accepts.
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
