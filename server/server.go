package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"idsbk.dev/gtfsrt"
	"idsbk.dev/gtfsrt/config"
	"idsbk.dev/gtfsrt/metrics"
	"idsbk.dev/gtfsrt/model"
)

const (
	allowOriginHeader = "Access-Control-Allow-Origin"
	feedContentType   = "application/octet-stream"
)

// Builds feeds on demand. Implemented by *gtfsrt.Manager.
type FeedSource interface {
	Feed(ctx context.Context, now time.Time) ([]byte, *model.Feed, error)
	Schedule() *gtfsrt.Schedule
}

// Server exposes the GTFS-Realtime feed over HTTP. Every GET of the
// feed path builds a fresh feed.
type Server struct {
	TimeNow func() time.Time

	source  FeedSource
	metrics *metrics.Collector
	path    string
	started time.Time
	handler http.Handler
}

func New(source FeedSource, cfg *config.Config, m *metrics.Collector) *Server {
	s := &Server{
		TimeNow: time.Now,
		source:  source,
		metrics: m,
		path:    cfg.Server.Path,
		started: time.Now(),
	}
	if s.path == "" {
		s.path = config.DefaultFeedPath
	}

	r := mux.NewRouter()
	r.HandleFunc(s.path, s.handleFeed).Methods(http.MethodGet)
	r.HandleFunc(s.path, s.handleFeedHead).Methods(http.MethodHead)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if m != nil && cfg.Metrics.Enabled {
		r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	}
	r.NotFoundHandler = http.HandlerFunc(notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet, http.MethodHead, http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"Origin",
		},
		ExposedHeaders: []string{
			"Content-Length",
			"Content-Type",
		},
		MaxAge: 86400,
	})

	// Wrapped around the router rather than registered with
	// r.Use, so that 404s are logged too.
	s.handler = corsHandler.Handler(recoveryMiddleware(loggingMiddleware(r)))

	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// Serves on addr until ctx is cancelled, then shuts down gracefully,
// waiting at most shutdownTimeout for requests in flight.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Handler:           s.handler,
		Addr:              addr,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Printf("serving %s on %s", s.path, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Println("shutting down")
	case err := <-serverErrors:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func setFeedHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", feedContentType)
	w.Header().Set(allowOriginHeader, "*")
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	data, _, err := s.source.Feed(r.Context(), s.TimeNow())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, gtfsrt.ErrNoSchedule) {
			status = http.StatusServiceUnavailable
		}
		log.Printf("building feed: %v", err)
		w.Header().Set(allowOriginHeader, "*")
		http.Error(w, http.StatusText(status), status)
		s.metrics.RequestServed(status)
		return
	}

	setFeedHeaders(w)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
	s.metrics.RequestServed(http.StatusOK)
}

// HEAD doesn't build anything.
func (s *Server) handleFeedHead(w http.ResponseWriter, r *http.Request) {
	setFeedHeaders(w)
	w.WriteHeader(http.StatusOK)
}

type scheduleStatus struct {
	URL         string    `json:"url"`
	SHA256      string    `json:"sha256"`
	RetrievedAt time.Time `json:"retrieved_at"`
	Stops       int       `json:"stops"`
	Routes      int       `json:"routes"`
	Trips       int       `json:"trips"`
	StopTimes   int       `json:"stop_times"`
}

type healthStatus struct {
	Status   string          `json:"status"`
	Uptime   string          `json:"uptime"`
	Schedule *scheduleStatus `json:"schedule,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := healthStatus{
		Status: "ok",
		Uptime: time.Since(s.started).Round(time.Second).String(),
	}
	code := http.StatusOK

	schedule := s.source.Schedule()
	if schedule == nil {
		health.Status = "no schedule"
		code = http.StatusServiceUnavailable
	} else {
		health.Schedule = &scheduleStatus{
			Stops:     schedule.NumStops(),
			Routes:    schedule.NumRoutes(),
			Trips:     schedule.NumTrips(),
			StopTimes: schedule.NumStopTimes(),
		}
		if md := schedule.Metadata; md != nil {
			health.Schedule.URL = md.URL
			health.Schedule.SHA256 = md.SHA256
			health.Schedule.RetrievedAt = md.RetrievedAt
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(health); err != nil {
		log.Printf("encoding health: %v", err)
	}
}

func notFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(allowOriginHeader, "*")
	w.WriteHeader(http.StatusNotFound)
	if r.Method != http.MethodHead {
		w.Write([]byte("Not Found"))
	}
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(allowOriginHeader, "*")
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
