package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/example/poolside-scheduler/internal/booking"
	"github.com/example/poolside-scheduler/internal/config"
	"github.com/example/poolside-scheduler/internal/oauth"
	"github.com/example/poolside-scheduler/internal/soho"
	"github.com/example/poolside-scheduler/internal/store"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server exposes the automation API consumed by the dashboard and the cron
// entrypoints.
type Server struct {
	Sessions *oauth.SessionStore
	Tokens   *oauth.TokenClient
	Soho     *soho.Client
	Orch     *booking.Orchestrator
	Store    *store.Store
	Cfg      config.Config
	Log      zerolog.Logger
}

func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()

	r.Use(s.requestID)
	r.Use(s.logRequests)
	r.Use(s.sweepSessions)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.HandleFunc("/start-auth", s.handleStartAuth).Methods(http.MethodGet)
	r.HandleFunc("/complete-auth", s.handleCompleteAuth).Methods(http.MethodPost)
	r.HandleFunc("/save-tokens", s.handleSaveTokens).Methods(http.MethodPost)
	r.HandleFunc("/refresh-token", s.handleRefreshToken).Methods(http.MethodPost)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)

	r.HandleFunc("/auto-book", s.handleAutoBook).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/book-poolside/{token}", s.handleBookPoolside).Methods(http.MethodPost)
	r.HandleFunc("/check-poolside-availability/{token}", s.handleAvailability).Methods(http.MethodGet)
	r.HandleFunc("/poolside-slots/{token}", s.handlePoolsideSlots).Methods(http.MethodGet)
	r.HandleFunc("/test-token/{token}", s.handleTestToken).Methods(http.MethodGet)

	r.HandleFunc("/pool-venues", s.handlePoolVenues).Methods(http.MethodGet)
	r.HandleFunc("/last-booking-status", s.handleLastBookingStatus).Methods(http.MethodGet)
	r.HandleFunc("/schedule-info", s.handleScheduleInfo).Methods(http.MethodGet)

	return r
}

// middleware

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(s.Log.With().Str("request_id", id).Logger().WithContext(r.Context())))
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		zerolog.Ctx(r.Context()).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// Expired login sessions are collected opportunistically before any request
// is handled, so the map cannot grow without bound.
func (s *Server) sweepSessions(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.Sessions.Sweep()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Start serves h until ctx is cancelled, then shuts down gracefully.
func Start(ctx context.Context, addr string, h http.Handler, log zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Info().Str("addr", addr).Msg("listening")
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return fmt.Errorf("serve: %w", err)
}
