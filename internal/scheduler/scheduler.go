// Package scheduler replaces the external cron processes: it refreshes the
// stored credential periodically and fires the booking run once a day at the
// configured local time, when the upstream releases the 48-hour window.
package scheduler

import (
	"context"
	"time"

	"github.com/example/poolside-scheduler/internal/booking"
	"github.com/example/poolside-scheduler/internal/metrics"
	"github.com/example/poolside-scheduler/internal/store"
	"github.com/rs/zerolog"
)

type Refresher interface {
	Refresh(ctx context.Context) (store.Credential, bool, error)
}

type Runner interface {
	Run(ctx context.Context, req booking.RunRequest) (booking.Result, error)
}

type Scheduler struct {
	Tokens  Refresher
	Orch    Runner
	Metrics *metrics.Metrics

	RefreshInterval time.Duration
	BookAtLocal     string // HH:MM
	Location        *time.Location
	Log             zerolog.Logger

	lastRefresh time.Time
	lastBookDay string
}

// Run ticks once a minute until the context is cancelled. Work runs inline:
// one in-flight orchestration at a time is the intended process model.
func (s *Scheduler) Run(ctx context.Context) error {
	t := time.NewTicker(time.Minute)
	defer t.Stop()

	// kick a refresh immediately so a restart picks up a near-expiry token
	s.refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	now := time.Now().In(s.Location)

	if time.Since(s.lastRefresh) >= s.RefreshInterval {
		s.refresh(ctx)
	}

	day := now.Format("2006-01-02")
	if now.Format("15:04") >= s.BookAtLocal && s.lastBookDay != day {
		s.lastBookDay = day
		s.book(ctx)
	}
}

func (s *Scheduler) refresh(ctx context.Context) {
	s.lastRefresh = time.Now()

	rctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, _, err := s.Tokens.Refresh(rctx); err != nil {
		s.Metrics.TokenRefreshes.WithLabelValues("error").Inc()
		s.Log.Warn().Err(err).Msg("scheduled token refresh failed")
		return
	}
	s.Metrics.TokenRefreshes.WithLabelValues("ok").Inc()
	s.Log.Info().Msg("scheduled token refresh ok")
}

func (s *Scheduler) book(ctx context.Context) {
	s.Log.Info().Msg("scheduled booking run starting")

	bctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	res, err := s.Orch.Run(bctx, booking.RunRequest{})
	if err != nil {
		// No retry with backoff; the next scheduled trigger is the retry.
		s.Log.Error().Err(err).Msg("scheduled booking run failed")
		return
	}
	s.Log.Info().Str("venue", res.Venue).Str("booking_id", res.BookingID).Msg("scheduled booking run succeeded")
}
