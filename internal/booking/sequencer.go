// Package booking drives the two-phase lock-then-commit booking flow against
// the upstream tables API and the fallback loop across candidate venues.
package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/poolside-scheduler/internal/soho"
	"github.com/rs/zerolog"
)

type Step string

const (
	StepLock Step = "lock"
	StepBook Step = "book"
)

// StepError is a terminal per-venue failure, carrying which phase broke and
// the upstream status/body verbatim.
type StepError struct {
	Step   Step
	Status int
	Body   string
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s failed (status=%d): %s", e.Step, e.Status, e.Body)
}

// TableAPI is the slice of the upstream client the sequencer needs.
type TableAPI interface {
	LockTable(ctx context.Context, token, venueID string, partySize int, dateTime string) (soho.Lock, error)
	CreateBooking(ctx context.Context, token string, req soho.BookingRequest) (soho.Booking, error)
}

type Params struct {
	PartySize int
	DateTime  string
	Phone     soho.Phone
}

type Result struct {
	Venue         string `json:"venue"`
	BookingID     string `json:"booking_id"`
	State         string `json:"state"`
	DateTime      string `json:"date_time"`
	LockExpiresAt string `json:"lock_expires_at"`
}

// Sequencer performs one venue attempt: acquire a table lock, then commit a
// booking referencing it. A failure after a successful lock takes no
// compensating action; the lock ages out upstream at its expires_at.
type Sequencer struct {
	API TableAPI
	Log zerolog.Logger
}

func (s *Sequencer) Book(ctx context.Context, token, venueID string, p Params) (Result, error) {
	s.Log.Info().Str("venue", venueID).Str("date_time", p.DateTime).Int("party_size", p.PartySize).Msg("locking table")

	lock, err := s.API.LockTable(ctx, token, venueID, p.PartySize, p.DateTime)
	if err != nil {
		var apiErr *soho.APIError
		if errors.As(err, &apiErr) {
			return Result{}, &StepError{Step: StepLock, Status: apiErr.Status, Body: apiErr.Body}
		}
		return Result{}, err
	}

	s.Log.Info().Str("venue", venueID).Str("lock_id", lock.ID).Msg("lock acquired, creating booking")

	b, err := s.API.CreateBooking(ctx, token, soho.BookingRequest{
		VenueID:   venueID,
		LockID:    lock.ID,
		PartySize: p.PartySize,
		DateTime:  p.DateTime,
		Phone:     p.Phone,
	})
	if err != nil {
		var apiErr *soho.APIError
		if errors.As(err, &apiErr) {
			return Result{}, &StepError{Step: StepBook, Status: apiErr.Status, Body: apiErr.Body}
		}
		return Result{}, err
	}

	return Result{
		Venue:         venueID,
		BookingID:     b.ID,
		State:         b.State,
		DateTime:      p.DateTime,
		LockExpiresAt: lock.ExpiresAt,
	}, nil
}
