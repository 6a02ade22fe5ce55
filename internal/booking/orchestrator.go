package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/example/poolside-scheduler/internal/metrics"
	"github.com/example/poolside-scheduler/internal/soho"
	"github.com/example/poolside-scheduler/internal/store"
	"github.com/rs/zerolog"
)

// TokenSource yields an access token that is safe to book with.
type TokenSource interface {
	EnsureFresh(ctx context.Context) (string, error)
}

// AllVenuesFailedError means every candidate venue ended in a lock or booking
// failure.
type AllVenuesFailedError struct {
	VenuesTried []string
	DateTime    string
}

func (e *AllVenuesFailedError) Error() string {
	return fmt.Sprintf("failed to book at any venue (tried %d)", len(e.VenuesTried))
}

type Defaults struct {
	Venues        []string
	PartySize     int
	Phone         soho.Phone
	BookingHour   int
	BookingMinute int
}

type RunRequest struct {
	Venues    []string
	DateTime  string
	PartySize int
	Phone     soho.Phone
}

// Orchestrator tries an ordered list of venues, stopping at the first
// successful booking, and records the final outcome. Strictly sequential; no
// fan-out, no retry beyond "next venue".
type Orchestrator struct {
	Tokens   TokenSource
	Seq      *Sequencer
	Store    *store.Store
	Metrics  *metrics.Metrics
	Defaults Defaults
	Log      zerolog.Logger

	// Now overrides the clock in tests.
	Now func() time.Time
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// DefaultDateTime is two days from now at the given wall-clock time,
// formatted as the upstream expects (no seconds, no zone). The upstream
// releases slots 48 hours ahead.
func DefaultDateTime(now time.Time, hour, minute int) string {
	d := now.AddDate(0, 0, 2)
	return fmt.Sprintf("%sT%02d:%02d", d.Format("2006-01-02"), hour, minute)
}

func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (Result, error) {
	token, err := o.Tokens.EnsureFresh(ctx)
	if err != nil {
		return Result{}, err
	}

	venues := req.Venues
	if len(venues) == 0 {
		venues = o.Defaults.Venues
	}
	partySize := req.PartySize
	if partySize == 0 {
		partySize = o.Defaults.PartySize
	}
	phone := req.Phone
	if phone.Number == "" {
		phone = o.Defaults.Phone
	}
	if phone.CountryCode == "" {
		phone.CountryCode = o.Defaults.Phone.CountryCode
	}
	dateTime := req.DateTime
	if dateTime == "" {
		dateTime = DefaultDateTime(o.now(), o.Defaults.BookingHour, o.Defaults.BookingMinute)
	}

	params := Params{PartySize: partySize, DateTime: dateTime, Phone: phone}

	for _, venueID := range venues {
		o.Metrics.BookingAttempts.Inc()

		res, err := o.Seq.Book(ctx, token, venueID, params)
		if err != nil {
			// Swallowed so the loop can fall back to the next venue; only
			// total exhaustion is surfaced.
			o.Log.Warn().Err(err).Str("venue", venueID).Msg("venue attempt failed, trying next")
			continue
		}

		o.Metrics.BookingSuccesses.Inc()
		o.Log.Info().Str("venue", venueID).Str("booking_id", res.BookingID).Msg("booked")

		o.Store.SaveOutcome(store.Outcome{
			Status:      fmt.Sprintf("Success: Booked %s", venueID),
			Time:        o.now().Format("2006-01-02 03:04 PM"),
			Venue:       venueID,
			BookingTime: dateTime,
		})
		return res, nil
	}

	o.Metrics.BookingFailures.Inc()
	o.Store.SaveOutcome(store.Outcome{
		Status:      "Failed: No venues available",
		Time:        o.now().Format("2006-01-02 03:04 PM"),
		VenuesTried: venues,
	})
	return Result{}, &AllVenuesFailedError{VenuesTried: venues, DateTime: dateTime}
}
