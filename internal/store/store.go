// Package store persists the two singleton JSON records (credential and last
// booking outcome) under the data directory. Writes go through a
// temp-file-then-rename so a concurrent reader never sees a partial file.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

const (
	tokensFile      = "soho_tokens.json"
	lastBookingFile = "last_booking.json"
)

// staleBuffer is how long before the real expiry a credential is already
// treated as stale, so a booking never runs on a token about to expire.
const staleBuffer = 300 * time.Second

type Credential struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	CreatedAt    int64  `json:"created_at"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

func (c Credential) ExpiresAt() time.Time {
	return time.Unix(c.CreatedAt+c.ExpiresIn, 0)
}

// Stale reports whether the credential is inside the refresh buffer (or past
// expiry entirely) at the given instant.
func (c Credential) Stale(now time.Time) bool {
	return now.After(c.ExpiresAt().Add(-staleBuffer))
}

// TTL is the remaining lifetime in seconds; negative once expired.
func (c Credential) TTL(now time.Time) float64 {
	return c.ExpiresAt().Sub(now).Seconds()
}

// Outcome is the singleton record of the most recent orchestration run.
type Outcome struct {
	Status      string   `json:"status"`
	Time        string   `json:"time"`
	Venue       string   `json:"venue,omitempty"`
	BookingTime string   `json:"booking_time,omitempty"`
	VenuesTried []string `json:"venues_tried,omitempty"`
}

type Store struct {
	dir string
	log zerolog.Logger
}

func New(dir string, log zerolog.Logger) *Store {
	return &Store{dir: dir, log: log}
}

// SaveJSON writes v to name under the data directory atomically. It never
// returns an error: any failure is logged and reported as false, since a
// failed persist must not abort the operation that produced the data.
func (s *Store) SaveJSON(name string, v any) bool {
	path := filepath.Join(s.dir, name)
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		s.log.Error().Err(err).Str("file", path).Msg("marshal failed")
		return false
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		s.log.Error().Err(err).Str("file", tmp).Msg("write failed")
		return false
	}
	if err := os.Rename(tmp, path); err != nil {
		s.log.Error().Err(err).Str("file", path).Msg("rename failed")
		_ = os.Remove(tmp)
		return false
	}
	return true
}

// LoadJSON reads name into out. A missing file is not an error; it is the
// "absent" case and the caller treats it as unauthenticated / no record.
func (s *Store) LoadJSON(name string, out any) bool {
	path := filepath.Join(s.dir, name)
	b, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Error().Err(err).Str("file", path).Msg("read failed")
		}
		return false
	}
	if err := json.Unmarshal(b, out); err != nil {
		s.log.Error().Err(err).Str("file", path).Msg("parse failed")
		return false
	}
	return true
}

func (s *Store) SaveCredential(c Credential) bool {
	return s.SaveJSON(tokensFile, c)
}

func (s *Store) LoadCredential() (Credential, bool) {
	var c Credential
	ok := s.LoadJSON(tokensFile, &c)
	return c, ok
}

func (s *Store) SaveOutcome(o Outcome) bool {
	return s.SaveJSON(lastBookingFile, o)
}

func (s *Store) LoadOutcome() (Outcome, bool) {
	var o Outcome
	ok := s.LoadJSON(lastBookingFile, &o)
	return o, ok
}
