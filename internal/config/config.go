package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ListenAddr string
	BaseURL    string
	DataDir    string

	// OAuth / identity provider
	ClientID        string
	RedirectURI     string
	IdentityBaseURL string

	// Upstream booking API
	APIBaseURL string

	// Booking defaults
	DefaultVenues       []string
	DefaultPartySize    int
	DefaultPhoneNumber  string
	DefaultPhoneCountry string
	// Wall-clock hour/minute used when a caller omits date_time; combined with
	// "two days from now" per the upstream 48-hour booking window.
	BookingHour   int
	BookingMinute int

	// Scheduler
	RefreshInterval time.Duration
	BookAtLocal     string // HH:MM, local to Timezone
	Timezone        string
}

func FromEnv() (Config, error) {
	cfg := Config{
		ListenAddr:          getenv("LISTEN_ADDR", ":8080"),
		BaseURL:             getenv("BASE_URL", "http://localhost:8080"),
		DataDir:             getenv("DATA_DIR", "/data"),
		ClientID:            getenv("OAUTH_CLIENT_ID", "e7f9c1e1584911fcdd1d9ceb9f1ffac8e175e1ba639e5bcbc58ca76b9ea084f2"),
		RedirectURI:         getenv("OAUTH_REDIRECT_URI", "com.sohohouse.houseseven://authcallback"),
		IdentityBaseURL:     getenv("IDENTITY_BASE_URL", "https://identity.sohohouse.com"),
		APIBaseURL:          getenv("API_BASE_URL", "https://api.production.sohohousedigital.com"),
		DefaultVenues:       splitCSV(getenv("DEFAULT_VENUES", "DUMBO_DECK,NY_POOLSIDE")),
		DefaultPhoneNumber:  getenv("DEFAULT_PHONE_NUMBER", "7709255248"),
		DefaultPhoneCountry: getenv("DEFAULT_PHONE_COUNTRY", "US"),
		BookAtLocal:         getenv("BOOK_AT_LOCAL", "12:00"),
		Timezone:            getenv("TIMEZONE", "America/New_York"),
	}

	partySize, err := strconv.Atoi(getenv("DEFAULT_PARTY_SIZE", "2"))
	if err != nil || partySize < 1 {
		return Config{}, fmt.Errorf("invalid DEFAULT_PARTY_SIZE")
	}
	cfg.DefaultPartySize = partySize

	cfg.BookingHour, cfg.BookingMinute, err = parseHHMM(getenv("DEFAULT_BOOKING_TIME", "18:00"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid DEFAULT_BOOKING_TIME (want HH:MM): %w", err)
	}

	refreshMin, err := strconv.Atoi(getenv("REFRESH_INTERVAL_MINUTES", "5"))
	if err != nil || refreshMin < 1 {
		return Config{}, fmt.Errorf("invalid REFRESH_INTERVAL_MINUTES")
	}
	cfg.RefreshInterval = time.Duration(refreshMin) * time.Minute

	if _, _, err := parseHHMM(cfg.BookAtLocal); err != nil {
		return Config{}, fmt.Errorf("invalid BOOK_AT_LOCAL (want HH:MM): %w", err)
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return Config{}, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	if len(cfg.DefaultVenues) == 0 {
		return Config{}, fmt.Errorf("DEFAULT_VENUES must list at least one venue id")
	}

	// Fall back to the working directory when the volume mount is absent.
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		cfg.DataDir = "."
	}

	return cfg, nil
}

func parseHHMM(s string) (int, int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}

func getenv(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
