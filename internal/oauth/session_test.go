package oauth

import (
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestSessions() *SessionStore {
	return NewSessionStore("client-id", "com.example.app://authcallback", "https://identity.example.com", zerolog.Nop())
}

func authParams(t *testing.T, authorizeURL string) url.Values {
	t.Helper()
	u, err := url.Parse(authorizeURL)
	if err != nil {
		t.Fatalf("bad authorize URL %q: %v", authorizeURL, err)
	}
	return u.Query()
}

func TestStartBuildsAuthorizeURL(t *testing.T) {
	ss := newTestSessions()
	sid, authURL, err := ss.Start()
	if err != nil {
		t.Fatal(err)
	}
	if sid == "" {
		t.Fatal("empty session id")
	}

	q := authParams(t, authURL)
	if got := q.Get("code_challenge_method"); got != "S256" {
		t.Fatalf("code_challenge_method = %q, want S256", got)
	}
	if q.Get("client_id") != "client-id" || q.Get("scope") != "all" || q.Get("response_type") != "code" {
		t.Fatalf("unexpected query: %v", q)
	}
	if q.Get("state") == "" || q.Get("code_challenge") == "" {
		t.Fatalf("missing state or code_challenge: %v", q)
	}
}

func TestCompleteRoundTrip(t *testing.T) {
	ss := newTestSessions()
	sid, authURL, err := ss.Start()
	if err != nil {
		t.Fatal(err)
	}
	state := authParams(t, authURL).Get("state")

	redirect := "com.example.app://authcallback?code=ABC&state=" + state
	code, verifier, err := ss.Complete(sid, redirect)
	if err != nil {
		t.Fatal(err)
	}
	if code != "ABC" {
		t.Fatalf("code = %q, want ABC", code)
	}
	if Challenge(verifier) != authParams(t, authURL).Get("code_challenge") {
		t.Fatal("returned verifier does not match the advertised challenge")
	}
}

func TestCompleteSingleUse(t *testing.T) {
	ss := newTestSessions()
	sid, authURL, _ := ss.Start()
	state := authParams(t, authURL).Get("state")
	redirect := "com.example.app://authcallback?code=ABC&state=" + state

	if _, _, err := ss.Complete(sid, redirect); err != nil {
		t.Fatal(err)
	}
	if _, _, err := ss.Complete(sid, redirect); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("second complete: err = %v, want ErrInvalidSession", err)
	}
}

func TestCompleteStateMismatch(t *testing.T) {
	ss := newTestSessions()
	sid, _, _ := ss.Start()

	_, _, err := ss.Complete(sid, "com.example.app://authcallback?code=ABC&state=forged")
	if !errors.Is(err, ErrStateMismatch) {
		t.Fatalf("err = %v, want ErrStateMismatch", err)
	}
}

func TestCompleteMissingCode(t *testing.T) {
	ss := newTestSessions()
	sid, authURL, _ := ss.Start()
	state := authParams(t, authURL).Get("state")

	_, _, err := ss.Complete(sid, "com.example.app://authcallback?state="+state)
	if !errors.Is(err, ErrMissingCode) {
		t.Fatalf("err = %v, want ErrMissingCode", err)
	}
}

func TestCompleteUnknownSession(t *testing.T) {
	ss := newTestSessions()
	_, _, err := ss.Complete("nope", "com.example.app://authcallback?code=ABC&state=x")
	if !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("err = %v, want ErrInvalidSession", err)
	}
}

func TestSweepExpiry(t *testing.T) {
	ss := newTestSessions()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ss.now = func() time.Time { return base }

	if _, _, err := ss.Start(); err != nil {
		t.Fatal(err)
	}

	ss.now = func() time.Time { return base.Add(599 * time.Second) }
	ss.Sweep()
	if ss.Len() != 1 {
		t.Fatal("session swept before 600s")
	}

	ss.now = func() time.Time { return base.Add(601 * time.Second) }
	ss.Sweep()
	if ss.Len() != 0 {
		t.Fatal("session survived past 600s")
	}
}

func TestCompleteRejectsAgedSessionWithoutSweep(t *testing.T) {
	ss := newTestSessions()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ss.now = func() time.Time { return base }

	sid, authURL, _ := ss.Start()
	state := authParams(t, authURL).Get("state")

	ss.now = func() time.Time { return base.Add(601 * time.Second) }
	_, _, err := ss.Complete(sid, "com.example.app://authcallback?code=ABC&state="+state)
	if !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("err = %v, want ErrInvalidSession for aged session", err)
	}
}
