package oauth

import (
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// sessionTTL bounds how long a started login may stay unconsumed.
const sessionTTL = 600 * time.Second

type session struct {
	CodeVerifier string
	State        string
	CreatedAt    time.Time
}

// SessionStore tracks in-flight PKCE authorizations, keyed by an opaque
// session id. Sessions live only in memory: an in-flight login does not
// survive a restart. The map is mutex-guarded because the pre-request sweep
// and a completion call can race.
type SessionStore struct {
	clientID        string
	redirectURI     string
	identityBaseURL string

	mu       sync.Mutex
	sessions map[string]session

	now func() time.Time
	log zerolog.Logger
}

func NewSessionStore(clientID, redirectURI, identityBaseURL string, log zerolog.Logger) *SessionStore {
	return &SessionStore{
		clientID:        clientID,
		redirectURI:     redirectURI,
		identityBaseURL: identityBaseURL,
		sessions:        make(map[string]session),
		now:             time.Now,
		log:             log,
	}
}

// Start allocates a new session and returns its id together with the provider
// authorization URL the user must visit.
func (s *SessionStore) Start() (sessionID, authorizeURL string, err error) {
	sessionID, err = randToken(16)
	if err != nil {
		return "", "", err
	}
	state, err := randToken(32)
	if err != nil {
		return "", "", err
	}
	verifier, err := GenerateVerifier()
	if err != nil {
		return "", "", err
	}

	s.mu.Lock()
	s.sessions[sessionID] = session{
		CodeVerifier: verifier,
		State:        state,
		CreatedAt:    s.now(),
	}
	s.mu.Unlock()

	q := url.Values{}
	q.Set("client_id", s.clientID)
	q.Set("redirect_uri", s.redirectURI)
	q.Set("scope", "all")
	q.Set("response_type", "code")
	q.Set("state", state)
	q.Set("code_challenge_method", "S256")
	q.Set("code_challenge", Challenge(verifier))

	return sessionID, s.identityBaseURL + "/authorize?" + q.Encode(), nil
}

// Complete consumes a session (single use) and extracts the authorization
// code from the provider redirect URL. The session age is re-checked here
// rather than trusting the opportunistic sweep, so a stale session can never
// be redeemed just because no other request happened to trigger a cleanup.
func (s *SessionStore) Complete(sessionID, redirectURL string) (code, verifier string, err error) {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if ok {
		delete(s.sessions, sessionID)
	}
	s.mu.Unlock()

	if !ok || s.now().Sub(sess.CreatedAt) > sessionTTL {
		return "", "", ErrInvalidSession
	}

	u, err := url.Parse(redirectURL)
	if err != nil {
		return "", "", ErrMissingCode
	}
	params := u.Query()
	code = params.Get("code")
	if code == "" {
		return "", "", ErrMissingCode
	}
	if params.Get("state") != sess.State {
		s.log.Warn().Str("session_id", sessionID).Msg("oauth state mismatch, possible CSRF")
		return "", "", ErrStateMismatch
	}
	return code, sess.CodeVerifier, nil
}

// Sweep drops every session older than the TTL. Invoked before handling any
// inbound request.
func (s *SessionStore) Sweep() {
	cutoff := s.now().Add(-sessionTTL)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		if sess.CreatedAt.Before(cutoff) {
			delete(s.sessions, id)
		}
	}
}

// Len reports the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
