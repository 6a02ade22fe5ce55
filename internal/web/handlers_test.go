package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/example/poolside-scheduler/internal/booking"
	"github.com/example/poolside-scheduler/internal/config"
	"github.com/example/poolside-scheduler/internal/metrics"
	"github.com/example/poolside-scheduler/internal/oauth"
	"github.com/example/poolside-scheduler/internal/soho"
	"github.com/example/poolside-scheduler/internal/store"
	"github.com/rs/zerolog"
)

var testMetrics = metrics.NewMetrics("webtest")

// newTestServer wires a full server against fake identity and booking
// upstreams.
func newTestServer(t *testing.T, identity, api http.HandlerFunc) (*Server, *store.Store) {
	t.Helper()

	if identity == nil {
		identity = func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unexpected identity call", http.StatusInternalServerError)
		}
	}
	if api == nil {
		api = func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unexpected api call", http.StatusInternalServerError)
		}
	}
	idSrv := httptest.NewServer(identity)
	t.Cleanup(idSrv.Close)
	apiSrv := httptest.NewServer(api)
	t.Cleanup(apiSrv.Close)

	log := zerolog.Nop()
	st := store.New(t.TempDir(), log)
	tokens := oauth.NewTokenClient(idSrv.URL, "client-id", "com.example.app://authcallback", st, log)
	sohoClient := soho.New(apiSrv.URL, log)

	srv := &Server{
		Sessions: oauth.NewSessionStore("client-id", "com.example.app://authcallback", idSrv.URL, log),
		Tokens:   tokens,
		Soho:     sohoClient,
		Orch: &booking.Orchestrator{
			Tokens:  tokens,
			Seq:     &booking.Sequencer{API: sohoClient, Log: log},
			Store:   st,
			Metrics: testMetrics,
			Defaults: booking.Defaults{
				Venues:        []string{"DUMBO_DECK", "NY_POOLSIDE"},
				PartySize:     2,
				Phone:         soho.Phone{CountryCode: "US", Number: "5551234567"},
				BookingHour:   18,
				BookingMinute: 0,
			},
			Log: log,
		},
		Store: st,
		Cfg: config.Config{
			DefaultPartySize:    2,
			DefaultPhoneCountry: "US",
			DefaultPhoneNumber:  "5551234567",
			BookAtLocal:         "12:00",
			Timezone:            "America/New_York",
		},
		Log: log,
	}
	return srv, st
}

func doJSON(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("")
	} else {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not JSON: %v\n%s", err, rec.Body.String())
	}
	return rec, out
}

func TestStartAuth(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)
	rec, out := doJSON(t, srv.Routes(), http.MethodGet, "/start-auth", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if sid, _ := out["session_id"].(string); sid == "" {
		t.Fatal("no session_id")
	}
	authURL, _ := out["authorization_url"].(string)
	if !strings.Contains(authURL, "code_challenge_method=S256") {
		t.Fatalf("authorization_url missing S256: %s", authURL)
	}
}

func TestCompleteAuthEndToEnd(t *testing.T) {
	srv, st := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/token" {
			t.Errorf("identity path = %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "at-1",
			"refresh_token": "rt-1",
			"expires_in":    7200,
			"token_type":    "Bearer",
		})
	}, nil)
	h := srv.Routes()

	_, out := doJSON(t, h, http.MethodGet, "/start-auth", "")
	sid := out["session_id"].(string)
	authURL, _ := url.Parse(out["authorization_url"].(string))
	state := authURL.Query().Get("state")

	redirect := "com.example.app://authcallback?code=ABC&state=" + state
	rec, out := doJSON(t, h, http.MethodPost, "/complete-auth",
		`{"session_id":"`+sid+`","redirect_url":"`+redirect+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %v", rec.Code, out)
	}
	if out["tokens_saved"] != true {
		t.Fatalf("tokens_saved = %v", out["tokens_saved"])
	}

	cred, ok := st.LoadCredential()
	if !ok || cred.AccessToken != "at-1" {
		t.Fatalf("stored credential = %+v ok=%v", cred, ok)
	}
}

func TestCompleteAuthStateMismatch(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("exchange must not run on state mismatch")
	}, nil)
	h := srv.Routes()

	_, out := doJSON(t, h, http.MethodGet, "/start-auth", "")
	sid := out["session_id"].(string)

	rec, _ := doJSON(t, h, http.MethodPost, "/complete-auth",
		`{"session_id":"`+sid+`","redirect_url":"com.example.app://authcallback?code=ABC&state=forged"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCompleteAuthUnknownSession(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)
	rec, _ := doJSON(t, srv.Routes(), http.MethodPost, "/complete-auth",
		`{"session_id":"nope","redirect_url":"com.example.app://authcallback?code=ABC&state=x"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCompleteAuthExchangeFailureSurfacesUpstream(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}, nil)
	h := srv.Routes()

	_, out := doJSON(t, h, http.MethodGet, "/start-auth", "")
	sid := out["session_id"].(string)
	authURL, _ := url.Parse(out["authorization_url"].(string))
	state := authURL.Query().Get("state")

	rec, out := doJSON(t, h, http.MethodPost, "/complete-auth",
		`{"session_id":"`+sid+`","redirect_url":"com.example.app://authcallback?code=ABC&state=`+state+`"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	if out["status"] != float64(http.StatusBadRequest) {
		t.Fatalf("upstream status not surfaced: %v", out)
	}
}

func TestStatusWithoutTokens(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)
	rec, out := doJSON(t, srv.Routes(), http.MethodGet, "/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if out["token_valid"] != false {
		t.Fatalf("token_valid = %v", out["token_valid"])
	}
}

func TestAutoBookUnauthenticated(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)
	rec, _ := doJSON(t, srv.Routes(), http.MethodPost, "/auto-book", `{"venues":["A"]}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestAutoBookExhaustionListsVenues(t *testing.T) {
	srv, st := newTestServer(t, nil, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":[{"title":"full"}]}`, http.StatusUnprocessableEntity)
	})
	st.SaveCredential(freshCredential())

	rec, out := doJSON(t, srv.Routes(), http.MethodPost, "/auto-book",
		`{"venues":["A","B"],"date_time":"2025-06-04T13:30"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	tried, _ := out["venues_tried"].([]any)
	if len(tried) != 2 || tried[0] != "A" || tried[1] != "B" {
		t.Fatalf("venues_tried = %v", out["venues_tried"])
	}
}

func TestBookPoolside(t *testing.T) {
	srv, _ := newTestServer(t, nil, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tables/locks":
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"data":{"id":"lock-1","attributes":{"token":"lt","expires_at":"2025-06-04T13:45:00Z"}}}`))
		case "/tables/table_bookings":
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"data":{"id":"bk-1","attributes":{"state":"confirmed"}}}`))
		default:
			t.Errorf("unexpected api path %s", r.URL.Path)
		}
	})

	rec, out := doJSON(t, srv.Routes(), http.MethodPost, "/book-poolside/some-token",
		`{"venue_id":"NY_POOLSIDE","party_size":2,"date_time":"2025-06-04T13:30"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %v", rec.Code, out)
	}
	if out["booking_id"] != "bk-1" {
		t.Fatalf("booking_id = %v", out["booking_id"])
	}
}

func TestLastBookingStatusPlaceholder(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)
	rec, out := doJSON(t, srv.Routes(), http.MethodGet, "/last-booking-status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if out["status"] != "No bookings yet" {
		t.Fatalf("placeholder = %v", out)
	}
}

func TestPoolVenues(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)
	rec, out := doJSON(t, srv.Routes(), http.MethodGet, "/pool-venues", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	ny, _ := out["new_york"].(map[string]any)
	if ny["poolside_restaurant"] != "NY_POOLSIDE" {
		t.Fatalf("directory = %v", out)
	}
}

func freshCredential() store.Credential {
	return store.Credential{
		AccessToken:  "at",
		RefreshToken: "rt",
		CreatedAt:    time.Now().Unix(),
		ExpiresIn:    7200,
		TokenType:    "Bearer",
	}
}
