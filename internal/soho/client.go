// Package soho is a minimal client for the Soho House digital API, based on
// the request flow captured from the mobile app: a table is first locked,
// then a booking is created referencing the lock.
package soho

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// The API rejects clients that do not present the app's User-Agent.
const userAgent = "DigitalHouse/8.129 (com.sohohouse.houseseven; build:17190; iOS 18.5.0)"

// ErrMalformedLockResponse means a 2xx lock response was missing the lock id
// or token, so no booking can reference it.
var ErrMalformedLockResponse = errors.New("lock response missing id or token")

// APIError carries the upstream status and body verbatim for diagnosis.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upstream status=%d: %s", e.Status, e.Body)
}

type Client struct {
	hc      *http.Client
	baseURL string
	log     zerolog.Logger
}

func New(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		hc:      &http.Client{Timeout: 30 * time.Second},
		baseURL: baseURL,
		log:     log,
	}
}

// Lock is a short-lived hold on a table slot. ExpiresAt is when the upstream
// releases it; there is no explicit unlock call.
type Lock struct {
	ID        string
	Token     string
	ExpiresAt string
}

type Phone struct {
	CountryCode string `json:"country_code"`
	Number      string `json:"number"`
}

type BookingRequest struct {
	VenueID   string
	LockID    string
	PartySize int
	DateTime  string
	Phone     Phone
}

type Booking struct {
	ID    string
	State string
}

// JSON:API plumbing shared by the tables endpoints.

type resourceID struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type relationship struct {
	Data resourceID `json:"data"`
}

// LockTable places a hold on a slot at venueID. Non-2xx is an *APIError; a
// 2xx body without both id and token is ErrMalformedLockResponse.
func (c *Client) LockTable(ctx context.Context, token, venueID string, partySize int, dateTime string) (Lock, error) {
	body := map[string]any{
		"data": map[string]any{
			"type": "table_locks",
			"attributes": map[string]any{
				"party_size":      partySize,
				"extra_attribute": "default",
				"date_time":       dateTime,
			},
			"relationships": map[string]any{
				"restaurant": relationship{Data: resourceID{Type: "restaurants", ID: venueID}},
			},
		},
	}

	status, respBody, err := c.do(ctx, http.MethodPost, c.baseURL+"/tables/locks?include=venue,restaurant", token, body)
	if err != nil {
		return Lock{}, err
	}
	if status < 200 || status > 299 {
		return Lock{}, &APIError{Status: status, Body: string(respBody)}
	}

	var res struct {
		Data struct {
			ID         string `json:"id"`
			Attributes struct {
				Token     string `json:"token"`
				ExpiresAt string `json:"expires_at"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &res); err != nil {
		return Lock{}, ErrMalformedLockResponse
	}
	if res.Data.ID == "" || res.Data.Attributes.Token == "" {
		return Lock{}, ErrMalformedLockResponse
	}
	return Lock{ID: res.Data.ID, Token: res.Data.Attributes.Token, ExpiresAt: res.Data.Attributes.ExpiresAt}, nil
}

// CreateBooking commits a booking referencing a previously acquired lock.
func (c *Client) CreateBooking(ctx context.Context, token string, req BookingRequest) (Booking, error) {
	body := map[string]any{
		"data": map[string]any{
			"type": "table_bookings",
			"attributes": map[string]any{
				"date_time":     req.DateTime,
				"party_size":    req.PartySize,
				"phone":         req.Phone,
				"guest_notes":   "",
				"terms_consent": true,
				"guest_consent": true,
			},
			"relationships": map[string]any{
				"restaurant": relationship{Data: resourceID{Type: "restaurants", ID: req.VenueID}},
				"table_lock": relationship{Data: resourceID{Type: "table_locks", ID: req.LockID}},
			},
		},
	}

	status, respBody, err := c.do(ctx, http.MethodPost, c.baseURL+"/tables/table_bookings?include=venue,restaurant", token, body)
	if err != nil {
		return Booking{}, err
	}
	if status < 200 || status > 299 {
		return Booking{}, &APIError{Status: status, Body: string(respBody)}
	}

	var res struct {
		Data struct {
			ID         string `json:"id"`
			Attributes struct {
				State string `json:"state"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &res); err != nil {
		return Booking{}, fmt.Errorf("booking response: %w", err)
	}
	return Booking{ID: res.Data.ID, State: res.Data.Attributes.State}, nil
}

// AvailabilityResource is one entry of an availability query. Depending on
// the search, the upstream returns either time slots or restaurant options.
type AvailabilityResource struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Attributes struct {
		Name          string `json:"name"`
		StartDateTime string `json:"start_date_time"`
		DateTime      string `json:"date_time"`
		Duration      int    `json:"duration"`
		TableType     string `json:"table_type"`
		Area          string `json:"area"`
	} `json:"attributes"`
}

func (c *Client) Availability(ctx context.Context, token, venueID, dateTime string, partySize int) ([]AvailabilityResource, error) {
	q := url.Values{}
	q.Set("filter[restaurant_id]", venueID)
	q.Set("filter[start_date_time]", dateTime)
	q.Set("filter[party_size]", strconv.Itoa(partySize))
	q.Set("filter[search_alternatives]", "true")
	q.Set("include", "venue,restaurant")

	status, respBody, err := c.do(ctx, http.MethodGet, c.baseURL+"/tables/availabilities?"+q.Encode(), token, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &APIError{Status: status, Body: string(respBody)}
	}

	var res struct {
		Data []AvailabilityResource `json:"data"`
	}
	if err := json.Unmarshal(respBody, &res); err != nil {
		return nil, fmt.Errorf("availability response: %w", err)
	}
	return res.Data, nil
}

type Account struct {
	ID               string
	Name             string
	Email            string
	MembershipType   string
	MembershipStatus string
}

// AccountInfo fetches the member profile; used to verify a bearer token works.
func (c *Client) AccountInfo(ctx context.Context, token string) (Account, error) {
	u := c.baseURL + "/profiles/accounts/me" +
		"?include=profile,membership,features,favorite_venues,favorite_content_categories," +
		"profile.mutual_connection_requests,profile.mutual_connections,local_house,latest_attendance" +
		"&updated_after=0001-01-01T00:00:00Z"

	status, respBody, err := c.do(ctx, http.MethodGet, u, token, nil)
	if err != nil {
		return Account{}, err
	}
	if status != http.StatusOK {
		return Account{}, &APIError{Status: status, Body: string(respBody)}
	}

	var res struct {
		Data struct {
			ID         string `json:"id"`
			Attributes struct {
				Email   string `json:"email"`
				Profile struct {
					FirstName string `json:"first_name"`
					LastName  string `json:"last_name"`
				} `json:"profile"`
				Membership struct {
					Name   string `json:"name"`
					Status string `json:"status"`
				} `json:"membership"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &res); err != nil {
		return Account{}, fmt.Errorf("account response: %w", err)
	}
	a := res.Data.Attributes
	return Account{
		ID:               res.Data.ID,
		Name:             a.Profile.FirstName + " " + a.Profile.LastName,
		Email:            a.Email,
		MembershipType:   a.Membership.Name,
		MembershipStatus: a.Membership.Status,
	}, nil
}

func (c *Client) do(ctx context.Context, method, rawURL, token string, body any) (int, []byte, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, rd)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", method, rawURL, err)
	}
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return res.StatusCode, nil, err
	}
	return res.StatusCode, b, nil
}
