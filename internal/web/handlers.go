package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/example/poolside-scheduler/internal/booking"
	"github.com/example/poolside-scheduler/internal/oauth"
	"github.com/example/poolside-scheduler/internal/soho"
	"github.com/example/poolside-scheduler/internal/store"
	"github.com/example/poolside-scheduler/pkg/httpext"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

func (s *Server) handleStartAuth(w http.ResponseWriter, r *http.Request) {
	sessionID, authURL, err := s.Sessions.Start()
	if err != nil {
		httpext.JSONError(w, http.StatusInternalServerError, "failed to start session")
		return
	}
	httpext.WriteJSON(w, http.StatusOK, map[string]any{
		"message":           "Open the authorization URL and log in",
		"session_id":        sessionID,
		"authorization_url": authURL,
		"instructions": []string{
			"1. Complete the login in your browser (including reCAPTCHA)",
			"2. After login, you'll be redirected to a URL starting with the app scheme",
			"3. Copy the ENTIRE redirect URL",
			"4. Call POST /complete-auth with session_id and redirect_url",
		},
	})
}

func (s *Server) handleCompleteAuth(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID   string `json:"session_id"`
		RedirectURL string `json:"redirect_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" || req.RedirectURL == "" {
		httpext.JSONError(w, http.StatusBadRequest, "Missing session_id or redirect_url")
		return
	}

	code, verifier, err := s.Sessions.Complete(req.SessionID, req.RedirectURL)
	if err != nil {
		httpext.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	cred, saved, err := s.Tokens.ExchangeCode(r.Context(), code, verifier)
	if err != nil {
		var te *oauth.TokenExchangeError
		if errors.As(err, &te) {
			httpext.UpstreamError(w, http.StatusBadGateway, "Failed to exchange code for token", te.Status, te.Body)
			return
		}
		httpext.JSONError(w, http.StatusBadGateway, err.Error())
		return
	}

	httpext.WriteJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"access_token": cred.AccessToken,
		"token_type":   cred.TokenType,
		"expires_in":   cred.ExpiresIn,
		"created_at":   cred.CreatedAt,
		"tokens_saved": saved,
	})
}

func (s *Server) handleSaveTokens(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AccessToken == "" || req.RefreshToken == "" {
		httpext.JSONError(w, http.StatusBadRequest, "Missing tokens")
		return
	}

	cred := store.Credential{
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		CreatedAt:    time.Now().Unix(),
		ExpiresIn:    7200,
		TokenType:    "Bearer",
	}
	if !s.Store.SaveCredential(cred) {
		httpext.JSONError(w, http.StatusInternalServerError, "Failed to save tokens")
		return
	}
	httpext.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Tokens saved successfully",
	})
}

func (s *Server) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	cred, saved, err := s.Tokens.Refresh(r.Context())
	if err != nil {
		if errors.Is(err, oauth.ErrUnauthenticated) {
			httpext.JSONError(w, http.StatusNotFound, "No stored tokens found")
			return
		}
		var te *oauth.TokenExchangeError
		if errors.As(err, &te) {
			httpext.UpstreamError(w, http.StatusBadGateway, "Failed to refresh token", te.Status, te.Body)
			return
		}
		httpext.JSONError(w, http.StatusBadGateway, err.Error())
		return
	}
	if !saved {
		// The fresh credential is still usable even though it could not be
		// persisted; surface both facts.
		httpext.WriteJSON(w, http.StatusInternalServerError, map[string]any{
			"error":        "Failed to save refreshed tokens",
			"access_token": cred.AccessToken,
		})
		return
	}
	httpext.WriteJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"access_token": cred.AccessToken,
		"expires_in":   cred.ExpiresIn,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	cred, ok := s.Store.LoadCredential()
	if !ok {
		httpext.WriteJSON(w, http.StatusOK, map[string]any{
			"token_valid": false,
			"error":       "No tokens found",
		})
		return
	}
	ttl := cred.TTL(time.Now())
	if ttl <= 0 {
		httpext.WriteJSON(w, http.StatusOK, map[string]any{
			"token_valid": false,
			"error":       "Token expired",
		})
		return
	}
	httpext.WriteJSON(w, http.StatusOK, map[string]any{
		"token_valid": true,
		"expires_in":  ttl,
		"created_at":  cred.CreatedAt,
	})
}

func (s *Server) handleAutoBook(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Venues           []string `json:"venues"`
		DateTime         string   `json:"date_time"`
		PartySize        int      `json:"party_size"`
		PhoneNumber      string   `json:"phone_number"`
		PhoneCountryCode string   `json:"phone_country_code"`
	}
	if r.Body != nil {
		// Body is optional on GET triggers; a malformed one falls back to
		// defaults rather than failing the scheduled run.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	res, err := s.Orch.Run(r.Context(), booking.RunRequest{
		Venues:    req.Venues,
		DateTime:  req.DateTime,
		PartySize: req.PartySize,
		Phone:     soho.Phone{CountryCode: req.PhoneCountryCode, Number: req.PhoneNumber},
	})
	if err != nil {
		switch {
		case errors.Is(err, oauth.ErrUnauthenticated):
			httpext.JSONError(w, http.StatusNotFound, "No stored tokens. Please authenticate first.")
		case errors.Is(err, oauth.ErrReauthRequired):
			httpext.JSONError(w, http.StatusUnauthorized, "Token expired and refresh failed. Please re-authenticate.")
		default:
			var exhausted *booking.AllVenuesFailedError
			if errors.As(err, &exhausted) {
				httpext.WriteJSON(w, http.StatusBadRequest, map[string]any{
					"error":        "Failed to book at any venue",
					"venues_tried": exhausted.VenuesTried,
					"date_time":    exhausted.DateTime,
				})
				return
			}
			httpext.JSONError(w, http.StatusBadGateway, err.Error())
		}
		return
	}

	httpext.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"booking": res,
	})
}

func (s *Server) handleBookPoolside(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	var req struct {
		VenueID          string `json:"venue_id"`
		PartySize        int    `json:"party_size"`
		PhoneCountryCode string `json:"phone_country_code"`
		PhoneNumber      string `json:"phone_number"`
		DateTime         string `json:"date_time"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	if req.VenueID == "" {
		req.VenueID = "NY_POOLSIDE"
	}
	if req.PartySize == 0 {
		req.PartySize = s.Cfg.DefaultPartySize
	}
	if req.PhoneCountryCode == "" {
		req.PhoneCountryCode = s.Cfg.DefaultPhoneCountry
	}
	if req.PhoneNumber == "" {
		req.PhoneNumber = s.Cfg.DefaultPhoneNumber
	}
	if req.DateTime == "" {
		// Two days out at 1:30 PM, the slot the bot was built to chase.
		req.DateTime = booking.DefaultDateTime(time.Now(), 13, 30)
	}

	res, err := s.Orch.Seq.Book(r.Context(), token, req.VenueID, booking.Params{
		PartySize: req.PartySize,
		DateTime:  req.DateTime,
		Phone:     soho.Phone{CountryCode: req.PhoneCountryCode, Number: req.PhoneNumber},
	})
	if err != nil {
		var step *booking.StepError
		switch {
		case errors.As(err, &step) && step.Step == booking.StepLock:
			httpext.UpstreamError(w, http.StatusInternalServerError, "Failed to lock table", step.Status, step.Body)
		case errors.As(err, &step):
			httpext.UpstreamError(w, http.StatusInternalServerError, "Failed to create booking", step.Status, step.Body)
		case errors.Is(err, soho.ErrMalformedLockResponse):
			httpext.JSONError(w, http.StatusBadGateway, err.Error())
		default:
			httpext.JSONError(w, http.StatusBadGateway, err.Error())
		}
		return
	}

	httpext.WriteJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"booking_id": res.BookingID,
		"booking_details": map[string]any{
			"venue":           res.Venue,
			"date_time":       res.DateTime,
			"party_size":      req.PartySize,
			"status":          res.State,
			"lock_expires_at": res.LockExpiresAt,
		},
	})
}

func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	venueID := r.URL.Query().Get("venue_id")
	if venueID == "" {
		venueID = "NY_POOLSIDE"
	}
	dateTime := r.URL.Query().Get("date_time")
	if dateTime == "" {
		dateTime = booking.DefaultDateTime(time.Now(), 13, 30)
	}
	partySize := s.Cfg.DefaultPartySize
	if v := r.URL.Query().Get("party_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			partySize = n
		}
	}

	resources, err := s.Soho.Availability(r.Context(), token, venueID, dateTime, partySize)
	if err != nil {
		var apiErr *soho.APIError
		if errors.As(err, &apiErr) {
			httpext.UpstreamError(w, apiErr.Status, "Failed to check availability", apiErr.Status, apiErr.Body)
			return
		}
		httpext.JSONError(w, http.StatusBadGateway, err.Error())
		return
	}

	// The upstream answers with restaurant options when the exact search had
	// no slots; shape the two cases differently, as the original did.
	if len(resources) > 0 && (resources[0].Type == "restaurants" || resources[0].Attributes.StartDateTime == "") {
		venuesOut := make([]map[string]string, 0, len(resources))
		for _, item := range resources {
			name := item.Attributes.Name
			if name == "" {
				name = item.ID
			}
			venuesOut = append(venuesOut, map[string]string{
				"restaurant_id": item.ID,
				"name":          name,
			})
		}
		httpext.WriteJSON(w, http.StatusOK, map[string]any{
			"type":                  "restaurant_options",
			"message":               "These are available restaurants. Use one of these restaurant_ids to get actual time slots.",
			"available_restaurants": venuesOut,
			"search_params": map[string]any{
				"date":       dateTime,
				"party_size": partySize,
			},
		})
		return
	}

	slots := make([]map[string]any, 0, len(resources))
	for _, slot := range resources {
		t := slot.Attributes.StartDateTime
		if t == "" {
			t = slot.Attributes.DateTime
		}
		slots = append(slots, map[string]any{
			"id":         slot.ID,
			"time":       t,
			"duration":   slot.Attributes.Duration,
			"table_type": slot.Attributes.TableType,
			"area":       slot.Attributes.Area,
		})
	}
	httpext.WriteJSON(w, http.StatusOK, map[string]any{
		"type":            "time_slots",
		"venue":           venueID,
		"date":            dateTime,
		"party_size":      partySize,
		"available_slots": slots,
		"total_available": len(slots),
	})
}

func (s *Server) handlePoolsideSlots(w http.ResponseWriter, r *http.Request) {
	venueID := r.URL.Query().Get("venue_id")
	if venueID == "" {
		venueID = "NY_POOLSIDE"
	}
	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().AddDate(0, 0, 2).Format("2006-01-02")
	}

	// 15-minute grid from 8am through 8pm; sessions are 3-hour holds.
	var slots []string
	for h := 8; h <= 20; h++ {
		for m := 0; m < 60; m += 15 {
			if h == 20 && m > 0 {
				break
			}
			slots = append(slots, fmt.Sprintf("%sT%02d:%02d", date, h, m))
		}
	}

	httpext.WriteJSON(w, http.StatusOK, map[string]any{
		"venue":           venueID,
		"date":            date,
		"available_slots": slots,
		"note":            "Poolside bookings are 3-hour slots. Choose any start time from 8am to 8pm.",
	})
}

func (s *Server) handleTestToken(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	acct, err := s.Soho.AccountInfo(r.Context(), token)
	if err != nil {
		var apiErr *soho.APIError
		if errors.As(err, &apiErr) {
			httpext.WriteJSON(w, http.StatusOK, map[string]any{
				"success": false,
				"status":  apiErr.Status,
				"error":   apiErr.Body,
			})
			return
		}
		httpext.JSONError(w, http.StatusBadGateway, err.Error())
		return
	}

	httpext.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user_info": map[string]any{
			"id":                acct.ID,
			"name":              acct.Name,
			"email":             acct.Email,
			"membership_type":   acct.MembershipType,
			"membership_status": acct.MembershipStatus,
		},
	})
}

func (s *Server) handlePoolVenues(w http.ResponseWriter, r *http.Request) {
	httpext.WriteJSON(w, http.StatusOK, booking.Venues())
}

func (s *Server) handleLastBookingStatus(w http.ResponseWriter, r *http.Request) {
	outcome, ok := s.Store.LoadOutcome()
	if !ok {
		httpext.WriteJSON(w, http.StatusOK, map[string]any{
			"status":       "No bookings yet",
			"time":         "N/A",
			"venue":        "N/A",
			"booking_time": "N/A",
		})
		return
	}
	httpext.WriteJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleScheduleInfo(w http.ResponseWriter, r *http.Request) {
	zerolog.Ctx(r.Context()).Debug().Msg("schedule info requested")
	httpext.WriteJSON(w, http.StatusOK, map[string]any{
		"info": "Poolside booking automation",
		"rules": map[string]string{
			"booking_window":   "48 hours in advance",
			"slots_open":       s.Cfg.BookAtLocal + " " + s.Cfg.Timezone + " daily",
			"session_duration": "3 hours",
			"available_times":  "8:00 AM - 8:00 PM",
		},
		"endpoints": map[string]string{
			"/start-auth":    "Begin the manual PKCE login flow",
			"/complete-auth": "Finish the login with the redirect URL",
			"/refresh-token": "Refresh the stored access token",
			"/auto-book":     "Run the venue fallback booking sequence",
		},
	})
}
