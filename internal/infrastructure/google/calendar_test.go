package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"DailyBriefing/internal/apperr"
)

var testCreds = Credentials{ClientID: "id", ClientSecret: "secret", RefreshToken: "refresh"}

type fakeGoogle struct {
	tokenCalls  atomic.Int32
	eventsCalls atomic.Int32
	pages       []eventsPage
	eventStatus int
	expiresIn   int
}

func (f *fakeGoogle) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.Form.Get("client_id") != "id" || r.Form.Get("client_secret") != "secret" {
			t.Errorf("client credentials not sent in form: %v", r.Form)
		}
		if r.Form.Get("grant_type") != "refresh_token" || r.Form.Get("refresh_token") != "refresh" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		expiresIn := f.expiresIn
		if expiresIn == 0 {
			expiresIn = 3600
		}
		_, _ = fmt.Fprintf(w, `{"access_token":"access-1","expires_in":%d,"token_type":"Bearer"}`, expiresIn)
	})
	mux.HandleFunc("/calendar/v3/calendars/primary/events", func(w http.ResponseWriter, r *http.Request) {
		call := int(f.eventsCalls.Add(1)) - 1
		if r.Header.Get("Authorization") != "Bearer access-1" {
			t.Errorf("unexpected authorization header: %q", r.Header.Get("Authorization"))
		}
		q := r.URL.Query()
		if q.Get("singleEvents") != "true" || q.Get("orderBy") != "startTime" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		if f.eventStatus != 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(f.eventStatus)
			_, _ = w.Write([]byte(`{"error":{"code":503,"message":"Backend Error"}}`))
			return
		}
		page := eventsPage{}
		if call < len(f.pages) {
			page = f.pages[call]
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(page)
	})
	return mux
}

func newTestCalendar(t *testing.T, f *fakeGoogle, creds Credentials) *Calendar {
	t.Helper()
	server := httptest.NewServer(f.handler(t))
	t.Cleanup(server.Close)
	return NewCalendar(CalendarOptions{
		Credentials: creds,
		TokenURL:    server.URL + "/token",
		APIBaseURL:  server.URL + "/calendar/v3/",
		HTTPClient:  server.Client(),
	})
}

func TestFetchNormalizesClipsAndOrders(t *testing.T) {
	t.Parallel()

	f := &fakeGoogle{pages: []eventsPage{
		{
			Items: []eventItem{
				{ID: "late", Summary: "Dentista", Start: eventTime{DateTime: "2025-11-08T16:00:00-03:00"}, End: eventTime{DateTime: "2025-11-08T17:00:00-03:00"}, Location: "Clínica"},
				{ID: "overnight", Summary: "Plantão", Start: eventTime{DateTime: "2025-11-07T22:00:00-03:00"}, End: eventTime{DateTime: "2025-11-08T06:00:00-03:00"}},
			},
			NextPageToken: "page-2",
		},
		{
			Items: []eventItem{
				{ID: "untitled", Start: eventTime{DateTime: "2025-11-08T09:00:00-03:00"}, End: eventTime{DateTime: "2025-11-08T09:30:00-03:00"}},
				{ID: "gone", Summary: "Cancelado", Status: "cancelled", Start: eventTime{DateTime: "2025-11-08T10:00:00-03:00"}},
			},
		},
	}}
	cal := newTestCalendar(t, f, testCreds)

	timeMin, timeMax := "2025-11-08T00:00:00-03:00", "2025-11-08T23:59:59-03:00"
	events, err := cal.Fetch(context.Background(), timeMin, timeMax)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d: %+v", len(events), events)
	}

	wantOrder := []string{"overnight", "untitled", "late"}
	for i, id := range wantOrder {
		if events[i].ID != id {
			t.Fatalf("event %d: expected %s, got %s", i, id, events[i].ID)
		}
	}

	lo, _ := time.Parse(time.RFC3339, timeMin)
	hi, _ := time.Parse(time.RFC3339, timeMax)
	for _, e := range events {
		if e.Start.Before(lo) || e.End.After(hi) || e.End.Before(e.Start) {
			t.Fatalf("event %s outside window: %s - %s", e.ID, e.Start, e.End)
		}
	}
	if !events[0].Start.Equal(lo) {
		t.Fatalf("overnight event must be clipped to window start, got %s", events[0].Start)
	}
	if events[1].Title != "no title" {
		t.Fatalf("expected placeholder title, got %q", events[1].Title)
	}
	if events[2].Location != "Clínica" {
		t.Fatalf("unexpected location: %q", events[2].Location)
	}
	if f.eventsCalls.Load() != 2 {
		t.Fatalf("expected 2 page requests, got %d", f.eventsCalls.Load())
	}
}

func TestFetchAllDayEventDefaultsEnd(t *testing.T) {
	t.Parallel()

	f := &fakeGoogle{pages: []eventsPage{{Items: []eventItem{
		{ID: "holiday", Summary: "Feriado", Start: eventTime{Date: "2025-11-08"}},
	}}}}
	cal := newTestCalendar(t, f, testCreds)

	events, err := cal.Fetch(context.Background(), "2025-11-08", "2025-11-09")
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(events) != 1 || !events[0].AllDay {
		t.Fatalf("unexpected events: %+v", events)
	}
	if got := events[0].End.Sub(events[0].Start); got != 24*time.Hour {
		t.Fatalf("all-day event must span a day, got %s", got)
	}
}

func TestFetchCachesAccessToken(t *testing.T) {
	t.Parallel()

	f := &fakeGoogle{}
	cal := newTestCalendar(t, f, testCreds)

	for i := 0; i < 2; i++ {
		if _, err := cal.Fetch(context.Background(), "2025-11-08", "2025-11-09"); err != nil {
			t.Fatalf("Fetch error: %v", err)
		}
	}
	if f.tokenCalls.Load() != 1 {
		t.Fatalf("expected one token exchange, got %d", f.tokenCalls.Load())
	}
}

func TestFetchMissingCredentials(t *testing.T) {
	t.Parallel()

	f := &fakeGoogle{}
	cal := newTestCalendar(t, f, Credentials{ClientID: "id"})

	_, err := cal.Fetch(context.Background(), "2025-11-08", "2025-11-09")
	if apperr.KindOf(err) != apperr.KindConfiguration {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if f.tokenCalls.Load() != 0 {
		t.Fatal("no token exchange expected without credentials")
	}
}

func TestFetchUpstreamStatus(t *testing.T) {
	t.Parallel()

	f := &fakeGoogle{eventStatus: http.StatusServiceUnavailable}
	cal := newTestCalendar(t, f, testCreds)

	_, err := cal.Fetch(context.Background(), "2025-11-08", "2025-11-09")
	if apperr.KindOf(err) != apperr.KindUpstream {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestFetchTokenRejected(t *testing.T) {
	t.Parallel()

	f := &fakeGoogle{}
	cal := newTestCalendar(t, f, Credentials{ClientID: "id", ClientSecret: "secret", RefreshToken: "revoked"})

	_, err := cal.Fetch(context.Background(), "2025-11-08", "2025-11-09")
	if apperr.KindOf(err) != apperr.KindUpstream || apperr.CodeOf(err) != "token_exchange_failed" {
		t.Fatalf("expected token exchange failure, got %v", err)
	}
	if !strings.Contains(err.Error(), "invalid_grant") {
		t.Fatalf("expected the oauth error code in the reason, got %v", err)
	}
	if f.eventsCalls.Load() != 0 {
		t.Fatal("no events request expected after a rejected token exchange")
	}
}

func TestFetchRefreshesExpiredToken(t *testing.T) {
	t.Parallel()

	f := &fakeGoogle{expiresIn: 1}
	cal := newTestCalendar(t, f, testCreds)

	for i := 0; i < 2; i++ {
		if _, err := cal.Fetch(context.Background(), "2025-11-08", "2025-11-09"); err != nil {
			t.Fatalf("Fetch error: %v", err)
		}
	}
	if f.tokenCalls.Load() != 2 {
		t.Fatalf("expected a token exchange per fetch for a short-lived token, got %d", f.tokenCalls.Load())
	}
}

func TestFetchInvalidWindow(t *testing.T) {
	t.Parallel()

	f := &fakeGoogle{}
	cal := newTestCalendar(t, f, testCreds)

	_, err := cal.Fetch(context.Background(), "today", "2025-11-09")
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if f.tokenCalls.Load() != 0 {
		t.Fatal("invalid input must fail before any network call")
	}
}
