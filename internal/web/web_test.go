package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"slotcal/internal/config"
	"slotcal/internal/rules"
)

func testConfig() *config.Config {
	cfg := &config.Config{
		Listen:           "127.0.0.1:0",
		PageTitle:        "Test Slots",
		TelegramUsername: "teacher",
		HorizonDays:      14,
		Slots:            []string{"10:15", "11:30", "14:00"},
		SlotMinutes:      75,
		Timezone:         "UTC",
	}
	cfg.Normalize()
	return cfg
}

// newTestServer pins "today" to Thursday 2026-01-01 UTC.
func newTestServer(cfg *config.Config, rs rules.RuleSet) *Server {
	store := rules.NewStore()
	store.Set(rs)
	s := NewServer(cfg, store, true)
	s.now = func() time.Time {
		return time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	}
	return s
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(testConfig(), rules.RuleSet{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("unexpected health response: %d %q", rec.Code, rec.Body.String())
	}
}

func TestHandleDays_FullHorizon(t *testing.T) {
	s := newTestServer(testConfig(), rules.RuleSet{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/days", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var resp struct {
		Days []struct {
			Date    string `json:"date"`
			Weekday string `json:"weekday"`
			Slots   []struct {
				Label     string `json:"label"`
				Available bool   `json:"available"`
			} `json:"slots"`
		} `json:"days"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Days) != 14 {
		t.Fatalf("expected 14 days, got %d", len(resp.Days))
	}
	if resp.Days[0].Date != "2026-01-01" || resp.Days[0].Weekday != "Thursday" {
		t.Fatalf("unexpected first day: %+v", resp.Days[0])
	}
	for _, slot := range resp.Days[0].Slots {
		if !slot.Available {
			t.Fatalf("empty rule set: slot %q should be available", slot.Label)
		}
	}
}

func TestHandleDays_CapsRequestedDays(t *testing.T) {
	s := newTestServer(testConfig(), rules.RuleSet{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/days?days=3", nil))
	var resp struct {
		Days []json.RawMessage `json:"days"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Days) != 3 {
		t.Fatalf("days=3: expected 3 days, got %d", len(resp.Days))
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/days?days=999", nil))
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Days) != 14 {
		t.Fatalf("days=999: expected cap at 14, got %d", len(resp.Days))
	}
}

func TestHandleBoard_ClosedDayKeepsOpenOverride(t *testing.T) {
	// Saturday is a day off, but 14:00 on Jan 3 is individually open.
	rs := rules.RuleSet{
		{Weekday: "Saturday", AllDay: true, Status: "Busy"},
		{Date: "2026-01-03", Slot: "14:00", Open: true, Status: "OPEN"},
	}
	s := newTestServer(testConfig(), rs)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Test Slots") {
		t.Fatalf("missing page title:\n%s", body)
	}
	if !strings.Contains(body, "Fully booked / day off") {
		t.Fatalf("blocked Saturday should render a closed banner:\n%s", body)
	}
	if !strings.Contains(body, "https://t.me/teacher") {
		t.Fatalf("open slots should deep-link to Telegram:\n%s", body)
	}
	// The override slot still renders as a bookable link on the closed day.
	if !strings.Contains(body, ">14:00</a>") {
		t.Fatalf("14:00 override should stay bookable on the closed Saturday:\n%s", body)
	}
}

func TestHandleBoard_NotFoundForUnknownPath(t *testing.T) {
	s := newTestServer(testConfig(), rules.RuleSet{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleFeed_ServesCalendar(t *testing.T) {
	s := newTestServer(testConfig(), rules.RuleSet{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/feed.ics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Fatalf("unexpected content type: %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "BEGIN:VCALENDAR") {
		t.Fatalf("expected calendar body:\n%s", rec.Body.String())
	}
}

func TestBasicAuth(t *testing.T) {
	cfg := testConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "secret"}
	s := newTestServer(cfg, rules.RuleSet{})

	// Unauthenticated request is rejected.
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", rec.Code)
	}

	// /health stays open.
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("/health must bypass auth, got %d", rec.Code)
	}

	// Correct credentials pass.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth("admin", "secret")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with credentials, got %d", rec.Code)
	}
}
