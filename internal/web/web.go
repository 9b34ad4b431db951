package web

import (
	"crypto/subtle"
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"slotcal/internal/availability"
	"slotcal/internal/config"
	"slotcal/internal/feed"
	appLog "slotcal/internal/log"
	"slotcal/internal/rules"
)

// Server serves the availability board, the JSON API and the ICS feed.
// All handlers resolve from the store's current snapshot; they never
// fetch anything themselves.
type Server struct {
	cfg   *config.Config
	store *rules.Store
	debug bool
	mux   *http.ServeMux

	// now is swapped out in tests to pin the horizon.
	now func() time.Time
}

//go:embed templates/board.html
var templateFS embed.FS

var boardTmpl = template.Must(template.ParseFS(templateFS, "templates/board.html"))

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, store *rules.Store, debug bool) *Server {
	s := &Server{
		cfg:   cfg,
		store: store,
		debug: debug,
		mux:   http.NewServeMux(),
		now:   time.Now,
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// 빈 사용자명 또는 비밀번호가 설정된 경우에는 비활성화로 취급한다.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// /health 는 항상 무인증으로 노출한다.
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="slotcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/", s.handleBoard)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/days", s.handleDays)
	s.mux.HandleFunc("/feed.ics", s.handleFeed)
	s.mux.HandleFunc("/preview.png", s.handlePreview)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// location resolves the display timezone, falling back to time.Local.
func (s *Server) location() *time.Location {
	name := s.cfg.Timezone
	if name == "" || name == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

// plan resolves up to `days` DayViews from the current snapshot.
func (s *Server) plan(days int) []availability.DayView {
	if days <= 0 || days > s.cfg.HorizonDays {
		days = s.cfg.HorizonDays
	}
	snap := s.store.Current()
	today := s.now().In(s.location())
	return availability.Plan(snap.Rules, s.cfg.Slots, today, days)
}

// daysResponse is the JSON response shape for /api/days.
type daysResponse struct {
	Days      []availability.DayView `json:"days"`
	FetchedAt time.Time              `json:"fetched_at"`
}

// handleDays returns the resolved horizon as JSON.
//
// GET /api/days?days=7
//   - days: how many days ahead, capped to the configured horizon.
func (s *Server) handleDays(w http.ResponseWriter, r *http.Request) {
	days := parseIntDefault(r.URL.Query().Get("days"), s.cfg.HorizonDays)
	snap := s.store.Current()
	writeJSON(w, http.StatusOK, daysResponse{
		Days:      s.plan(days),
		FetchedAt: snap.FetchedAt,
	})
}

// handleFeed serves the open slots as an ICS calendar.
func (s *Server) handleFeed(w http.ResponseWriter, _ *http.Request) {
	body := feed.OpenSlots(s.plan(s.cfg.HorizonDays), feed.Config{
		Location:    s.location(),
		SlotMinutes: s.cfg.SlotMinutes,
		Summary:     s.cfg.PageTitle,
	})
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// PreviewPath is where the captured board snapshot lives; the capture
// pipeline in cmd/slotcal writes the same path.
func PreviewPath(debug bool) string {
	if debug {
		return "./cache/preview.png"
	}
	return "/var/lib/slotcal/preview.png"
}

// handlePreview serves the last captured board snapshot from disk.
// http.ServeFile 가 파일 존재/권한 문제에 대해 적절한 상태코드를 반환해 준다.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, PreviewPath(s.debug))
}

// Template view model for the board page.
type boardView struct {
	Title    string
	Days     []dayCard
	Telegram string
	HasFeed  bool
}

type dayCard struct {
	DisplayDate string
	// Closed means the generic day renders as a single closed banner.
	// Slots still lists individually open overrides for such days.
	Closed bool
	Slots  []slotCell
}

type slotCell struct {
	Label     string
	Available bool
	Link      string
}

// handleBoard renders the availability board.
func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	loc := s.location()
	days := s.plan(s.cfg.HorizonDays)

	link := ""
	if s.cfg.TelegramUsername != "" {
		link = "https://t.me/" + s.cfg.TelegramUsername
	}

	view := boardView{
		Title:    s.cfg.PageTitle,
		Telegram: link,
		HasFeed:  true,
	}
	for _, day := range days {
		date, err := time.ParseInLocation("2006-01-02", day.Date, loc)
		if err != nil {
			continue
		}
		card := dayCard{
			DisplayDate: date.Format("Monday, 02 January"),
			Closed:      day.DayBlocked && !day.ForcedOpen,
		}
		for _, slot := range day.Slots {
			// On a closed day only individually-open overrides are shown;
			// that is how a single extra lesson appears on a day off.
			if card.Closed && !slot.Available {
				continue
			}
			card.Slots = append(card.Slots, slotCell{
				Label:     slot.Label,
				Available: slot.Available,
				Link:      link,
			})
		}
		view.Days = append(view.Days, card)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := boardTmpl.Execute(w, view); err != nil {
		appLog.Error("board template render failed", err)
	}
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}
