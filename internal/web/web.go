package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"confsched/internal/agenda"
	"confsched/internal/catalog"
	"confsched/internal/config"
	"confsched/internal/ics"
	appLog "confsched/internal/log"
	"confsched/internal/metrics"
	"confsched/internal/model"
	"confsched/internal/selection"
	"confsched/internal/timeutil"
)

// Refresher reloads the catalog from its sources.
type Refresher interface {
	Refresh(ctx context.Context, c *catalog.Catalog) error
}

// Server provides the HTTP API over the event catalog, the user's
// selections and the assembled schedule.
type Server struct {
	cfg       *config.Config
	catalog   *catalog.Catalog
	store     *selection.Store
	refresher Refresher
	loc       *time.Location
	now       func() time.Time
	router    chi.Router

	// refreshLimit throttles manual reloads so clients cannot hammer the
	// upstream feeds.
	refreshLimit *rate.Limiter
}

const manualRefreshInterval = 10 * time.Second

// NewServer constructs a new Server. refresher may be nil, in which case
// POST /api/refresh answers 503.
func NewServer(cfg *config.Config, cat *catalog.Catalog, store *selection.Store, refresher Refresher) *Server {
	s := &Server{
		cfg:       cfg,
		catalog:   cat,
		store:     store,
		refresher: refresher,
		loc:       cfg.Location(),
		now:       time.Now,

		refreshLimit: rate.NewLimiter(rate.Every(manualRefreshInterval), 1),
	}
	s.router = s.routes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if s.cfg.Metrics {
		r.Use(metrics.Middleware())
	}
	r.Use(s.requestLogger)

	r.Get("/health", s.handleHealth)
	if s.cfg.Metrics {
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/events", s.handleEvents)
		r.Get("/events/csv", s.handleEventsCSV)
		r.Get("/events/{id}", s.handleEvent)
		r.Get("/deck", s.handleDeck)

		r.Get("/selections", s.handleSelections)
		r.Delete("/selections", s.handleResetSelections)
		r.Post("/selections/{id}/interested", s.handleMark(markInterested))
		r.Post("/selections/{id}/not-interested", s.handleMark(markNotInterested))
		r.Delete("/selections/{id}", s.handleMark(unmark))

		r.Get("/schedule", s.handleSchedule)
		r.Get("/schedule.ics", s.handleScheduleICS)

		r.Post("/refresh", s.handleRefresh)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// requestLogger logs each request at debug level.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		appLog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// eventDTO is an Event plus display strings and the caller's rating.
type eventDTO struct {
	model.Event
	DisplayDate string `json:"display_date"`
	DisplayTime string `json:"display_time"`
	Rating      string `json:"rating"`
}

// eventsResponse is the JSON response shape for /api/events and /api/deck.
type eventsResponse struct {
	Events   []eventDTO `json:"events"`
	LoadedAt time.Time  `json:"loaded_at"`
	// LoadError is set when the last load failed and the list is empty.
	LoadError string `json:"load_error,omitempty"`
}

type scheduleEventDTO struct {
	eventDTO
	HasConflict       bool  `json:"has_conflict"`
	ConflictingEvents []int `json:"conflicting_events"`
}

type scheduleDayDTO struct {
	Date        string             `json:"date"`
	DisplayDate string             `json:"display_date"`
	Events      []scheduleEventDTO `json:"events"`
}

type scheduleResponse struct {
	Days      []scheduleDayDTO `json:"days"`
	Conflicts int              `json:"conflicts"`
}

const (
	ratingNone          = "none"
	ratingInterested    = "interested"
	ratingNotInterested = "not_interested"
)

func (s *Server) toDTO(ev model.Event) eventDTO {
	rating := ratingNone
	switch {
	case s.store.IsInterested(ev.ID):
		rating = ratingInterested
	case s.store.IsRated(ev.ID):
		rating = ratingNotInterested
	}
	return eventDTO{
		Event:       ev,
		DisplayDate: timeutil.FormatDay(ev.Date),
		DisplayTime: timeutil.Format12h(ev.StartTime) + " - " + timeutil.Format12h(ev.EndTime),
		Rating:      rating,
	}
}

func (s *Server) listResponse(events []model.Event) eventsResponse {
	loadedAt, loadErr := s.catalog.Status()
	resp := eventsResponse{
		Events:   make([]eventDTO, 0, len(events)),
		LoadedAt: loadedAt,
	}
	if loadErr != nil {
		resp.LoadError = loadErr.Error()
	}
	for _, ev := range events {
		resp.Events = append(resp.Events, s.toDTO(ev))
	}
	return resp
}

// handleEvents lists the catalog, optionally restricted by type.
//
// GET /api/events?type=main,workshop
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	types, err := parseTypes(r.URL.Query().Get("type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.listResponse(s.catalog.Filter(types)))
}

// handleEventsCSV serves the first CSV source payload unchanged.
func (s *Server) handleEventsCSV(w http.ResponseWriter, _ *http.Request) {
	raw := s.catalog.Raw()
	if raw == nil {
		writeError(w, http.StatusServiceUnavailable, "no CSV source loaded")
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := eventID(w, r)
	if !ok {
		return
	}
	ev, err := s.catalog.Get(id)
	if err != nil {
		writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.toDTO(ev))
}

// handleDeck returns the events the user has not rated yet.
//
// GET /api/deck?type=panel
func (s *Server) handleDeck(w http.ResponseWriter, r *http.Request) {
	types, err := parseTypes(r.URL.Query().Get("type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	deck := agenda.Deck(s.catalog.All(), types, s.store.IsRated)
	writeJSON(w, http.StatusOK, s.listResponse(deck))
}

func (s *Server) handleSelections(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Snapshot())
}

func (s *Server) handleResetSelections(w http.ResponseWriter, _ *http.Request) {
	s.store.Reset()
	metrics.ObserveSelection("reset")
	appLog.Info("selections reset")
	writeJSON(w, http.StatusOK, s.store.Snapshot())
}

type markAction int

const (
	markInterested markAction = iota
	markNotInterested
	unmark
)

func (a markAction) String() string {
	switch a {
	case markInterested:
		return "interested"
	case markNotInterested:
		return "not_interested"
	default:
		return "unmark"
	}
}

// handleMark applies one selection mutation. Marking requires the event to
// exist; unmarking does not, so ratings left over from an older catalog can
// still be cleared.
func (s *Server) handleMark(action markAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := eventID(w, r)
		if !ok {
			return
		}
		if action != unmark {
			if _, err := s.catalog.Get(id); err != nil {
				writeLookupError(w, err)
				return
			}
		}

		switch action {
		case markInterested:
			s.store.MarkInterested(id)
		case markNotInterested:
			s.store.MarkNotInterested(id)
		case unmark:
			s.store.Unmark(id)
		}
		metrics.ObserveSelection(action.String())
		appLog.Debug("selection updated", "id", id, "action", action.String())

		writeJSON(w, http.StatusOK, s.store.Snapshot())
	}
}

func (s *Server) buildAgenda() model.Agenda {
	a := agenda.Build(s.catalog.All(), s.store.InterestedSet())
	metrics.ObserveAgenda(a.ConflictCount())
	return a
}

// handleSchedule returns the interested events grouped per day with
// conflict annotations. ?date=YYYY-MM-DD narrows it to one day.
func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	a := s.buildAgenda()
	if date := strings.TrimSpace(r.URL.Query().Get("date")); date != "" {
		day, ok := a.Day(date)
		a = model.Agenda{}
		if ok {
			a = model.Agenda{day}
		}
	}

	resp := scheduleResponse{
		Days:      make([]scheduleDayDTO, 0, len(a)),
		Conflicts: a.ConflictCount(),
	}
	for _, day := range a {
		d := scheduleDayDTO{
			Date:        day.Date,
			DisplayDate: timeutil.FormatDay(day.Date),
			Events:      make([]scheduleEventDTO, 0, len(day.Events)),
		}
		for _, ev := range day.Events {
			ids := make([]int, 0, len(ev.ConflictingEvents))
			for _, other := range ev.ConflictingEvents {
				ids = append(ids, other.ID)
			}
			d.Events = append(d.Events, scheduleEventDTO{
				eventDTO:          s.toDTO(ev.Event),
				HasConflict:       ev.HasConflict,
				ConflictingEvents: ids,
			})
		}
		resp.Days = append(resp.Days, d)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleScheduleICS exports the schedule as an iCalendar file.
func (s *Server) handleScheduleICS(w http.ResponseWriter, _ *http.Request) {
	body := ics.EncodeAgenda(s.buildAgenda(), s.loc, s.now())
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="schedule.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// handleRefresh reloads the sources synchronously.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.refresher == nil {
		writeError(w, http.StatusServiceUnavailable, "refresh not configured")
		return
	}
	if !s.refreshLimit.Allow() {
		w.Header().Set("Retry-After", strconv.Itoa(int(manualRefreshInterval.Seconds())))
		writeError(w, http.StatusTooManyRequests, "refresh requested too often")
		return
	}
	if err := s.refresher.Refresh(r.Context(), s.catalog); err != nil {
		status := http.StatusBadGateway
		if !catalog.IsUnavailable(err) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"events": s.catalog.Len()})
}

// parseTypes reads a comma-separated type filter. Empty means no filter.
func parseTypes(raw string) ([]model.EventType, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var out []model.EventType
	for _, part := range strings.Split(raw, ",") {
		t := model.EventType(strings.ToLower(strings.TrimSpace(part)))
		if t == "" {
			continue
		}
		if !t.Valid() {
			return nil, errors.New("unknown event type: " + string(t))
		}
		out = append(out, t)
	}
	return out, nil
}

// eventID parses the {id} URL parameter, answering 400 when it is not a
// positive integer.
func eventID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return 0, false
	}
	return id, true
}

func writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	appLog.Error("event lookup failed", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
