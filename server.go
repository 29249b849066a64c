package eventdesk

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

// ============================================================================
// EventServer
// ============================================================================

// ServerOptions configures the reference server.
type ServerOptions struct {
	// DataFile is the JSON file the event collection is persisted to.
	// Empty means in-memory only.
	DataFile string
	// SeedCount is the number of random events generated when no data
	// file exists. Defaults to 20.
	SeedCount int
	// GenerateInterval is the period of the background event generator
	// started by StartGenerator. Defaults to 1 second.
	GenerateInterval time.Duration
}

// EventServer is the reference implementation of the EventDesk API: the
// event CRUD endpoints, the health check, and the WebSocket push channel
// announcing new events. It exists so the SDK and CLI can be exercised
// without a separately deployed backend.
type EventServer struct {
	mu       sync.Mutex
	events   []Event
	nextID   int64
	dataFile string
	rng      *rand.Rand

	subMu       sync.Mutex
	subscribers map[chan []byte]struct{}

	genInterval time.Duration
	genCancel   context.CancelFunc
}

// NewEventServer creates a server, loading the collection from the data
// file or seeding it with random events when the file is absent.
func NewEventServer(opts *ServerOptions) *EventServer {
	if opts == nil {
		opts = &ServerOptions{}
	}
	seedCount := opts.SeedCount
	if seedCount == 0 {
		seedCount = 20
	}
	genInterval := opts.GenerateInterval
	if genInterval == 0 {
		genInterval = 1 * time.Second
	}

	s := &EventServer{
		dataFile:    opts.DataFile,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		subscribers: make(map[chan []byte]struct{}),
		genInterval: genInterval,
	}

	if !s.loadFromFile() {
		s.seed(seedCount)
	}
	s.nextID = maxNumericID(s.events) + 1
	return s
}

func (s *EventServer) loadFromFile() bool {
	if s.dataFile == "" {
		return false
	}
	data, err := os.ReadFile(s.dataFile)
	if err != nil {
		return false
	}
	var events []Event
	if json.Unmarshal(data, &events) != nil {
		return false
	}
	s.events = events
	return true
}

// persistLocked writes the collection to the data file. Callers hold s.mu.
func (s *EventServer) persistLocked() {
	if s.dataFile == "" {
		return
	}
	data, err := json.MarshalIndent(s.events, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(s.dataFile, data, 0o600)
}

func maxNumericID(events []Event) int64 {
	var max int64
	for _, ev := range events {
		if n, err := strconv.ParseInt(string(ev.ID), 10, 64); err == nil && n > max {
			max = n
		}
	}
	return max
}

// Events returns a snapshot of the current collection, unfiltered.
func (s *EventServer) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event{}, s.events...)
}

// ============================================================================
// HTTP Routing
// ============================================================================

// Handler returns the HTTP handler serving the API.
func (s *EventServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(entitiesPath, s.handleCollection)
	mux.HandleFunc(entitiesPath+"/", s.handleItem)
	return mux
}

func (s *EventServer) handleCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleList(w, r)
	case http.MethodPost:
		s.handleCreate(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *EventServer) handleItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, entitiesPath+"/")
	switch rest {
	case "health-check":
		s.handleHealth(w, r)
		return
	case "ws":
		s.handleWS(w, r)
		return
	}

	id := EventID(rest)
	switch r.Method {
	case http.MethodPut:
		s.handleUpdate(w, r, id)
	case http.MethodDelete:
		s.handleDelete(w, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// ============================================================================
// Handlers
// ============================================================================

func (s *EventServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthStatus{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *EventServer) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, _ := strconv.Atoi(query.Get("page"))
	limit, _ := strconv.Atoi(query.Get("limit"))
	filters := FiltersFromQuery(query)

	s.mu.Lock()
	events := append([]Event{}, s.events...)
	s.mu.Unlock()

	events = FilterEvents(events, filters)
	SortEvents(events, filters.SortBy)
	writeJSON(w, http.StatusOK, Paginate(events, page, limit))
}

func (s *EventServer) handleCreate(w http.ResponseWriter, r *http.Request) {
	var in EventInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := in.Validate(); err != nil {
		apiErr := err.(*APIError)
		writeError(w, apiErr.StatusCode, apiErr.Message)
		return
	}

	s.mu.Lock()
	ev := in.Event(EventID(strconv.FormatInt(s.nextID, 10)))
	s.nextID++
	s.events = append(s.events, ev)
	s.persistLocked()
	s.mu.Unlock()

	s.broadcast(ev)
	writeJSON(w, http.StatusCreated, ev)
}

func (s *EventServer) handleUpdate(w http.ResponseWriter, r *http.Request, id EventID) {
	var in EventInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	idx := -1
	for i := range s.events {
		if s.events[i].ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "Event not found")
		return
	}
	if err := in.Validate(); err != nil {
		s.mu.Unlock()
		apiErr := err.(*APIError)
		writeError(w, apiErr.StatusCode, apiErr.Message)
		return
	}
	s.events[idx] = in.Event(id)
	ev := s.events[idx]
	s.persistLocked()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, ev)
}

func (s *EventServer) handleDelete(w http.ResponseWriter, id EventID) {
	s.mu.Lock()
	idx := -1
	for i := range s.events {
		if s.events[i].ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "Event not found")
		return
	}
	s.events = append(s.events[:idx], s.events[idx+1:]...)
	s.persistLocked()
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

// ============================================================================
// WebSocket Push Channel
// ============================================================================

func (s *EventServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}

	ch := make(chan []byte, 16)
	s.subMu.Lock()
	s.subscribers[ch] = struct{}{}
	s.subMu.Unlock()

	defer func() {
		s.subMu.Lock()
		delete(s.subscribers, ch)
		s.subMu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	ctx := r.Context()

	// Drain client frames to notice the close; the channel is push-only.
	go func() {
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-ch:
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// broadcast pushes a NEW_ENTITY envelope to every subscriber. Slow
// subscribers with a full buffer miss the message rather than block the
// server.
func (s *EventServer) broadcast(ev Event) {
	data, err := json.Marshal(BroadcastEnvelope{Type: BroadcastNewEntity, Data: ev})
	if err != nil {
		return
	}
	s.subMu.Lock()
	for ch := range s.subscribers {
		select {
		case ch <- data:
		default:
		}
	}
	s.subMu.Unlock()
}

// ============================================================================
// Event Generation
// ============================================================================

var sportsGroups = []string{
	"Football", "Basketball", "Tennis", "Cycling", "Olympics",
	"Cricket", "Marathon", "Golf", "Athletics", "Formula 1",
	"Motorsport", "Rugby", "Baseball", "Triathlon", "Extreme Sports",
	"Surfing", "American Football", "Swimming", "Boxing", "Volleyball",
}

var eventSuffixes = []string{
	"Championship", "Cup", "Tournament", "Final", "Series", "Grand Prix", "Classic",
}

var eventAdjectives = []string{
	"premier", "most prestigious", "annual", "biannual", "world-class",
}

var eventTaglines = []string{
	"featuring top competitors from around the world",
	"with intense competition",
	"held at a world-famous venue",
	"that determines the world champion",
}

// randomEvent builds a plausible sporting event on a future date. Callers
// hold s.mu.
func (s *EventServer) randomEvent(id EventID) Event {
	startHour := 6 + s.rng.Intn(15)
	duration := 1 + s.rng.Intn(6)
	group := sportsGroups[s.rng.Intn(len(sportsGroups))]
	date := time.Now().AddDate(0, 0, 1+s.rng.Intn(730)).Format("2006-01-02")

	return Event{
		ID:        id,
		Title:     fmt.Sprintf("%d %s %s", 2023+s.rng.Intn(3), group, eventSuffixes[s.rng.Intn(len(eventSuffixes))]),
		Group:     group,
		Date:      date,
		StartTime: fmt.Sprintf("%02d:00", startHour),
		EndTime:   fmt.Sprintf("%02d:00", startHour+duration),
		Description: fmt.Sprintf("The %s %s event %s.",
			eventAdjectives[s.rng.Intn(len(eventAdjectives))],
			strings.ToLower(group),
			eventTaglines[s.rng.Intn(len(eventTaglines))]),
	}
}

func (s *EventServer) seed(count int) {
	s.events = make([]Event, 0, count)
	for i := 0; i < count; i++ {
		s.events = append(s.events, s.randomEvent(EventID(strconv.Itoa(i+1))))
	}
	s.persistLocked()
}

// StartGenerator launches a background goroutine that periodically
// creates a random event and announces it over the push channel. Calling
// it again restarts the generator.
func (s *EventServer) StartGenerator(ctx context.Context) {
	s.StopGenerator()

	genCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.genCancel = cancel
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(s.genInterval)
		defer ticker.Stop()
		for {
			select {
			case <-genCtx.Done():
				return
			case <-ticker.C:
				s.mu.Lock()
				ev := s.randomEvent(EventID(strconv.FormatInt(s.nextID, 10)))
				s.nextID++
				s.events = append(s.events, ev)
				s.persistLocked()
				s.mu.Unlock()
				s.broadcast(ev)
			}
		}
	}()
}

// StopGenerator halts the background generator if it is running.
func (s *EventServer) StopGenerator() {
	s.mu.Lock()
	if s.genCancel != nil {
		s.genCancel()
		s.genCancel = nil
	}
	s.mu.Unlock()
}
