package session

import (
	"sync"
	"time"

	"popcorn-grinder-service/internal/discovery"
	"popcorn-grinder-service/internal/model"
)

// Session is one open home view: the filters and search box of a client
// driving its own fetch controller
type Session struct {
	ID        string
	CreatedAt time.Time

	controller *discovery.Controller
	debouncer  *discovery.Debouncer

	mu       sync.Mutex
	filters  model.Filters
	search   string
	lastSeen time.Time
}

// State is what a client renders for a session
type State struct {
	ID            string `json:"id"`
	Input         string `json:"input"`
	SearchPending bool   `json:"search_pending"`
	discovery.Snapshot
}

func newSession(id string, fetcher discovery.PageFetcher, recorder discovery.Recorder, debounce time.Duration) *Session {
	now := time.Now()
	s := &Session{
		ID:        id,
		CreatedAt: now,
		lastSeen:  now,
	}
	s.controller = discovery.NewController(fetcher, discovery.Options{
		Recorder: recorder,
		Name:     id,
	})
	s.debouncer = discovery.NewDebouncer(debounce, s.commitSearch)
	return s
}

// start issues page 1 of the empty query
func (s *Session) start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controller.SetQuery(model.Query{})
}

// SetFilters replaces the filters; the query changes immediately.
// It reports whether pagination was reset.
func (s *Session) SetFilters(filters model.Filters) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = filters
	return s.controller.SetQuery(model.Query{Search: s.search, Filters: filters})
}

// ClearFilters drops every filter and keeps the search text
func (s *Session) ClearFilters() bool {
	return s.SetFilters(model.Filters{})
}

// Type feeds the search box. The text becomes part of the query once the
// debounce delay passes without further typing.
func (s *Session) Type(text string) {
	s.touch()
	s.debouncer.Input(text)
}

// FlushSearch commits pending search text now
func (s *Session) FlushSearch() {
	s.debouncer.Flush()
}

// Advance is the scroll sentinel crossing into view
func (s *Session) Advance() bool {
	s.touch()
	return s.controller.AdvancePage()
}

// State returns the current render state
func (s *Session) State() State {
	return State{
		ID:            s.ID,
		Input:         s.debouncer.Buffer(),
		SearchPending: s.debouncer.Pending(),
		Snapshot:      s.controller.Snapshot(),
	}
}

// Close stops the debouncer and cancels any in-flight request
func (s *Session) Close() {
	s.debouncer.Stop()
	s.controller.Close()
}

func (s *Session) commitSearch(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.search = text
	s.controller.SetQuery(model.Query{Search: text, Filters: s.filters})
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}
