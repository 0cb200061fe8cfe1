package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"popcorn-grinder-service/internal/model"
)

// stubFetcher answers immediately with two pages of two movies per query
type stubFetcher struct {
	mu      sync.Mutex
	queries []model.Query
}

func (f *stubFetcher) FetchPage(ctx context.Context, query model.Query, page int) (*model.MoviePage, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()

	base := page * 10
	return &model.MoviePage{
		Page:       page,
		TotalPages: 2,
		Results: []model.Movie{
			{ID: base + 1, Title: query.Search},
			{ID: base + 2, Title: query.Search},
		},
	}, nil
}

func (f *stubFetcher) last() model.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queries) == 0 {
		return model.Query{}
	}
	return f.queries[len(f.queries)-1]
}

func waitSettled(t *testing.T, s *Session) State {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		st := s.State()
		if !st.Loading && !st.SearchPending {
			return st
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session %s did not settle", s.ID)
	return State{}
}

func TestManager_CreateStartsDiscover(t *testing.T) {
	fetcher := &stubFetcher{}
	m := NewManager(fetcher, nil, 20*time.Millisecond, time.Minute)
	defer m.CloseAll()

	s := m.Create()
	if s.ID == "" {
		t.Fatal("expected a session id")
	}
	st := waitSettled(t, s)
	if st.Page != 1 || len(st.Results) != 2 || !st.HasMore {
		t.Fatalf("unexpected first page state: %+v", st.Snapshot)
	}
	if st.Query.Mode() != model.ModeDiscover {
		t.Fatalf("expected discover mode, got %s", st.Query.Mode())
	}

	got, err := m.Get(s.ID)
	if err != nil || got != s {
		t.Fatalf("expected to find session, got %v", err)
	}
	if m.Count() != 1 {
		t.Fatalf("expected 1 session, got %d", m.Count())
	}
}

func TestSession_TypeIsDebounced(t *testing.T) {
	fetcher := &stubFetcher{}
	m := NewManager(fetcher, nil, 30*time.Millisecond, time.Minute)
	defer m.CloseAll()

	s := m.Create()
	waitSettled(t, s)

	s.Type("b")
	s.Type("bat")
	s.Type("batman")
	if st := s.State(); !st.SearchPending || st.Input != "batman" {
		t.Fatalf("expected pending input batman, got %+v", st)
	}

	st := waitSettled(t, s)
	if st.Query.Search != "batman" || st.Query.Mode() != model.ModeSearch {
		t.Fatalf("expected committed search batman, got %+v", st.Query)
	}
	if fetcher.last().Search != "batman" {
		t.Fatalf("expected last fetch for batman, got %q", fetcher.last().Search)
	}
	fetcher.mu.Lock()
	defer fetcher.mu.Unlock()
	for _, q := range fetcher.queries {
		if q.Search == "b" || q.Search == "bat" {
			t.Fatalf("intermediate input %q must not be fetched", q.Search)
		}
	}
}

func TestSession_FlushSearchCommitsNow(t *testing.T) {
	fetcher := &stubFetcher{}
	m := NewManager(fetcher, nil, time.Hour, time.Minute)
	defer m.CloseAll()

	s := m.Create()
	waitSettled(t, s)

	s.Type("alien")
	s.FlushSearch()

	st := waitSettled(t, s)
	if st.Query.Search != "alien" {
		t.Fatalf("expected flushed search, got %q", st.Query.Search)
	}
}

func TestSession_FiltersKeepSearch(t *testing.T) {
	fetcher := &stubFetcher{}
	m := NewManager(fetcher, nil, time.Hour, time.Minute)
	defer m.CloseAll()

	s := m.Create()
	waitSettled(t, s)
	s.Type("dune")
	s.FlushSearch()
	waitSettled(t, s)

	year := 2021
	if !s.SetFilters(model.Filters{Genres: []int{878}, YearStart: &year}) {
		t.Fatal("expected new filters to reset pagination")
	}
	st := waitSettled(t, s)
	if st.Query.Search != "dune" || len(st.Query.Filters.Genres) != 1 {
		t.Fatalf("expected search and filters combined, got %+v", st.Query)
	}
	if s.SetFilters(model.Filters{Genres: []int{878}, YearStart: &year}) {
		t.Fatal("identical filters must be a no-op")
	}

	if !s.ClearFilters() {
		t.Fatal("expected clearing filters to reset pagination")
	}
	st = waitSettled(t, s)
	if !st.Query.Filters.IsEmpty() || st.Query.Search != "dune" {
		t.Fatalf("expected empty filters with search kept, got %+v", st.Query)
	}
}

func TestSession_AdvanceUntilExhausted(t *testing.T) {
	m := NewManager(&stubFetcher{}, nil, time.Hour, time.Minute)
	defer m.CloseAll()

	s := m.Create()
	waitSettled(t, s)

	if !s.Advance() {
		t.Fatal("expected page 2 to be requested")
	}
	st := waitSettled(t, s)
	if st.Page != 2 || len(st.Results) != 4 || st.HasMore {
		t.Fatalf("unexpected state after last page: %+v", st.Snapshot)
	}
	if s.Advance() {
		t.Fatal("advance past the last page must be a no-op")
	}
}

func TestManager_DeleteAndExpire(t *testing.T) {
	m := NewManager(&stubFetcher{}, nil, time.Hour, time.Minute)
	defer m.CloseAll()

	a := m.Create()
	b := m.Create()

	if !m.Delete(a.ID) {
		t.Fatal("expected delete to succeed")
	}
	if m.Delete(a.ID) {
		t.Fatal("second delete must report false")
	}
	if _, err := m.Get(a.ID); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if n := m.Expire(time.Now()); n != 0 {
		t.Fatalf("fresh session must not expire, expired %d", n)
	}
	if n := m.Expire(time.Now().Add(2 * time.Minute)); n != 1 {
		t.Fatalf("expected 1 expired session, got %d", n)
	}
	if _, err := m.Get(b.ID); err != ErrNotFound {
		t.Fatalf("expected expired session to be gone, got %v", err)
	}
}

func TestManager_RunClosesOnCancel(t *testing.T) {
	m := NewManager(&stubFetcher{}, nil, time.Hour, time.Minute)
	m.Create()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if m.Count() != 0 {
		t.Fatalf("expected all sessions closed, got %d", m.Count())
	}
}
