package favorites

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"popcorn-grinder-service/internal/model"
	"popcorn-grinder-service/internal/repository"

	"github.com/alicebob/miniredis/v2"
)

type memStorage struct {
	mu      sync.Mutex
	data    map[string]string
	failSet bool
	failGet bool
	writes  int
}

func newMemStorage() *memStorage {
	return &memStorage{data: map[string]string{}}
}

func (m *memStorage) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return "", errors.New("connection reset")
	}
	v, ok := m.data[key]
	if !ok {
		return "", repository.ErrNotFound
	}
	return v, nil
}

func (m *memStorage) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet {
		return errors.New("disk full")
	}
	m.writes++
	m.data[key] = value
	return nil
}

func (m *memStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memStorage) Close() error { return nil }

func movie(id int, title string) model.Movie {
	return model.Movie{ID: id, Title: title, ReleaseDate: "1999-03-31", VoteAverage: 8.7}
}

func TestStore_LoadDefaults(t *testing.T) {
	ctx := context.Background()

	t.Run("Absent", func(t *testing.T) {
		s := NewStore(newMemStorage(), "")
		if err := s.Load(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.Count() != 0 {
			t.Fatalf("expected empty set")
		}
	})

	t.Run("Malformed", func(t *testing.T) {
		storage := newMemStorage()
		storage.data[DefaultKey] = "{not json"
		s := NewStore(storage, DefaultKey)
		if err := s.Load(ctx); err != nil {
			t.Fatalf("malformed payload must not be an error, got %v", err)
		}
		if s.Count() != 0 {
			t.Fatalf("expected empty set")
		}
	})

	t.Run("Existing", func(t *testing.T) {
		storage := newMemStorage()
		data, _ := json.Marshal([]model.Movie{movie(1, "The Matrix"), movie(2, "Heat")})
		storage.data[DefaultKey] = string(data)
		s := NewStore(storage, DefaultKey)
		if err := s.Load(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !s.IsFavorite(1) || !s.IsFavorite(2) || s.IsFavorite(3) {
			t.Fatalf("unexpected membership after load: %+v", s.List())
		}
	})
}

func TestStore_ToggleIsItsOwnInverse(t *testing.T) {
	ctx := context.Background()
	storage := newMemStorage()
	s := NewStore(storage, DefaultKey)
	s.Load(ctx)

	s.Toggle(ctx, movie(7, "Se7en"))
	before := s.List()

	m := movie(42, "Hitchhiker")
	on, err := s.Toggle(ctx, m)
	if err != nil || !on || !s.IsFavorite(42) {
		t.Fatalf("first toggle should add: on=%v err=%v", on, err)
	}
	off, err := s.Toggle(ctx, m)
	if err != nil || off || s.IsFavorite(42) {
		t.Fatalf("second toggle should remove: on=%v err=%v", off, err)
	}

	after := s.List()
	if len(after) != len(before) || after[0].ID != before[0].ID {
		t.Fatalf("double toggle changed the set: before=%+v after=%+v", before, after)
	}
}

func TestStore_PersistsAcrossReload(t *testing.T) {
	ctx := context.Background()
	storage := newMemStorage()

	s := NewStore(storage, DefaultKey)
	s.Load(ctx)
	if _, err := s.Toggle(ctx, movie(603, "The Matrix")); err != nil {
		t.Fatalf("toggle failed: %v", err)
	}

	reloaded := NewStore(storage, DefaultKey)
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if !reloaded.IsFavorite(603) {
		t.Fatalf("favorite lost across reload")
	}
	got := reloaded.List()[0]
	if got.Title != "The Matrix" || got.VoteAverage != 8.7 {
		t.Fatalf("snapshot not preserved: %+v", got)
	}
}

func TestStore_Remove(t *testing.T) {
	ctx := context.Background()
	storage := newMemStorage()
	s := NewStore(storage, DefaultKey)
	s.Load(ctx)
	s.Toggle(ctx, movie(1, "a"))
	s.Toggle(ctx, movie(2, "b"))
	s.Toggle(ctx, movie(3, "c"))

	removed, err := s.Remove(ctx, 2)
	if err != nil || !removed {
		t.Fatalf("expected removal, got %v %v", removed, err)
	}
	list := s.List()
	if len(list) != 2 || list[0].ID != 1 || list[1].ID != 3 {
		t.Fatalf("unexpected order after remove: %+v", list)
	}

	writes := storage.writes
	removed, err = s.Remove(ctx, 99)
	if err != nil || removed {
		t.Fatalf("removing an unknown id must be a no-op")
	}
	if storage.writes != writes {
		t.Fatalf("no-op remove must not write")
	}
}

func TestStore_FailedPersistLeavesSetUntouched(t *testing.T) {
	ctx := context.Background()
	storage := newMemStorage()
	s := NewStore(storage, DefaultKey)
	s.Load(ctx)
	s.Toggle(ctx, movie(1, "a"))

	ch, unsubscribe := s.Subscribe()
	defer unsubscribe()

	storage.failSet = true
	on, err := s.Toggle(ctx, movie(2, "b"))
	if err == nil {
		t.Fatalf("expected persist error")
	}
	if on || s.IsFavorite(2) || s.Count() != 1 {
		t.Fatalf("failed toggle leaked into memory: %+v", s.List())
	}
	if _, err := s.Remove(ctx, 1); err == nil || !s.IsFavorite(1) {
		t.Fatalf("failed remove must keep the favorite")
	}
	select {
	case <-ch:
		t.Fatalf("failed mutations must not notify")
	default:
	}
}

func TestStore_ReadFailureKeepsPersistedSet(t *testing.T) {
	ctx := context.Background()
	storage := newMemStorage()
	s := NewStore(storage, DefaultKey)
	s.Load(ctx)
	s.Toggle(ctx, movie(1, "The Matrix"))
	s.Toggle(ctx, movie(2, "Heat"))

	storage.failGet = true
	if err := s.Load(ctx); err == nil {
		t.Fatal("expected the read failure to be returned")
	}
	storage.failGet = false
	if !s.IsFavorite(1) || !s.IsFavorite(2) || s.Count() != 2 {
		t.Fatalf("failed read must not clear the set in memory, count=%d", s.Count())
	}

	s.Toggle(ctx, movie(3, "Alien"))
	reloaded := NewStore(storage, DefaultKey)
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.Count() != 3 {
		t.Fatalf("expected 3 persisted favorites, got %d", reloaded.Count())
	}
}

func TestStore_MutationsRefusedUntilLoaded(t *testing.T) {
	ctx := context.Background()
	storage := newMemStorage()
	storage.data[DefaultKey] = `[{"id":1,"title":"The Matrix"}]`
	storage.failGet = true

	s := NewStore(storage, DefaultKey)
	if err := s.Load(ctx); err == nil {
		t.Fatal("expected load to fail")
	}
	if _, err := s.Toggle(ctx, movie(2, "Heat")); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("expected ErrNotLoaded from Toggle, got %v", err)
	}
	if _, err := s.Remove(ctx, 1); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("expected ErrNotLoaded from Remove, got %v", err)
	}
	if storage.writes != 0 || storage.data[DefaultKey] != `[{"id":1,"title":"The Matrix"}]` {
		t.Fatalf("stored favorites must be untouched, writes=%d", storage.writes)
	}

	storage.failGet = false
	if err := s.Load(ctx); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if ok, err := s.Toggle(ctx, movie(2, "Heat")); err != nil || !ok {
		t.Fatalf("expected toggle after load to succeed, got %v (%v)", ok, err)
	}
	if s.Count() != 2 {
		t.Fatalf("expected 2 favorites, got %d", s.Count())
	}
}

func TestStore_SubscribeNotifies(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newMemStorage(), DefaultKey)
	s.Load(ctx)

	ch, unsubscribe := s.Subscribe()
	s.Toggle(ctx, movie(1, "a"))
	s.Toggle(ctx, movie(2, "b"))

	select {
	case <-ch:
	default:
		t.Fatalf("expected a change notification")
	}
	select {
	case <-ch:
		t.Fatalf("bursts should coalesce into one pending signal")
	default:
	}

	unsubscribe()
	unsubscribe()
	s.Toggle(ctx, movie(3, "c"))
	select {
	case <-ch:
		t.Fatalf("unsubscribed channel received a signal")
	default:
	}
}

func TestStore_ConcurrentTogglesAreSerialized(t *testing.T) {
	ctx := context.Background()
	storage := newMemStorage()
	s := NewStore(storage, DefaultKey)
	s.Load(ctx)

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			s.Toggle(ctx, movie(id, "m"))
		}(i)
	}
	wg.Wait()

	if s.Count() != 50 {
		t.Fatalf("expected 50 favorites, got %d", s.Count())
	}
	reloaded := NewStore(storage, DefaultKey)
	reloaded.Load(ctx)
	if reloaded.Count() != 50 {
		t.Fatalf("persisted set lost writes: %d", reloaded.Count())
	}
}

func TestStore_WatchReloadsRemoteChanges(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	newRedisStore := func() *Store {
		storage, err := repository.NewRedisStorage("redis://" + mr.Addr())
		if err != nil {
			t.Fatalf("redis connect failed: %v", err)
		}
		t.Cleanup(func() { storage.Close() })
		s := NewStore(storage, DefaultKey)
		if err := s.Load(ctx); err != nil {
			t.Fatalf("load failed: %v", err)
		}
		return s
	}

	home := newRedisStore()
	favoritesView := newRedisStore()

	changed, unsubscribe := favoritesView.Subscribe()
	defer unsubscribe()

	if err := favoritesView.Watch(ctx); err != nil {
		t.Fatalf("watch failed: %v", err)
	}

	if _, err := home.Toggle(ctx, movie(550, "Fight Club")); err != nil {
		t.Fatalf("toggle failed: %v", err)
	}

	select {
	case <-changed:
	case <-time.After(3 * time.Second):
		t.Fatalf("remote change never reached the other store")
	}
	if !favoritesView.IsFavorite(550) {
		t.Fatalf("other store did not reload the favorite")
	}
}

func TestStore_WatchIgnoresOwnAnnouncements(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	storage, err := repository.NewRedisStorage("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("redis connect failed: %v", err)
	}
	defer storage.Close()

	s := NewStore(storage, DefaultKey)
	s.Load(ctx)
	if err := s.Watch(ctx); err != nil {
		t.Fatalf("watch failed: %v", err)
	}

	changed, unsubscribe := s.Subscribe()
	defer unsubscribe()

	s.Toggle(ctx, movie(1, "a"))
	<-changed // local notification

	select {
	case <-changed:
		t.Fatalf("own announcement triggered a second notification")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestStore_WatchWithoutBroadcasterIsNoop(t *testing.T) {
	s := NewStore(newMemStorage(), DefaultKey)
	if err := s.Watch(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
