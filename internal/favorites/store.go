// Package favorites keeps the durable set of favorited movies and tells
// every open view when it changes.
package favorites

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"popcorn-grinder-service/internal/model"
	"popcorn-grinder-service/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultKey is the storage key of the persisted favorite set
const DefaultKey = "movie_app_favorites"

// ErrNotLoaded is returned by mutations until a Load has succeeded
var ErrNotLoaded = errors.New("favorites not loaded")

// Store is the favorite set: movie snapshots keyed by id, in the order they
// were added. Every mutation reads, modifies, persists and notifies under one
// lock.
type Store struct {
	storage repository.Storage
	key     string
	origin  string

	mu     sync.Mutex
	loaded bool
	items  []model.Movie
	index  map[int]int

	subMu  sync.Mutex
	subs   map[uint64]chan struct{}
	nextID uint64
}

// NewStore creates an empty store; call Load to read the persisted set
func NewStore(storage repository.Storage, key string) *Store {
	if key == "" {
		key = DefaultKey
	}
	return &Store{
		storage: storage,
		key:     key,
		origin:  uuid.NewString(),
		index:   map[int]int{},
		subs:    map[uint64]chan struct{}{},
	}
}

// Load reads the persisted set. An absent or malformed payload yields the
// empty set. A storage failure is returned and leaves the set in memory as
// it was; Toggle and Remove refuse to write until some Load succeeds.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

func (s *Store) loadLocked(ctx context.Context) error {
	raw, err := s.storage.Get(ctx, s.key)
	if err != nil {
		if !repository.IsNotFound(err) {
			return fmt.Errorf("failed to load favorites: %w", err)
		}
		raw = ""
	}

	var items []model.Movie
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			log.Warn().Err(err).Str("key", s.key).Msg("Malformed favorites payload, starting empty")
			items = nil
		}
	}
	s.replaceLocked(items)
	s.loaded = true
	return nil
}

// Toggle removes the movie if it is a favorite and adds the snapshot
// otherwise. It reports whether the movie is a favorite afterwards.
func (s *Store) Toggle(ctx context.Context, movie model.Movie) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return false, ErrNotLoaded
	}

	var next []model.Movie
	favorited := false
	if _, ok := s.index[movie.ID]; ok {
		next = s.withoutLocked(movie.ID)
	} else {
		next = append(append(make([]model.Movie, 0, len(s.items)+1), s.items...), movie)
		favorited = true
	}

	if err := s.commitLocked(ctx, next); err != nil {
		return !favorited, err
	}
	return favorited, nil
}

// Remove deletes a favorite by id. It reports whether anything was removed.
func (s *Store) Remove(ctx context.Context, id int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return false, ErrNotLoaded
	}

	if _, ok := s.index[id]; !ok {
		return false, nil
	}
	if err := s.commitLocked(ctx, s.withoutLocked(id)); err != nil {
		return false, err
	}
	return true, nil
}

// IsFavorite is a pure lookup
func (s *Store) IsFavorite(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.index[id]
	return ok
}

// List returns a copy of the favorites in insertion order
func (s *Store) List() []model.Movie {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Movie, len(s.items))
	copy(out, s.items)
	return out
}

// Count returns the number of favorites
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Subscribe registers for change notifications. The channel carries no data:
// receivers re-read the set with List. Bursts coalesce into one signal.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
	return ch, unsubscribe
}

// Watch subscribes to change announcements from other processes and reloads
// the set on each one until ctx ends. It returns once the subscription is
// live. Storages that cannot broadcast make it a no-op.
func (s *Store) Watch(ctx context.Context) error {
	b, ok := s.storage.(repository.Broadcaster)
	if !ok {
		return nil
	}
	changes, err := b.Subscribe(ctx, s.key)
	if err != nil {
		return err
	}

	log.Info().Str("key", s.key).Msg("👀 Watching favorites for remote changes")
	go func() {
		for origin := range changes {
			if origin == s.origin {
				continue
			}
			s.mu.Lock()
			err := s.loadLocked(ctx)
			s.mu.Unlock()
			if err != nil {
				log.Warn().Err(err).Msg("Failed to reload favorites after remote change, keeping current set")
				continue
			}
			log.Debug().Str("from", origin).Msg("Favorites reloaded after remote change")
			s.broadcast()
		}
	}()
	return nil
}

// commitLocked persists next and swaps it in. On failure nothing changes.
func (s *Store) commitLocked(ctx context.Context, next []model.Movie) error {
	if next == nil {
		next = []model.Movie{}
	}
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to marshal favorites: %w", err)
	}
	if err := s.storage.Set(ctx, s.key, string(data)); err != nil {
		return fmt.Errorf("failed to persist favorites: %w", err)
	}
	s.replaceLocked(next)

	if b, ok := s.storage.(repository.Broadcaster); ok {
		if err := b.Publish(ctx, s.key, s.origin); err != nil {
			log.Warn().Err(err).Msg("Failed to announce favorites change")
		}
	}
	s.broadcast()
	return nil
}

func (s *Store) withoutLocked(id int) []model.Movie {
	next := make([]model.Movie, 0, len(s.items))
	for _, m := range s.items {
		if m.ID != id {
			next = append(next, m)
		}
	}
	return next
}

func (s *Store) replaceLocked(items []model.Movie) {
	s.items = items
	s.index = make(map[int]int, len(items))
	for i, m := range items {
		s.index[m.ID] = i
	}
}

func (s *Store) broadcast() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
