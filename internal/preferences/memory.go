package preferences

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store, used when no Redis URL is configured.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]Preferences
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]Preferences)}
}

func (s *MemoryStore) Load(_ context.Context, userID string) (*Preferences, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	prefs, ok := s.users[userID]
	if !ok {
		return empty(), nil
	}
	return clone(prefs), nil
}

func (s *MemoryStore) Save(_ context.Context, userID string, prefs *Preferences) error {
	if userID == "" {
		return ErrEmptyUserID
	}
	if prefs == nil {
		prefs = empty()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = *clone(*prefs)
	return nil
}

func (s *MemoryStore) Update(_ context.Context, userID string, mutate func(*Preferences)) (*Preferences, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prefs := empty()
	if current, ok := s.users[userID]; ok {
		prefs = clone(current)
	}
	mutate(prefs)
	s.users[userID] = *clone(*prefs)
	return prefs, nil
}

func (s *MemoryStore) Delete(_ context.Context, userID string) error {
	if userID == "" {
		return ErrEmptyUserID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, userID)
	return nil
}

func clone(p Preferences) *Preferences {
	searches := make([]RecentSearch, len(p.RecentSearches))
	copy(searches, p.RecentSearches)
	return &Preferences{MapsAPIKey: p.MapsAPIKey, RecentSearches: searches}
}
