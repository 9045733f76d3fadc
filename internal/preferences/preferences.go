// Package preferences keeps per-user settings: the maps API key a shopper
// supplied and the list of their recent product searches.
package preferences

import (
	"context"
	"errors"
	"strings"
	"time"
)

// DefaultMaxRecentSearches caps the recent search list when no limit is configured.
const DefaultMaxRecentSearches = 10

var (
	// ErrEmptyUserID is returned when a store is called without a user ID.
	ErrEmptyUserID = errors.New("preferences: empty user id")
	// ErrConflict is returned when an update kept losing to concurrent writers.
	ErrConflict = errors.New("preferences: concurrent update conflict")
)

// RecentSearch is one product search a user ran.
type RecentSearch struct {
	Query      string    `json:"query"`
	SearchedAt time.Time `json:"searchedAt"`
}

// Preferences is everything stored for one user.
type Preferences struct {
	MapsAPIKey     string         `json:"mapsApiKey,omitempty"`
	RecentSearches []RecentSearch `json:"recentSearches"`
}

// AddRecentSearch records query as the newest search. A blank query is
// ignored, an earlier search differing only in case or surrounding space is
// replaced, and the list is cut to limit entries (DefaultMaxRecentSearches
// when limit is not positive). It reports whether the list changed.
func (p *Preferences) AddRecentSearch(query string, now time.Time, limit int) bool {
	query = strings.TrimSpace(query)
	if query == "" {
		return false
	}
	if limit <= 0 {
		limit = DefaultMaxRecentSearches
	}

	filtered := make([]RecentSearch, 0, len(p.RecentSearches)+1)
	filtered = append(filtered, RecentSearch{Query: query, SearchedAt: now.UTC()})
	for _, s := range p.RecentSearches {
		if !strings.EqualFold(strings.TrimSpace(s.Query), query) {
			filtered = append(filtered, s)
		}
	}
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}

	p.RecentSearches = filtered
	return true
}

// ClearRecentSearches drops the search history.
func (p *Preferences) ClearRecentSearches() {
	p.RecentSearches = []RecentSearch{}
}

// Store persists preferences by user ID. Loading an unknown user yields
// empty preferences rather than an error. Update applies mutate to the
// current value and stores the result atomically with respect to other
// updates of the same user; mutate may run more than once.
type Store interface {
	Load(ctx context.Context, userID string) (*Preferences, error)
	Save(ctx context.Context, userID string, prefs *Preferences) error
	Update(ctx context.Context, userID string, mutate func(*Preferences)) (*Preferences, error)
	Delete(ctx context.Context, userID string) error
}

func empty() *Preferences {
	return &Preferences{RecentSearches: []RecentSearch{}}
}
