// Package ranking orders the stores that carry a product by lowest known
// price and then by distance from the shopper.
package ranking

import "github.com/kosarica/store-service/internal/stores"

// PriceIndex maps a store ID to the lowest known price of one product at
// that store, in minor currency units.
type PriceIndex map[string]int64

// StoreSet is the set of store IDs known to carry a product.
type StoreSet map[string]struct{}

// NewStoreSet builds a StoreSet from ids.
func NewStoreSet(ids ...string) StoreSet {
	set := make(StoreSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Has reports whether id is in the set.
func (s StoreSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Query is the input to a ranking pass.
type Query struct {
	Stores       []stores.Store
	UserLocation *stores.Location // nil when the shopper's position is unknown
	Prices       PriceIndex
	Carried      StoreSet
}

// RankableStore is a store annotated with the figures it was ranked by.
type RankableStore struct {
	stores.Store
	DistanceKm       *float64 // nil when either location is unknown
	LowestKnownPrice *int64   // nil when no price is known
	HasPrice         bool
}

// Ranker ranks stores using a fixed price tolerance.
type Ranker struct {
	toleranceCents int64
}

// NewRanker creates a ranker from cfg. A negative tolerance is treated as zero.
func NewRanker(cfg Config) *Ranker {
	tolerance := cfg.PriceToleranceCents
	if tolerance < 0 {
		tolerance = 0
	}
	return &Ranker{toleranceCents: tolerance}
}

// Rank ranks q with the default configuration.
func Rank(q Query) []RankableStore {
	return NewRanker(Defaults()).Rank(q)
}

// Rank keeps the stores that carry the product (listed in q.Carried or
// priced in q.Prices), annotates them and sorts them: a clearly cheaper
// price wins, then the nearer store, then input order. Nothing is dropped
// beyond the carry filter.
func (r *Ranker) Rank(q Query) []RankableStore {
	ranked := make([]RankableStore, 0, len(q.Stores))
	for _, s := range q.Stores {
		price, priced := q.Prices[s.ID]
		if !priced && !q.Carried.Has(s.ID) {
			continue
		}

		rs := RankableStore{
			Store:      s,
			HasPrice:   priced,
			DistanceKm: DistanceKm(q.UserLocation, s.Location),
		}
		if priced {
			rs.LowestKnownPrice = &price
		}
		ranked = append(ranked, rs)
	}

	return r.order(ranked)
}

// order repeatedly takes, among the remaining stores that no other remaining
// store undercuts by more than the tolerance, the nearest one (unknown
// distance last, then input order). A store is therefore never placed ahead
// of one that is clearly cheaper, even when the pairwise rule forms a cycle
// such as 100/108/116.
func (r *Ranker) order(remaining []RankableStore) []RankableStore {
	result := make([]RankableStore, 0, len(remaining))
	for len(remaining) > 0 {
		var floor *int64
		for i := range remaining {
			if p := remaining[i].LowestKnownPrice; p != nil && (floor == nil || *p < *floor) {
				floor = p
			}
		}

		best := -1
		for i := range remaining {
			if r.undercut(&remaining[i], floor) {
				continue
			}
			if best < 0 || nearer(&remaining[i], &remaining[best]) {
				best = i
			}
		}

		result = append(result, remaining[best])
		remaining = append(remaining[:best], remaining[best+1:]...)
	}
	return result
}

// undercut reports whether some remaining store is priced more than the
// tolerance below s. floor is the lowest remaining price.
func (r *Ranker) undercut(s *RankableStore, floor *int64) bool {
	if !s.HasPrice || floor == nil {
		return false
	}
	return *s.LowestKnownPrice-*floor > r.toleranceCents
}

// nearer orders by distance with unknown distances last. Equal distances
// are not nearer, so the earlier store keeps its place.
func nearer(a, b *RankableStore) bool {
	switch {
	case a.DistanceKm != nil && b.DistanceKm != nil:
		return *a.DistanceKm < *b.DistanceKm
	case a.DistanceKm != nil:
		return true
	default:
		return false
	}
}
