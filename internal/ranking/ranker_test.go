package ranking

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kosarica/store-service/internal/stores"
)

// store places a store on the equator at lon degrees east; 0.01° ≈ 1.11 km.
func store(id string, lon float64) stores.Store {
	return stores.Store{ID: id, Name: "Store " + id, Location: &stores.Location{Latitude: 0, Longitude: lon}}
}

func unlocated(id string) stores.Store {
	return stores.Store{ID: id, Name: "Store " + id}
}

var origin = &stores.Location{Latitude: 0, Longitude: 0}

func ids(ranked []RankableStore) []string {
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.ID
	}
	return out
}

func TestRankFiltersToCarryingStores(t *testing.T) {
	q := Query{
		Stores:  []stores.Store{store("a", 0.01), store("b", 0.02), store("c", 0.03), store("d", 0.04)},
		Prices:  PriceIndex{"b": 199},
		Carried: NewStoreSet("a", "b"),
	}

	ranked := Rank(q)
	assert.ElementsMatch(t, []string{"a", "b"}, ids(ranked))
}

func TestRankPriceIndexAloneIsEnough(t *testing.T) {
	q := Query{
		Stores: []stores.Store{store("a", 0.01), store("b", 0.02)},
		Prices: PriceIndex{"b": 250},
	}

	assert.Equal(t, []string{"b"}, ids(Rank(q)))
}

func TestRankEmptyInput(t *testing.T) {
	ranked := Rank(Query{})
	require.NotNil(t, ranked)
	assert.Empty(t, ranked)
}

func TestRankAnnotations(t *testing.T) {
	q := Query{
		Stores:       []stores.Store{store("free", 0.01), store("unpriced", 0.02), unlocated("nowhere")},
		UserLocation: origin,
		Prices:       PriceIndex{"free": 0, "nowhere": 120},
		Carried:      NewStoreSet("unpriced"),
	}

	byID := map[string]RankableStore{}
	for _, r := range Rank(q) {
		byID[r.ID] = r
	}

	free := byID["free"]
	assert.True(t, free.HasPrice, "a zero price still counts as a price")
	require.NotNil(t, free.LowestKnownPrice)
	assert.Equal(t, int64(0), *free.LowestKnownPrice)
	require.NotNil(t, free.DistanceKm)
	assert.InDelta(t, 1.11, *free.DistanceKm, 0.01)

	unpriced := byID["unpriced"]
	assert.False(t, unpriced.HasPrice)
	assert.Nil(t, unpriced.LowestKnownPrice)

	nowhere := byID["nowhere"]
	assert.Nil(t, nowhere.DistanceKm, "missing store coordinates must not become zero")
}

func TestRankZeroDistanceIsKnown(t *testing.T) {
	q := Query{
		Stores:       []stores.Store{unlocated("far"), store("here", 0)},
		UserLocation: origin,
		Carried:      NewStoreSet("far", "here"),
	}

	ranked := Rank(q)
	assert.Equal(t, []string{"here", "far"}, ids(ranked))
	require.NotNil(t, ranked[0].DistanceKm)
	assert.Equal(t, 0.0, *ranked[0].DistanceKm)
}

func TestRankCheaperWinsBeyondTolerance(t *testing.T) {
	q := Query{
		Stores:       []stores.Store{store("near-expensive", 0.01), store("far-cheap", 0.50)},
		UserLocation: origin,
		Prices:       PriceIndex{"near-expensive": 311, "far-cheap": 300},
	}

	assert.Equal(t, []string{"far-cheap", "near-expensive"}, ids(Rank(q)))
}

func TestRankNearerWinsWithinTolerance(t *testing.T) {
	q := Query{
		Stores:       []stores.Store{store("far-cheap", 0.50), store("near", 0.01)},
		UserLocation: origin,
		Prices:       PriceIndex{"far-cheap": 300, "near": 310},
	}

	// A 0.10 gap does not exceed the tolerance.
	assert.Equal(t, []string{"near", "far-cheap"}, ids(Rank(q)))
}

func TestRankMissingPriceFallsBackToDistance(t *testing.T) {
	q := Query{
		Stores:       []stores.Store{store("priced-far", 0.30), store("unpriced-near", 0.01)},
		UserLocation: origin,
		Prices:       PriceIndex{"priced-far": 100},
		Carried:      NewStoreSet("unpriced-near"),
	}

	assert.Equal(t, []string{"unpriced-near", "priced-far"}, ids(Rank(q)))
}

func TestRankWithoutPricesIsByDistanceUnknownLast(t *testing.T) {
	q := Query{
		Stores: []stores.Store{
			unlocated("x"),
			store("c", 0.03),
			store("a", 0.01),
			unlocated("y"),
			store("b", 0.02),
		},
		UserLocation: origin,
		Carried:      NewStoreSet("x", "a", "b", "c", "y"),
	}

	assert.Equal(t, []string{"a", "b", "c", "x", "y"}, ids(Rank(q)))
}

func TestRankWithoutLocationIsByPrice(t *testing.T) {
	q := Query{
		Stores: []stores.Store{store("a", 0.01), store("b", 0.02), store("c", 0.03), store("d", 0.04)},
		Prices: PriceIndex{"a": 500, "b": 120, "c": 300, "d": 125},
	}

	ranked := Rank(q)
	for _, r := range ranked {
		assert.Nil(t, r.DistanceKm)
	}
	// b and d are within tolerance of each other and keep input order.
	assert.Equal(t, []string{"b", "d", "c", "a"}, ids(ranked))
}

func TestRankWithNothingToCompareKeepsInputOrder(t *testing.T) {
	q := Query{
		Stores:  []stores.Store{unlocated("c"), unlocated("a"), unlocated("b")},
		Carried: NewStoreSet("a", "b", "c"),
	}

	assert.Equal(t, []string{"c", "a", "b"}, ids(Rank(q)))
}

func TestRankNeverPutsClearlyDearerStoreFirst(t *testing.T) {
	// Prices spaced well beyond the tolerance; distances deliberately reversed.
	q := Query{
		Stores: []stores.Store{
			store("p400", 0.01),
			store("p100", 0.40),
			store("p300", 0.02),
			store("p200", 0.30),
		},
		UserLocation: origin,
		Prices:       PriceIndex{"p100": 100, "p200": 200, "p300": 300, "p400": 400},
	}

	ranked := Rank(q)
	for i := range ranked {
		for j := i + 1; j < len(ranked); j++ {
			a, b := *ranked[i].LowestKnownPrice, *ranked[j].LowestKnownPrice
			assert.False(t, a-b > DefaultPriceToleranceCents,
				"%s ranked ahead of cheaper %s", ranked[i].ID, ranked[j].ID)
		}
	}
}

func TestRankToleranceChainKeepsCheapestAhead(t *testing.T) {
	// Neighbouring prices are within tolerance, the ends are not.
	q := Query{
		Stores: []stores.Store{
			store("p116", 0.01),
			store("p108", 0.05),
			store("p100", 0.10),
		},
		UserLocation: origin,
		Prices:       PriceIndex{"p116": 116, "p108": 108, "p100": 100},
	}

	assert.Equal(t, []string{"p108", "p100", "p116"}, ids(Rank(q)))
}

func TestRankToleranceChainNeverInvertsClearGap(t *testing.T) {
	prices := []int64{100, 108, 116, 124, 132, 105, 113, 121}
	var list []stores.Store
	index := PriceIndex{}
	for i, p := range prices {
		id := fmt.Sprintf("s%d", i)
		// The dearer a store, the nearer it is.
		list = append(list, store(id, 0.2-float64(p)/1000))
		index[id] = p
	}

	ranked := Rank(Query{Stores: list, UserLocation: origin, Prices: index})
	require.Len(t, ranked, len(prices))
	for i := range ranked {
		for j := i + 1; j < len(ranked); j++ {
			a, b := *ranked[i].LowestKnownPrice, *ranked[j].LowestKnownPrice
			assert.False(t, a-b > DefaultPriceToleranceCents,
				"%s (%d) ranked ahead of %s (%d)", ranked[i].ID, a, ranked[j].ID, b)
		}
	}
}

func TestRankCustomTolerance(t *testing.T) {
	q := Query{
		Stores:       []stores.Store{store("far", 0.50), store("near", 0.01)},
		UserLocation: origin,
		Prices:       PriceIndex{"far": 300, "near": 350},
	}

	assert.Equal(t, []string{"far", "near"}, ids(Rank(q)))
	assert.Equal(t, []string{"near", "far"}, ids(NewRanker(Config{PriceToleranceCents: 100}).Rank(q)))
}

func TestRankDoesNotModifyInput(t *testing.T) {
	input := []stores.Store{store("b", 0.02), store("a", 0.01)}
	q := Query{Stores: input, UserLocation: origin, Carried: NewStoreSet("a", "b")}

	Rank(q)
	assert.Equal(t, "b", input[0].ID)
	assert.Equal(t, "a", input[1].ID)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, Defaults().Validate())

	err := Config{PriceToleranceCents: -1, MaxRadiusKm: 10}.Validate()
	assert.EqualError(t, err, "price_tolerance_cents: must be non-negative")

	err = Config{PriceToleranceCents: 10}.Validate()
	assert.EqualError(t, err, "max_radius_km: must be positive")
}
