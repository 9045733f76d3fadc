package database

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kosarica/store-service/internal/hours"
	"github.com/kosarica/store-service/internal/stores"
)

// setupStoreTestDB starts Postgres, applies the schema and returns a repository.
func setupStoreTestDB(t *testing.T) *StoreRepository {
	if testing.Short() {
		t.Skip("skipping repository test in short mode (requires Docker)")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err, "Failed to start postgres container")

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "Failed to get connection string")

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err, "Failed to create connection pool")

	t.Cleanup(func() {
		pool.Close()
		testcontainers.TerminateContainer(container)
	})

	require.NoError(t, Migrate(ctx, pool))
	require.NoError(t, Migrate(ctx, pool), "schema must apply twice")

	return NewStoreRepository(pool)
}

func seedStores(t *testing.T, repo *StoreRepository) {
	ctx := context.Background()
	phone := "+385 1 555 0100"
	rating := 4.4

	fixtures := []stores.Store{
		{
			ID: "konzum-ilica", Name: "Konzum Ilica", Brand: "Konzum", City: "Zagreb",
			Location: &stores.Location{Latitude: 45.8130, Longitude: 15.9650},
			Phone:    &phone, Rating: &rating,
			OpeningHours: hours.OpeningHours{Schedule: hours.Weekly{"monday": "07:00-21:00", "sunday": "Fermé"}},
		},
		{
			ID: "lidl-jarun", Name: "Lidl Jarun", Brand: "Lidl", City: "Zagreb",
			Location:     &stores.Location{Latitude: 45.7830, Longitude: 15.9200},
			OpeningHours: hours.OpeningHours{Schedule: hours.FreeText("Monday: 7:00 AM – 9:00 PM")},
		},
		{
			ID: "spar-split", Name: "Spar Split", Brand: "Spar", City: "Split",
			Location: &stores.Location{Latitude: 43.5081, Longitude: 16.4402},
		},
		{ID: "kiosk", Name: "Kiosk bez adrese"},
	}
	for _, s := range fixtures {
		require.NoError(t, repo.UpsertStore(ctx, s))
	}

	require.NoError(t, repo.MarkCarried(ctx, "milk", "konzum-ilica", "kiosk", "spar-split"))
	require.NoError(t, repo.MarkCarried(ctx, "milk", "konzum-ilica"))

	for _, p := range []PriceReport{
		{StoreID: "konzum-ilica", ProductID: "milk", PriceCents: 129},
		{StoreID: "konzum-ilica", ProductID: "milk", PriceCents: 119},
		{StoreID: "lidl-jarun", ProductID: "milk", PriceCents: 99},
		{StoreID: "spar-split", ProductID: "bread", PriceCents: 250},
	} {
		require.NoError(t, repo.RecordPrice(ctx, p))
	}
}

func TestStoreRepository(t *testing.T) {
	repo := setupStoreTestDB(t)
	seedStores(t, repo)
	ctx := context.Background()

	t.Run("get store round trips every field", func(t *testing.T) {
		s, err := repo.GetStore(ctx, "konzum-ilica")
		require.NoError(t, err)

		assert.Equal(t, "Konzum Ilica", s.Name)
		assert.Equal(t, "Konzum", s.Brand)
		require.NotNil(t, s.Location)
		assert.InDelta(t, 45.8130, s.Location.Latitude, 1e-9)
		require.NotNil(t, s.Phone)
		assert.Equal(t, "+385 1 555 0100", *s.Phone)
		require.NotNil(t, s.Rating)
		assert.Equal(t, 4.4, *s.Rating)
		assert.Equal(t, hours.Weekly{"monday": "07:00-21:00", "sunday": "Fermé"}, s.OpeningHours.Schedule)

		lidl, err := repo.GetStore(ctx, "lidl-jarun")
		require.NoError(t, err)
		assert.Equal(t, hours.FreeText("Monday: 7:00 AM – 9:00 PM"), lidl.OpeningHours.Schedule)

		kiosk, err := repo.GetStore(ctx, "kiosk")
		require.NoError(t, err)
		assert.Nil(t, kiosk.Location)
		assert.Nil(t, kiosk.OpeningHours.Schedule)
	})

	t.Run("missing store", func(t *testing.T) {
		_, err := repo.GetStore(ctx, "nope")
		assert.ErrorIs(t, err, ErrStoreNotFound)
	})

	t.Run("upsert replaces", func(t *testing.T) {
		s, err := repo.GetStore(ctx, "spar-split")
		require.NoError(t, err)
		s.Name = "Spar Split Centar"
		require.NoError(t, repo.UpsertStore(ctx, *s))

		again, err := repo.GetStore(ctx, "spar-split")
		require.NoError(t, err)
		assert.Equal(t, "Spar Split Centar", again.Name)
	})

	t.Run("list all", func(t *testing.T) {
		list, err := repo.ListStores(ctx, StoreFilter{})
		require.NoError(t, err)
		assert.Len(t, list, 4)
	})

	t.Run("list within radius", func(t *testing.T) {
		center := &stores.Location{Latitude: 45.8150, Longitude: 15.9819}
		list, err := repo.ListStores(ctx, StoreFilter{Center: center, RadiusKm: 10})
		require.NoError(t, err)

		ids := make([]string, len(list))
		for i, s := range list {
			ids[i] = s.ID
		}
		// kiosk has no coordinates and is kept; spar-split is in Split.
		assert.Equal(t, []string{"kiosk", "konzum-ilica", "lidl-jarun"}, ids)
	})

	t.Run("product lookups", func(t *testing.T) {
		result, err := repo.LoadProductStores(ctx, "milk", StoreFilter{})
		require.NoError(t, err)

		ids := make([]string, len(result.Stores))
		for i, s := range result.Stores {
			ids[i] = s.ID
		}
		assert.Equal(t, []string{"kiosk", "konzum-ilica", "lidl-jarun", "spar-split"}, ids)

		assert.Len(t, result.Carried, 3)
		assert.True(t, result.Carried.Has("kiosk"))
		assert.False(t, result.Carried.Has("lidl-jarun"))

		assert.Equal(t, int64(119), result.Prices["konzum-ilica"])
		assert.Equal(t, int64(99), result.Prices["lidl-jarun"])
		_, priced := result.Prices["spar-split"]
		assert.False(t, priced)
	})

	t.Run("unknown product", func(t *testing.T) {
		result, err := repo.LoadProductStores(ctx, "caviar", StoreFilter{})
		require.NoError(t, err)
		assert.Empty(t, result.Stores)
		assert.Empty(t, result.Carried)
		assert.Empty(t, result.Prices)
	})
}
