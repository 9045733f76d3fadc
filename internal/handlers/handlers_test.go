package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/kosarica/store-service/internal/database"
	"github.com/kosarica/store-service/internal/middleware"
	"github.com/kosarica/store-service/internal/preferences"
	"github.com/kosarica/store-service/internal/ranking"
	"github.com/kosarica/store-service/internal/stores"
)

const testAPIKey = "test-key"

// Monday 2025-01-06 10:00 in Zagreb.
var testNow = time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)

// fakeStoreSource serves fixed data through the radius filter and records
// the last filter it saw.
type fakeStoreSource struct {
	data       *database.ProductStores
	byID       map[string]stores.Store
	err        error
	lastFilter database.StoreFilter
	lastID     string
}

func (f *fakeStoreSource) LoadProductStores(_ context.Context, productID string, filter database.StoreFilter) (*database.ProductStores, error) {
	f.lastID = productID
	f.lastFilter = filter
	if f.err != nil {
		return nil, f.err
	}
	filtered := *f.data
	filtered.Stores = nil
	for _, s := range f.data.Stores {
		if filter.Matches(s.Location) {
			filtered.Stores = append(filtered.Stores, s)
		}
	}
	return &filtered, nil
}

func (f *fakeStoreSource) GetStore(_ context.Context, id string) (*stores.Store, error) {
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.byID[id]
	if !ok {
		return nil, database.ErrStoreNotFound
	}
	return &s, nil
}

func setupRouter(t *testing.T, source StoreSource, prefs preferences.Store) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	zagreb, err := time.LoadLocation("Europe/Zagreb")
	require.NoError(t, err)

	InitStores(source, StoreConfig{
		Ranking:  ranking.Defaults(),
		Location: zagreb,
		Now:      func() time.Time { return testNow },
	})
	InitPreferences(prefs, 3)
	t.Cleanup(func() {
		InitStores(nil, StoreConfig{Ranking: ranking.Defaults()})
		InitPreferences(nil, 0)
	})

	router := gin.New()
	RegisterRoutes(router, middleware.InternalAuthMiddleware(testAPIKey))
	return router
}

func request(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.RequestURI = path
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderInternalAPIKey, testAPIKey)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

var errBoom = errors.New("connection refused")

func newRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}

func mustField(t *testing.T, body []byte, field string) json.RawMessage {
	t.Helper()
	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &fields))
	raw, ok := fields[field]
	require.True(t, ok, "missing field %q in %s", field, body)
	return raw
}
