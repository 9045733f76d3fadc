package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/kosarica/store-service/internal/database"
	"github.com/kosarica/store-service/internal/preferences"
	"github.com/kosarica/store-service/internal/ranking"
	"github.com/kosarica/store-service/internal/stores"
)

// StoreSource is the read side of the store repository.
type StoreSource interface {
	LoadProductStores(ctx context.Context, productID string, filter database.StoreFilter) (*database.ProductStores, error)
	GetStore(ctx context.Context, id string) (*stores.Store, error)
}

// StoreConfig configures the store endpoints.
type StoreConfig struct {
	Ranking  ranking.Config
	Location *time.Location // zone the shopper's weekday and clock are read in
	Now      func() time.Time
}

// Global handler dependencies (initialized by the application)
var (
	storeSource       StoreSource
	storeRanker       = ranking.NewRanker(ranking.Defaults())
	rankingConfig     = ranking.Defaults()
	shopperLocation   = time.UTC
	now               = time.Now
	prefsStore        preferences.Store
	maxRecentSearches = preferences.DefaultMaxRecentSearches
	metrics           = NewMetricsRecorder()
)

// InitStores wires the store endpoints. A nil source leaves the stateless
// ranking and status endpoints working and the lookups answering 503.
func InitStores(source StoreSource, cfg StoreConfig) {
	storeSource = source
	rankingConfig = cfg.Ranking
	storeRanker = ranking.NewRanker(cfg.Ranking)

	shopperLocation = time.UTC
	if cfg.Location != nil {
		shopperLocation = cfg.Location
	}
	now = time.Now
	if cfg.Now != nil {
		now = cfg.Now
	}
}

// InitPreferences wires the preference endpoints.
func InitPreferences(store preferences.Store, maxRecent int) {
	prefsStore = store
	maxRecentSearches = maxRecent
	if maxRecentSearches <= 0 {
		maxRecentSearches = preferences.DefaultMaxRecentSearches
	}
}

// RegisterRoutes mounts the public routes on router and the service routes
// under /internal behind internalMiddleware.
func RegisterRoutes(router *gin.Engine, internalMiddleware ...gin.HandlerFunc) {
	router.GET("/health", HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	internal := router.Group("/internal")
	internal.Use(internalMiddleware...)
	{
		internal.GET("/health", HealthCheck)

		internal.GET("/products/:productId/stores", ListProductStores)

		storesGroup := internal.Group("/stores")
		{
			storesGroup.POST("/rank", RankStores)
			storesGroup.POST("/status", ResolveStatus)
			storesGroup.GET("/:storeId/status", GetStoreStatus)
		}

		prefs := internal.Group("/preferences/:userId")
		{
			prefs.GET("", GetPreferences)
			prefs.PUT("", UpdatePreferences)
			prefs.POST("/searches", AddRecentSearch)
			prefs.DELETE("/searches", ClearRecentSearches)
		}
	}
}

// resolveAt returns the instant a status is resolved for: raw parsed as
// RFC 3339 when given, otherwise the current time, in the shopper's zone.
func resolveAt(raw string) (time.Time, error) {
	if raw == "" {
		return now().In(shopperLocation), nil
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, ErrInvalidRequest{Field: "at", Reason: "must be an RFC 3339 timestamp"}
	}
	return at.In(shopperLocation), nil
}

// ErrInvalidRequest is returned when a request fails validation beyond binding.
type ErrInvalidRequest struct {
	Field  string
	Reason string
}

func (e ErrInvalidRequest) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// abortWithError maps err onto a status code and a JSON error body.
func abortWithError(c *gin.Context, err error) {
	var invalid ErrInvalidRequest
	var badLocation stores.ErrInvalidLocation
	switch {
	case errors.As(err, &invalid), errors.As(err, &badLocation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, database.ErrStoreNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, preferences.ErrEmptyUserID):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, preferences.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, preferences.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
