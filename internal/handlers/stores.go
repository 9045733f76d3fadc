package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/kosarica/store-service/internal/database"
	"github.com/kosarica/store-service/internal/format"
	"github.com/kosarica/store-service/internal/hours"
	"github.com/kosarica/store-service/internal/ranking"
	"github.com/kosarica/store-service/internal/stores"
	"github.com/kosarica/store-service/internal/telemetry"
)

// ============================================================================
// Store Ranking and Status Endpoints
// ============================================================================

// ListProductStoresRequest represents query parameters for ranking the stores of a product
type ListProductStoresRequest struct {
	Lat      *float64 `form:"lat" json:"lat,omitempty"`
	Lng      *float64 `form:"lng" json:"lng,omitempty"`
	RadiusKm float64  `form:"radiusKm" json:"radiusKm,omitempty" binding:"omitempty,gt=0"`
	At       string   `form:"at" json:"at,omitempty"`
}

// RankStoresRequest represents a stateless ranking request
type RankStoresRequest struct {
	Stores          []stores.Store   `json:"stores"`
	UserLocation    *stores.Location `json:"userLocation,omitempty"`
	Prices          map[string]int64 `json:"prices,omitempty"`
	CarriedStoreIDs []string         `json:"carriedStoreIds,omitempty"`
	At              string           `json:"at,omitempty"`
}

// ResolveStatusRequest represents a request to resolve opening hours
type ResolveStatusRequest struct {
	OpeningHours hours.OpeningHours `json:"openingHours"`
	At           string             `json:"at,omitempty"`
}

// DisplayFields holds the preformatted strings shown next to a store
type DisplayFields struct {
	Price    string `json:"price,omitempty"`
	Rating   string `json:"rating"`
	Distance string `json:"distance"`
}

// RankedStore is a store in ranked order with its figures and status
type RankedStore struct {
	stores.Store
	Rank             int           `json:"rank" jsonschema:"required"`
	DistanceKm       *float64      `json:"distanceKm"`
	LowestKnownPrice *int64        `json:"lowestKnownPrice"`
	HasPrice         bool          `json:"hasPrice" jsonschema:"required"`
	Status           hours.Status  `json:"status" jsonschema:"required"`
	Display          DisplayFields `json:"display" jsonschema:"required"`
}

// RankedStoresResponse represents a ranked store list
type RankedStoresResponse struct {
	ProductID string        `json:"productId,omitempty"`
	Stores    []RankedStore `json:"stores" jsonschema:"required"`
	Total     int           `json:"total" jsonschema:"required"`
	At        time.Time     `json:"at" jsonschema:"required"`
}

// StoreStatusResponse represents the resolved status of one store
type StoreStatusResponse struct {
	StoreID string       `json:"storeId,omitempty"`
	At      time.Time    `json:"at" jsonschema:"required"`
	Status  hours.Status `json:"status" jsonschema:"required"`
}

// ListProductStores ranks the stores carrying a product
// @Summary Rank stores for a product
// @Description Loads the stores carrying a product together with their lowest known prices, ranks them by price and distance, and resolves each store's opening status
// @Tags stores
// @Produce json
// @Param productId path string true "Product ID"
// @Param lat query number false "Shopper latitude" minimum(-90) maximum(90)
// @Param lng query number false "Shopper longitude" minimum(-180) maximum(180)
// @Param radiusKm query number false "Search radius in kilometers, at most the configured maximum; omitted means no radius filter. Stores without coordinates are always kept"
// @Param at query string false "RFC 3339 instant to resolve opening hours at; defaults to now"
// @Success 200 {object} RankedStoresResponse
// @Failure 400 {object} map[string]string "Bad request"
// @Failure 500 {object} map[string]string "Internal server error"
// @Failure 503 {object} map[string]string "Store data unavailable"
// @Router /internal/products/{productId}/stores [get]
func ListProductStores(c *gin.Context) {
	productID := c.Param("productId")
	if productID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "productId is required"})
		return
	}

	var req ListProductStoresRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if storeSource == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Store data not initialized"})
		return
	}

	userLocation, err := queryLocation(req.Lat, req.Lng)
	if err != nil {
		abortWithError(c, err)
		return
	}
	at, err := resolveAt(req.At)
	if err != nil {
		abortWithError(c, err)
		return
	}

	if req.RadiusKm > rankingConfig.MaxRadiusKm {
		abortWithError(c, ErrInvalidRequest{Field: "radiusKm", Reason: "exceeds the maximum search radius"})
		return
	}
	// Without an explicit radius every carrying store is ranked.
	filter := database.StoreFilter{}
	if userLocation != nil && req.RadiusKm > 0 {
		filter = database.StoreFilter{Center: userLocation, RadiusKm: req.RadiusKm}
	}

	ctx, span := telemetry.Tracer().Start(c.Request.Context(), "stores.LoadProductStores")
	span.SetAttributes(
		attribute.String("product.id", productID),
		attribute.Float64("filter.radius_km", filter.RadiusKm),
	)
	started := time.Now()
	data, err := storeSource.LoadProductStores(ctx, productID, filter)
	metrics.RecordStoreLookup(time.Since(started), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store lookup failed")
		span.End()
		abortWithError(c, err)
		return
	}
	span.SetAttributes(attribute.Int("stores.loaded", len(data.Stores)))
	span.End()

	ranked := rank("product", ranking.Query{
		Stores:       data.Stores,
		UserLocation: userLocation,
		Prices:       data.Prices,
		Carried:      data.Carried,
	}, at)

	c.JSON(http.StatusOK, RankedStoresResponse{
		ProductID: productID,
		Stores:    ranked,
		Total:     len(ranked),
		At:        at,
	})
}

// RankStores ranks a caller-supplied store list
// @Summary Rank a store list
// @Description Ranks the supplied stores: a store is kept when it is listed as carrying the product or has a price; a price lower by more than the tolerance wins, otherwise the nearer store, otherwise input order
// @Tags stores
// @Accept json
// @Produce json
// @Param request body RankStoresRequest true "Stores, prices in minor units and carried store IDs"
// @Success 200 {object} RankedStoresResponse
// @Failure 400 {object} map[string]string "Bad request"
// @Router /internal/stores/rank [post]
func RankStores(c *gin.Context) {
	var req RankStoresRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.UserLocation != nil {
		if err := req.UserLocation.Validate(); err != nil {
			abortWithError(c, err)
			return
		}
	}
	at, err := resolveAt(req.At)
	if err != nil {
		abortWithError(c, err)
		return
	}

	ranked := rank("request", ranking.Query{
		Stores:       req.Stores,
		UserLocation: req.UserLocation,
		Prices:       ranking.PriceIndex(req.Prices),
		Carried:      ranking.NewStoreSet(req.CarriedStoreIDs...),
	}, at)

	c.JSON(http.StatusOK, RankedStoresResponse{
		Stores: ranked,
		Total:  len(ranked),
		At:     at,
	})
}

// ResolveStatus resolves caller-supplied opening hours
// @Summary Resolve opening hours
// @Description Classifies opening hours (weekday object or free-text weekly schedule) as open, closed or unknown at the given instant
// @Tags stores
// @Accept json
// @Produce json
// @Param request body ResolveStatusRequest true "Opening hours and optional instant"
// @Success 200 {object} StoreStatusResponse
// @Failure 400 {object} map[string]string "Bad request"
// @Router /internal/stores/status [post]
func ResolveStatus(c *gin.Context) {
	var req ResolveStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	at, err := resolveAt(req.At)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, StoreStatusResponse{
		At:     at,
		Status: resolveStatus(req.OpeningHours.Schedule, at),
	})
}

// GetStoreStatus resolves the opening hours of a stored store
// @Summary Get store status
// @Description Loads a store and classifies its opening hours at the given instant
// @Tags stores
// @Produce json
// @Param storeId path string true "Store ID"
// @Param at query string false "RFC 3339 instant; defaults to now"
// @Success 200 {object} StoreStatusResponse
// @Failure 400 {object} map[string]string "Bad request"
// @Failure 404 {object} map[string]string "Store not found"
// @Failure 503 {object} map[string]string "Store data unavailable"
// @Router /internal/stores/{storeId}/status [get]
func GetStoreStatus(c *gin.Context) {
	storeID := c.Param("storeId")
	at, err := resolveAt(c.Query("at"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	if storeSource == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Store data not initialized"})
		return
	}

	ctx, span := telemetry.Tracer().Start(c.Request.Context(), "stores.GetStore")
	span.SetAttributes(attribute.String("store.id", storeID))
	started := time.Now()
	store, err := storeSource.GetStore(ctx, storeID)
	metrics.RecordStoreLookup(time.Since(started), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store lookup failed")
	}
	span.End()
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, StoreStatusResponse{
		StoreID: store.ID,
		At:      at,
		Status:  resolveStatus(store.OpeningHours.Schedule, at),
	})
}

// rank runs the ranker and decorates each result for display.
func rank(source string, q ranking.Query, at time.Time) []RankedStore {
	started := time.Now()
	ranked := storeRanker.Rank(q)
	metrics.RecordRanking(source, time.Since(started), len(ranked))

	out := make([]RankedStore, len(ranked))
	for i, r := range ranked {
		display := DisplayFields{
			Rating:   format.Rating(r.Rating),
			Distance: format.Distance(r.DistanceKm),
		}
		if r.HasPrice {
			display.Price = format.PriceCents(*r.LowestKnownPrice)
		}

		out[i] = RankedStore{
			Store:            r.Store,
			Rank:             i + 1,
			DistanceKm:       r.DistanceKm,
			LowestKnownPrice: r.LowestKnownPrice,
			HasPrice:         r.HasPrice,
			Status:           resolveStatus(r.OpeningHours.Schedule, at),
			Display:          display,
		}
	}
	return out
}

func resolveStatus(s hours.Schedule, at time.Time) hours.Status {
	status := hours.Resolve(s, at)
	metrics.RecordStatus(status.State)
	return status
}

// queryLocation builds the shopper location from optional query values.
// Both coordinates or neither must be given.
func queryLocation(lat, lng *float64) (*stores.Location, error) {
	switch {
	case lat == nil && lng == nil:
		return nil, nil
	case lat == nil:
		return nil, ErrInvalidRequest{Field: "lat", Reason: "is required with lng"}
	case lng == nil:
		return nil, ErrInvalidRequest{Field: "lng", Reason: "is required with lat"}
	}

	loc := &stores.Location{Latitude: *lat, Longitude: *lng}
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	return loc, nil
}
