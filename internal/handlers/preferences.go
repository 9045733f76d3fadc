package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kosarica/store-service/internal/preferences"
)

// ============================================================================
// Preference Endpoints
// ============================================================================

// UpdatePreferencesRequest represents a preferences update
type UpdatePreferencesRequest struct {
	MapsAPIKey *string `json:"mapsApiKey"`
}

// AddRecentSearchRequest represents a search to remember
type AddRecentSearchRequest struct {
	Query string `json:"query" binding:"required,max=200"`
}

// GetPreferences returns a user's preferences
// @Summary Get preferences
// @Description Returns the stored maps API key and recent searches; unknown users get empty preferences
// @Tags preferences
// @Produce json
// @Param userId path string true "User ID"
// @Success 200 {object} preferences.Preferences
// @Failure 500 {object} map[string]string "Internal server error"
// @Failure 503 {object} map[string]string "Preferences unavailable"
// @Router /internal/preferences/{userId} [get]
func GetPreferences(c *gin.Context) {
	if !preferencesReady(c) {
		return
	}

	prefs, err := prefsStore.Load(c.Request.Context(), c.Param("userId"))
	metrics.RecordPreferenceOperation("load", err)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, prefs)
}

// UpdatePreferences sets the user's maps API key
// @Summary Update preferences
// @Description Sets or clears the maps API key. Recent searches are kept.
// @Tags preferences
// @Accept json
// @Produce json
// @Param userId path string true "User ID"
// @Param request body UpdatePreferencesRequest true "Fields to change"
// @Success 200 {object} preferences.Preferences
// @Failure 400 {object} map[string]string "Bad request"
// @Failure 409 {object} map[string]string "Concurrent update conflict"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /internal/preferences/{userId} [put]
func UpdatePreferences(c *gin.Context) {
	var req UpdatePreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	update(c, "update", func(p *preferences.Preferences) {
		if req.MapsAPIKey != nil {
			p.MapsAPIKey = *req.MapsAPIKey
		}
	}, http.StatusOK)
}

// AddRecentSearch records a product search
// @Summary Add a recent search
// @Description Puts the query at the front of the user's recent searches, dropping an earlier duplicate and the oldest entry beyond the limit
// @Tags preferences
// @Accept json
// @Produce json
// @Param userId path string true "User ID"
// @Param request body AddRecentSearchRequest true "Search query"
// @Success 201 {object} preferences.Preferences
// @Failure 400 {object} map[string]string "Bad request"
// @Failure 409 {object} map[string]string "Concurrent update conflict"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /internal/preferences/{userId}/searches [post]
func AddRecentSearch(c *gin.Context) {
	var req AddRecentSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !preferencesReady(c) {
		return
	}

	at := now()
	update(c, "add_search", func(p *preferences.Preferences) {
		p.AddRecentSearch(req.Query, at, maxRecentSearches)
	}, http.StatusCreated)
}

// ClearRecentSearches forgets a user's searches
// @Summary Clear recent searches
// @Tags preferences
// @Produce json
// @Param userId path string true "User ID"
// @Success 200 {object} preferences.Preferences
// @Failure 409 {object} map[string]string "Concurrent update conflict"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /internal/preferences/{userId}/searches [delete]
func ClearRecentSearches(c *gin.Context) {
	update(c, "clear_searches", (*preferences.Preferences).ClearRecentSearches, http.StatusOK)
}

// update applies mutate to the preferences of the path user in one store update.
func update(c *gin.Context, operation string, mutate func(*preferences.Preferences), status int) {
	if !preferencesReady(c) {
		return
	}

	prefs, err := prefsStore.Update(c.Request.Context(), c.Param("userId"), mutate)
	metrics.RecordPreferenceOperation(operation, err)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(status, prefs)
}

func preferencesReady(c *gin.Context) bool {
	if prefsStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Preferences store not initialized"})
		return false
	}
	return true
}
