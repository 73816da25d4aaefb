package handlers

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"itinerary-planner/internal/models"
	"itinerary-planner/internal/places"
)

// PlaceListResponse represents the recommendations response
type PlaceListResponse struct {
	Places  []places.Recommendation `json:"places"`
	Persona string                  `json:"persona,omitempty"`
	Total   int                     `json:"total"`
}

// HandleListPlaces handles GET /api/v1/places?persona=&near=lat,lng
func (h *Handler) HandleListPlaces(w http.ResponseWriter, r *http.Request) {
	persona := r.URL.Query().Get("persona")
	if persona != "" && !lo.Contains(places.Personas, persona) {
		h.handleValidationError(w, "Unknown persona")
		return
	}

	var near *models.Coordinates
	if v := r.URL.Query().Get("near"); v != "" {
		c, err := parseLatLng(v)
		if err != nil {
			h.handleValidationError(w, "near must be lat,lng")
			return
		}
		near = &c
	}

	log.Printf("[HTTP] GET /api/v1/places: persona=%s near=%v", persona, near != nil)
	recs := h.Recommender.Rank(r.Context(), persona, near)
	h.writeJSON(w, http.StatusOK, PlaceListResponse{
		Places:  recs,
		Persona: persona,
		Total:   len(recs),
	})
}

func parseLatLng(s string) (models.Coordinates, error) {
	latStr, lngStr, _ := strings.Cut(s, ",")
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return models.Coordinates{}, err
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil {
		return models.Coordinates{}, err
	}
	c := models.Coordinates{Lat: lat, Lng: lng}
	if !c.Valid() {
		return models.Coordinates{}, strconv.ErrRange
	}
	return c, nil
}

// HandleHealthCheck handles GET /api/v1/health
func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbStatus := "connected"

	if h.DB == nil {
		dbStatus = "memory"
	} else if err := h.DB.HealthCheck(r.Context()); err != nil {
		log.Printf("[ERROR] Health check failed: err=%v", err)
		status = "degraded"
		dbStatus = "error"
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":   status,
		"version":  "1.0.0",
		"database": dbStatus,
	})
}
