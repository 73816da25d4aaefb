package handlers

import (
	"log"
	"net/http"
	"strconv"

	"itinerary-planner/internal/models"
)

// ItineraryListResponse represents the list response
type ItineraryListResponse struct {
	Itineraries []models.ItinerarySummary `json:"itineraries"`
	Total       int                       `json:"total"`
}

// HandleCreateItinerary handles POST /api/v1/itineraries
func (h *Handler) HandleCreateItinerary(w http.ResponseWriter, r *http.Request) {
	s, err := h.Sessions.Create(r.Context())
	if err != nil {
		log.Printf("[ERROR] Failed to create itinerary: err=%v", err)
		h.handleInternalError(w, err)
		return
	}

	log.Printf("[HTTP] Created itinerary: id=%s", s.ID())
	h.writeJSON(w, http.StatusCreated, s.View())
}

// HandleListItineraries handles GET /api/v1/itineraries
func (h *Handler) HandleListItineraries(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			h.handleValidationError(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	list, err := h.Sessions.List(r.Context(), limit)
	if err != nil {
		log.Printf("[ERROR] Failed to list itineraries: err=%v", err)
		h.handleInternalError(w, err)
		return
	}

	log.Printf("[HTTP] Listed itineraries: count=%d", len(list))
	h.writeJSON(w, http.StatusOK, ItineraryListResponse{
		Itineraries: list,
		Total:       len(list),
	})
}

// HandleGetItinerary handles GET /api/v1/itineraries/{id}
func (h *Handler) HandleGetItinerary(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, s.View())
}

// HandleDeleteItinerary handles DELETE /api/v1/itineraries/{id}
func (h *Handler) HandleDeleteItinerary(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.Sessions.Delete(r.Context(), id); err != nil {
		log.Printf("[HTTP] Delete itinerary failed: id=%s err=%v", id, err)
		h.handleError(w, err, nil)
		return
	}

	log.Printf("[HTTP] Deleted itinerary: id=%s", id)
	w.WriteHeader(http.StatusNoContent)
}

// HandleSetStartTime handles PUT /api/v1/itineraries/{id}/start-time
func (h *Handler) HandleSetStartTime(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StartTime string `json:"start_time"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.handleValidationError(w, err.Error())
		return
	}

	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.SetStartTime(req.StartTime); err != nil {
		h.handleError(w, err, nil)
		return
	}

	log.Printf("[HTTP] Start time set: id=%s start=%s", s.ID(), req.StartTime)
	h.writeJSON(w, http.StatusOK, s.View())
}

// HandleOptimize handles POST /api/v1/itineraries/{id}/optimize
func (h *Handler) HandleOptimize(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	if err := s.Optimize(r.Context()); err != nil {
		log.Printf("[HTTP] Optimize failed: id=%s err=%v", s.ID(), err)
		h.handleError(w, err, s.View())
		return
	}
	h.respond(w, r, s, http.StatusOK)
}

// HandleExportGeoJSON handles GET /api/v1/itineraries/{id}/route.geojson
func (h *Handler) HandleExportGeoJSON(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	fc := s.GeoJSON()
	data, err := fc.MarshalJSON()
	if err != nil {
		h.handleInternalError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("Content-Disposition", `attachment; filename="itinerary-`+s.ID()+`.geojson"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
