package handlers

import (
	"log"
	"net/http"
	"strings"

	"itinerary-planner/internal/models"
)

// HandleAddWaypoint handles POST /api/v1/itineraries/{id}/waypoints
func (h *Handler) HandleAddWaypoint(w http.ResponseWriter, r *http.Request) {
	var req models.Coordinates
	if err := decodeBody(r, &req); err != nil {
		h.handleValidationError(w, err.Error())
		return
	}

	s, ok := h.session(w, r)
	if !ok {
		return
	}
	wp, err := s.AddWaypoint(req)
	if err != nil {
		h.handleError(w, err, nil)
		return
	}

	log.Printf("[HTTP] Waypoint added: id=%s waypoint=%s", s.ID(), wp.ID)
	h.respond(w, r, s, http.StatusCreated)
}

// HandleSearchWaypoint handles POST /api/v1/itineraries/{id}/waypoints/search
func (h *Handler) HandleSearchWaypoint(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.handleValidationError(w, err.Error())
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		h.handleValidationError(w, "query is required")
		return
	}

	s, ok := h.session(w, r)
	if !ok {
		return
	}
	log.Printf("[HTTP] POST /api/v1/itineraries/{id}/waypoints/search: id=%s query=%s", s.ID(), req.Query)

	if _, err := s.AddFromSearch(r.Context(), req.Query); err != nil {
		h.handleError(w, err, s.View())
		return
	}
	h.respond(w, r, s, http.StatusCreated)
}

// HandleAddPlace handles POST /api/v1/itineraries/{id}/places/{placeID}
func (h *Handler) HandleAddPlace(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	placeID := r.PathValue("placeID")
	if _, err := s.AddPlace(placeID); err != nil {
		h.handleError(w, err, nil)
		return
	}

	log.Printf("[HTTP] Place added: id=%s place=%s", s.ID(), placeID)
	h.respond(w, r, s, http.StatusCreated)
}

// HandleUpdateWaypoint handles PATCH /api/v1/itineraries/{id}/waypoints/{wid}
func (h *Handler) HandleUpdateWaypoint(w http.ResponseWriter, r *http.Request) {
	var patch models.WaypointPatch
	if err := decodeBody(r, &patch); err != nil {
		h.handleValidationError(w, err.Error())
		return
	}
	if patch.Empty() {
		h.handleValidationError(w, "Nothing to update")
		return
	}

	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if _, err := s.Update(r.PathValue("wid"), patch); err != nil {
		h.handleError(w, err, nil)
		return
	}
	h.respond(w, r, s, http.StatusOK)
}

// HandleRemoveWaypoint handles DELETE /api/v1/itineraries/{id}/waypoints/{wid}
func (h *Handler) HandleRemoveWaypoint(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	wid := r.PathValue("wid")
	if err := s.Remove(wid); err != nil {
		h.handleError(w, err, nil)
		return
	}

	log.Printf("[HTTP] Waypoint removed: id=%s waypoint=%s", s.ID(), wid)
	h.respond(w, r, s, http.StatusOK)
}

// HandleMoveWaypoint handles POST /api/v1/itineraries/{id}/waypoints/{wid}/move
func (h *Handler) HandleMoveWaypoint(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Direction string `json:"direction"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.handleValidationError(w, err.Error())
		return
	}
	if req.Direction != "up" && req.Direction != "down" {
		h.handleValidationError(w, "direction must be up or down")
		return
	}

	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Move(r.PathValue("wid"), req.Direction == "up"); err != nil {
		h.handleError(w, err, nil)
		return
	}
	h.respond(w, r, s, http.StatusOK)
}

// HandleReorder handles POST /api/v1/itineraries/{id}/reorder
func (h *Handler) HandleReorder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From *int `json:"from"`
		To   *int `json:"to"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.handleValidationError(w, err.Error())
		return
	}
	if req.From == nil || req.To == nil {
		h.handleValidationError(w, "from and to are required")
		return
	}

	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Reorder(*req.From, *req.To); err != nil {
		h.handleError(w, err, nil)
		return
	}
	h.respond(w, r, s, http.StatusOK)
}
