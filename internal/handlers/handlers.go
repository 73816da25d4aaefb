package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"itinerary-planner/internal/database"
	"itinerary-planner/internal/itinerary"
	"itinerary-planner/internal/models"
	"itinerary-planner/internal/places"
	"itinerary-planner/internal/planner"
	"itinerary-planner/internal/schedule"
)

// settleTimeout bounds how long a mutating request waits for its route
const settleTimeout = 20 * time.Second

// Handler provides common handler utilities and dependencies
type Handler struct {
	DB          database.DataStore
	Sessions    *planner.SessionStore
	Recommender *places.Recommender
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[ERROR] Failed to encode response: status=%d err=%v", status, err)
	}
}

// writeError writes a JSON error response
func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	h.writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// handleNotFound handles 404 errors
func (h *Handler) handleNotFound(w http.ResponseWriter, message string) {
	h.writeError(w, http.StatusNotFound, "NOT_FOUND", message, nil)
}

// handleValidationError handles 400 errors
func (h *Handler) handleValidationError(w http.ResponseWriter, message string) {
	h.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", message, nil)
}

// handleInternalError handles 500 errors
func (h *Handler) handleInternalError(w http.ResponseWriter, err error) {
	log.Printf("[ERROR] Internal error: %v", err)
	h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An error occurred. Please try again.", nil)
}

// handleError maps store, planner and upstream errors onto HTTP statuses.
// view, when set, is attached so the client can render the notice.
func (h *Handler) handleError(w http.ResponseWriter, err error, view *planner.View) {
	switch {
	case errors.Is(err, planner.ErrSessionNotFound):
		h.handleNotFound(w, "Itinerary not found")
		return
	case errors.Is(err, itinerary.ErrNotFound):
		h.handleNotFound(w, "Waypoint not found")
		return
	case errors.Is(err, places.ErrNotFound):
		h.handleNotFound(w, "Place not found")
		return
	case errors.Is(err, itinerary.ErrDragInProgress), errors.Is(err, itinerary.ErrNotDragging):
		h.writeError(w, http.StatusConflict, "DRAG_CONFLICT", err.Error(), nil)
		return
	case errors.Is(err, itinerary.ErrInvalidStay),
		errors.Is(err, itinerary.ErrInvalidCoordinates),
		errors.Is(err, itinerary.ErrMissingID),
		errors.Is(err, itinerary.ErrDuplicateID),
		errors.Is(err, schedule.ErrInvalidClock):
		h.handleValidationError(w, err.Error())
		return
	}

	kind := models.KindOf(err)
	details := map[string]interface{}{"kind": kind}
	if view != nil {
		details["itinerary"] = view
	}

	switch kind {
	case models.KindInsufficientPoints:
		h.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), details)
	case models.KindNotFound:
		h.writeError(w, http.StatusUnprocessableEntity, "GEOCODING_FAILED", err.Error(), details)
	case models.KindNoRoute, models.KindNoTripFound, models.KindMalformed:
		h.writeError(w, http.StatusUnprocessableEntity, "ROUTING_FAILED", err.Error(), details)
	case models.KindSolverBusy:
		h.writeError(w, http.StatusTooManyRequests, "SOLVER_BUSY", err.Error(), details)
	case models.KindNetwork:
		h.writeError(w, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", err.Error(), details)
	default:
		h.handleInternalError(w, err)
	}
}

// decodeBody decodes the JSON request body into v
func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.New("Invalid request body")
	}
	return nil
}

// session loads the itinerary named by the {id} path value, writing the
// error response itself when it can't.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*planner.Session, bool) {
	id := r.PathValue("id")
	s, err := h.Sessions.Get(r.Context(), id)
	if err != nil {
		if !errors.Is(err, planner.ErrSessionNotFound) {
			log.Printf("[ERROR] Failed to load itinerary: id=%s err=%v", id, err)
		}
		h.handleError(w, err, nil)
		return nil, false
	}
	return s, true
}

// settledView waits for the session's latest route request, bounded by the
// request context, then returns the view.
func (h *Handler) settledView(r *http.Request, s *planner.Session) *planner.View {
	ctx, cancel := context.WithTimeout(r.Context(), settleTimeout)
	defer cancel()
	if err := s.Settle(ctx); err != nil {
		log.Printf("[HTTP] Responding before route settled: id=%s err=%v", s.ID(), err)
	}
	return s.View()
}

// respond writes the settled view of s
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, s *planner.Session, status int) {
	h.writeJSON(w, status, h.settledView(r, s))
}
