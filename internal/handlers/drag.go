package handlers

import (
	"net/http"
)

type dragIndexRequest struct {
	Index *int `json:"index"`
}

func (h *Handler) decodeDragIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	var req dragIndexRequest
	if err := decodeBody(r, &req); err != nil {
		h.handleValidationError(w, err.Error())
		return 0, false
	}
	if req.Index == nil {
		h.handleValidationError(w, "index is required")
		return 0, false
	}
	return *req.Index, true
}

// HandleDragStart handles POST /api/v1/itineraries/{id}/drag/start
func (h *Handler) HandleDragStart(w http.ResponseWriter, r *http.Request) {
	index, ok := h.decodeDragIndex(w, r)
	if !ok {
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.DragStart(index); err != nil {
		h.handleError(w, err, nil)
		return
	}
	h.writeJSON(w, http.StatusOK, s.View())
}

// HandleDragOver handles POST /api/v1/itineraries/{id}/drag/over
func (h *Handler) HandleDragOver(w http.ResponseWriter, r *http.Request) {
	index, ok := h.decodeDragIndex(w, r)
	if !ok {
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.DragOver(index); err != nil {
		h.handleError(w, err, nil)
		return
	}
	h.writeJSON(w, http.StatusOK, s.View())
}

// HandleDragEnd handles POST /api/v1/itineraries/{id}/drag/end
func (h *Handler) HandleDragEnd(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if _, err := s.DragEnd(); err != nil {
		h.handleError(w, err, nil)
		return
	}
	h.respond(w, r, s, http.StatusOK)
}

// HandleDragCancel handles POST /api/v1/itineraries/{id}/drag/cancel
func (h *Handler) HandleDragCancel(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.DragCancel(); err != nil {
		h.handleError(w, err, nil)
		return
	}
	h.writeJSON(w, http.StatusOK, s.View())
}
