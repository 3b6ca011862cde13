// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/smartpick/smartpick/internal/handler/dto"
)

// RootMessage is the liveness text served at GET /.
const RootMessage = "SmartPick Server is Running..."

// Response messages.
const (
	MsgInvalidID              = "invalid id"
	MsgUnauthorized           = "Unauthorized"
	MsgQueryNotFound          = "Query not found"
	MsgNotYourQuery           = "Forbidden: Not your query"
	MsgQueryDeleted           = "Query deleted successfully"
	MsgRecommendationNotFound = "Recommendation not found"
	MsgNotYourRecommendation  = "Forbidden: Not your recommendation"
	MsgRecommendationDeleted  = "Recommendation deleted successfully"
	MsgRequestBodyTooLarge    = "Request body too large"
	MsgResourceNotFound       = "resource not found"
	MsgMethodNotAllowed       = "method not allowed"
)

// Handler serves the routes that carry no domain state.
type Handler struct{}

// New creates a new Handler instance.
func New() *Handler {
	return &Handler{}
}

// Root handles GET /.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(RootMessage))
}

// NotFound handles 404 responses.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeMessage(w, http.StatusNotFound, MsgResourceNotFound)
}

// MethodNotAllowed handles 405 responses.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeMessage(w, http.StatusMethodNotAllowed, MsgMethodNotAllowed)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeMessage writes a {"message": msg} response.
func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, dto.MessageResponse{Message: msg})
}

// writeBodyError maps a request body decoding failure to a 4xx response.
func writeBodyError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeMessage(w, http.StatusRequestEntityTooLarge, MsgRequestBodyTooLarge)
		return
	}
	writeMessage(w, http.StatusBadRequest, err.Error())
}

// nonNil returns an empty slice for nil so lists encode as [].
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
