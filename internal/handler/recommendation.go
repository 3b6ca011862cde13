package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/smartpick/smartpick/internal/auth"
	"github.com/smartpick/smartpick/internal/handler/dto"
	"github.com/smartpick/smartpick/internal/service"
)

// RecommendationHandler handles HTTP requests for recommendation operations.
type RecommendationHandler struct {
	svc    *service.RecommendationService
	logger *slog.Logger
}

// NewRecommendationHandler creates a new RecommendationHandler.
func NewRecommendationHandler(svc *service.RecommendationService, logger *slog.Logger) *RecommendationHandler {
	return &RecommendationHandler{
		svc:    svc,
		logger: logger,
	}
}

// Create handles POST /recommendations.
func (h *RecommendationHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, fields, err := dto.DecodeRecommendation(r.Body)
	if err != nil {
		writeBodyError(w, err)
		return
	}

	rec, err := h.svc.Create(r.Context(), auth.IdentityFromContext(r.Context()), req.QueryID, fields)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("recommendation_created",
		"recommendation_id", rec.ID,
		"query_id", rec.QueryID,
	)

	writeJSON(w, http.StatusCreated, rec)
}

// List handles GET /recommendations?queryId=&userEmail=.
func (h *RecommendationHandler) List(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	recs, err := h.svc.List(r.Context(), service.ListFilter{
		QueryID:   params.Get("queryId"),
		UserEmail: params.Get("userEmail"),
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(recs))
}

// Delete handles DELETE /recommendations/{id}.
func (h *RecommendationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.svc.Delete(r.Context(), id, auth.EmailFromContext(r.Context())); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("recommendation_deleted", "recommendation_id", id)

	writeMessage(w, http.StatusOK, MsgRecommendationDeleted)
}

// ForUser handles GET /recommendationsForUser.
func (h *RecommendationHandler) ForUser(w http.ResponseWriter, r *http.Request) {
	recs, err := h.svc.ListForUser(r.Context(), auth.EmailFromContext(r.Context()))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(recs))
}

// handleServiceError maps service errors to HTTP responses.
func (h *RecommendationHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidID):
		writeMessage(w, http.StatusBadRequest, MsgInvalidID)
	case errors.Is(err, service.ErrInvalidInput):
		writeMessage(w, http.StatusBadRequest, "field 'queryId' is required")
	case errors.Is(err, service.ErrUnauthenticated):
		writeMessage(w, http.StatusUnauthorized, MsgUnauthorized)
	case errors.Is(err, service.ErrRecommendationNotFound):
		writeMessage(w, http.StatusNotFound, MsgRecommendationNotFound)
	case errors.Is(err, service.ErrForbidden):
		writeMessage(w, http.StatusForbidden, MsgNotYourRecommendation)
	default:
		h.logger.Error("recommendation request failed",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
		)
		writeMessage(w, http.StatusInternalServerError, err.Error())
	}
}
