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

// QueryHandler handles HTTP requests for query operations.
type QueryHandler struct {
	svc    *service.QueryService
	logger *slog.Logger
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(svc *service.QueryService, logger *slog.Logger) *QueryHandler {
	return &QueryHandler{
		svc:    svc,
		logger: logger,
	}
}

// Create handles POST /queries.
func (h *QueryHandler) Create(w http.ResponseWriter, r *http.Request) {
	fields, err := dto.DecodeFields(r.Body)
	if err != nil {
		writeBodyError(w, err)
		return
	}

	q, err := h.svc.Create(r.Context(), auth.IdentityFromContext(r.Context()), fields)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("query_created",
		"query_id", q.ID,
		"field_count", len(q.Fields),
	)

	writeJSON(w, http.StatusCreated, q)
}

// List handles GET /queries.
func (h *QueryHandler) List(w http.ResponseWriter, r *http.Request) {
	queries, err := h.svc.List(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(queries))
}

// Get handles GET /queries/{id}.
func (h *QueryHandler) Get(w http.ResponseWriter, r *http.Request) {
	q, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// Recommend handles PATCH /queries/{id}/recommend.
func (h *QueryHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	n, err := h.svc.Recommend(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("query_recommended", "query_id", id, "matched", n)

	writeJSON(w, http.StatusOK, dto.NewUpdateResult(n))
}

// Delete handles DELETE /queries/{id}.
func (h *QueryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.svc.Delete(r.Context(), id, auth.EmailFromContext(r.Context())); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("query_deleted", "query_id", id)

	writeMessage(w, http.StatusOK, MsgQueryDeleted)
}

// Top handles GET /top-queries.
func (h *QueryHandler) Top(w http.ResponseWriter, r *http.Request) {
	queries, err := h.svc.Top(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(queries))
}

// handleServiceError maps service errors to HTTP responses.
func (h *QueryHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidID):
		writeMessage(w, http.StatusBadRequest, MsgInvalidID)
	case errors.Is(err, service.ErrUnauthenticated):
		writeMessage(w, http.StatusUnauthorized, MsgUnauthorized)
	case errors.Is(err, service.ErrQueryNotFound):
		writeMessage(w, http.StatusNotFound, MsgQueryNotFound)
	case errors.Is(err, service.ErrForbidden):
		writeMessage(w, http.StatusForbidden, MsgNotYourQuery)
	default:
		h.logger.Error("query request failed",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
		)
		writeMessage(w, http.StatusInternalServerError, err.Error())
	}
}
