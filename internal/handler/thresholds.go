package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/smartcost/backend/internal/apierrors"
	"github.com/smartcost/backend/internal/correlation"
	"github.com/smartcost/backend/internal/model"
	"github.com/smartcost/backend/internal/repository"
	"github.com/smartcost/backend/internal/threshold"
)

// ThresholdStore is the threshold persistence the handler needs for writes.
type ThresholdStore interface {
	threshold.Provider
	GetByID(ctx context.Context, id string) (*model.CostThreshold, error)
	Create(ctx context.Context, t *model.CostThreshold) error
	Update(ctx context.Context, t *model.CostThreshold) error
	Delete(ctx context.Context, id string) error
}

// ThresholdHandler serves the thresholds the alert engine evaluates. Writes
// are only accepted when that source is a ThresholdStore.
type ThresholdHandler struct {
	source threshold.Provider
	store  ThresholdStore
	logger *slog.Logger
}

// NewThresholdHandler creates a handler over the engine's threshold source.
func NewThresholdHandler(source threshold.Provider, logger *slog.Logger) *ThresholdHandler {
	store, _ := source.(ThresholdStore)
	return &ThresholdHandler{source: source, store: store, logger: logger}
}

func (h *ThresholdHandler) List(w http.ResponseWriter, r *http.Request) {
	thresholds, err := h.source.ListThresholds(r.Context())
	if err != nil {
		h.internal(w, r, "Failed to list thresholds", err)
		return
	}
	if thresholds == nil {
		thresholds = []model.CostThreshold{}
	}
	writeJSON(w, r, http.StatusOK, thresholds)
}

func (h *ThresholdHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, err := h.get(r.Context(), id)
	if err != nil {
		h.lookupFailed(w, r, id, err)
		return
	}
	writeJSON(w, r, http.StatusOK, t)
}

func (h *ThresholdHandler) get(ctx context.Context, id string) (*model.CostThreshold, error) {
	if h.store != nil {
		return h.store.GetByID(ctx, id)
	}
	all, err := h.source.ListThresholds(ctx)
	if err != nil {
		return nil, err
	}
	t, ok := lo.Find(all, func(t model.CostThreshold) bool { return t.ID == id })
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

// writable rejects writes with 409 when the source is read-only.
func (h *ThresholdHandler) writable(w http.ResponseWriter, r *http.Request) bool {
	if h.store == nil {
		apierrors.NewConflictError("thresholds are read-only: the configured threshold source does not accept changes").Write(w, r)
		return false
	}
	return true
}

func (h *ThresholdHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.writable(w, r) {
		return
	}

	var req model.ThresholdCreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := threshold.ValidateCreate(req); err != nil {
		apierrors.NewValidationError("invalid threshold", err.Error()).Write(w, r)
		return
	}

	t := threshold.FromCreateRequest(req)
	if err := h.store.Create(r.Context(), &t); err != nil {
		h.internal(w, r, "Failed to create threshold", err)
		return
	}

	correlation.Logger(r.Context(), h.logger).Info("threshold created", "threshold", t.ID, "scope", t.Scope())
	writeJSON(w, r, http.StatusCreated, t)
}

func (h *ThresholdHandler) Update(w http.ResponseWriter, r *http.Request) {
	if !h.writable(w, r) {
		return
	}
	id := chi.URLParam(r, "id")

	var req model.ThresholdUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	t, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		h.lookupFailed(w, r, id, err)
		return
	}

	req.Apply(t)
	if err := threshold.Validate(*t); err != nil {
		apierrors.NewValidationError("invalid threshold", err.Error()).Write(w, r)
		return
	}

	if err := h.store.Update(r.Context(), t); err != nil {
		h.lookupFailed(w, r, id, err)
		return
	}
	writeJSON(w, r, http.StatusOK, t)
}

func (h *ThresholdHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.writable(w, r) {
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.store.Delete(r.Context(), id); err != nil {
		h.lookupFailed(w, r, id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ThresholdHandler) lookupFailed(w http.ResponseWriter, r *http.Request, id string, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		apierrors.NewNotFoundError("threshold", id).Write(w, r)
		return
	}
	h.internal(w, r, "Failed to access threshold", err)
}

func (h *ThresholdHandler) internal(w http.ResponseWriter, r *http.Request, message string, err error) {
	correlation.Logger(r.Context(), h.logger).Error(message, "error", err)
	apierrors.NewInternalError(message, err).Write(w, r)
}
