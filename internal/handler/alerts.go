package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/smartcost/backend/internal/alerting"
	"github.com/smartcost/backend/internal/apierrors"
	"github.com/smartcost/backend/internal/correlation"
	"github.com/smartcost/backend/internal/model"
)

// AlertEvaluator turns cost records into alerts.
type AlertEvaluator interface {
	EvaluateAlerts(ctx context.Context, records []model.CostRecord) ([]model.CostAlert, error)
}

// RecordSource lists stored cost records.
type RecordSource interface {
	ListByDateRange(ctx context.Context, filter model.CostFilter) ([]model.CostRecord, error)
}

// AlertHandler serves evaluated alerts.
type AlertHandler struct {
	engine       AlertEvaluator
	records      RecordSource
	lookbackDays int
	logger       *slog.Logger
	now          func() time.Time
}

// NewAlertHandler creates an AlertHandler.
func NewAlertHandler(engine AlertEvaluator, records RecordSource, lookbackDays int, logger *slog.Logger) *AlertHandler {
	if lookbackDays < 1 {
		lookbackDays = 8
	}
	return &AlertHandler{
		engine:       engine,
		records:      records,
		lookbackDays: lookbackDays,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// EvaluateRequest is the body of POST /alerts/evaluate.
type EvaluateRequest struct {
	Records []model.CostRecord `json:"records"`
}

// List handles GET /api/v1/alerts.
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.evaluateStored(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, alerts)
}

// Summary handles GET /api/v1/alerts/summary.
func (h *AlertHandler) Summary(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.evaluateStored(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, alerting.Summarize(alerts))
}

// Evaluate handles POST /api/v1/alerts/evaluate.
func (h *AlertHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	alerts, err := h.evaluate(r.Context(), req.Records)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, alerts)
}

func (h *AlertHandler) evaluateStored(r *http.Request) ([]model.CostAlert, error) {
	subscriptionID := r.URL.Query().Get("subscription_id")
	if subscriptionID == "" {
		return nil, apierrors.NewValidationError("subscription_id is required")
	}

	dr, err := dateRange(r, h.now(), h.lookbackDays)
	if err != nil {
		return nil, err
	}

	records, err := h.records.ListByDateRange(r.Context(), model.CostFilter{
		SubscriptionID: subscriptionID,
		DateRange:      dr,
	})
	if err != nil {
		correlation.Logger(r.Context(), h.logger).Error("failed to load cost records",
			"subscription", subscriptionID,
			"error", err,
		)
		return nil, apierrors.NewInternalError("Failed to evaluate alerts", err)
	}

	return h.evaluate(r.Context(), records)
}

func (h *AlertHandler) evaluate(ctx context.Context, records []model.CostRecord) ([]model.CostAlert, error) {
	alerts, err := h.engine.EvaluateAlerts(ctx, records)
	if errors.Is(err, alerting.ErrMalformedRecord) {
		return nil, apierrors.NewValidationError("invalid cost records", err.Error())
	}
	if err != nil {
		correlation.Logger(ctx, h.logger).Error("alert evaluation failed", "records", len(records), "error", err)
		return nil, apierrors.NewInternalError("Failed to evaluate alerts", err)
	}
	return alerts, nil
}
