package handler

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcost/backend/internal/alerting"
	"github.com/smartcost/backend/internal/jobs"
	"github.com/smartcost/backend/internal/model"
	"github.com/smartcost/backend/internal/repository"
	"github.com/smartcost/backend/internal/threshold"
)

var testNow = time.Date(2024, 3, 8, 9, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Message   string          `json:"message"`
	Errors    []string        `json:"errors"`
	Timestamp time.Time       `json:"timestamp"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

type fakeRecords struct {
	records []model.CostRecord
	err     error
	got     model.CostFilter
}

func (f *fakeRecords) ListByDateRange(_ context.Context, filter model.CostFilter) ([]model.CostRecord, error) {
	f.got = filter
	return f.records, f.err
}

type memThresholds struct {
	mu    sync.Mutex
	items map[string]model.CostThreshold
}

func newMemThresholds(ts ...model.CostThreshold) *memThresholds {
	m := &memThresholds{items: map[string]model.CostThreshold{}}
	for _, t := range ts {
		m.items[t.ID] = t
	}
	return m
}

func (m *memThresholds) ListThresholds(context.Context) ([]model.CostThreshold, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.CostThreshold, 0, len(m.items))
	for _, t := range m.items {
		out = append(out, t)
	}
	return out, nil
}

func (m *memThresholds) GetByID(_ context.Context, id string) (*model.CostThreshold, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("threshold %q: %w", id, repository.ErrNotFound)
	}
	return &t, nil
}

func (m *memThresholds) Create(_ context.Context, t *model.CostThreshold) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[t.ID] = *t
	return nil
}

func (m *memThresholds) Update(_ context.Context, t *model.CostThreshold) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[t.ID]; !ok {
		return repository.ErrNotFound
	}
	m.items[t.ID] = *t
	return nil
}

func (m *memThresholds) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

type fakeRunner struct {
	ran []string
}

func (f *fakeRunner) RunNow(name string) error {
	if name != "alert-evaluation" {
		return fmt.Errorf("%w: %s", jobs.ErrUnknownJob, name)
	}
	f.ran = append(f.ran, name)
	return nil
}

func (f *fakeRunner) ListJobs() []*jobs.Job {
	return []*jobs.Job{{Name: "alert-evaluation", Schedule: "0 30 * * * *"}}
}

func newRouter(records *fakeRecords, store threshold.Provider, runner *fakeRunner) http.Handler {
	engine := alerting.NewEngine(threshold.NewStaticProvider(threshold.DefaultThresholds()), discardLogger())
	alerts := NewAlertHandler(engine, records, 8, discardLogger())
	alerts.now = func() time.Time { return testNow }
	thresholds := NewThresholdHandler(store, discardLogger())
	jobHandler := NewJobHandler(runner)

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/alerts", alerts.List)
		r.Post("/alerts/evaluate", alerts.Evaluate)
		r.Get("/alerts/summary", alerts.Summary)
		r.Get("/alerts/export", alerts.Export)

		r.Get("/thresholds", thresholds.List)
		r.Post("/thresholds", thresholds.Create)
		r.Get("/thresholds/{id}", thresholds.Get)
		r.Put("/thresholds/{id}", thresholds.Update)
		r.Delete("/thresholds/{id}", thresholds.Delete)

		r.Get("/jobs", jobHandler.List)
		r.Post("/jobs/{name}/run", jobHandler.Run)
	})
	return r
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func storedRecords() []model.CostRecord {
	day := model.TruncateDay(testNow)
	return []model.CostRecord{
		model.NewCostRecord("sub-1", day, decimal.NewFromInt(350), "rg-production", "Storage"),
		model.NewCostRecord("sub-1", day, decimal.NewFromInt(300), "rg-dev", "Virtual Machines"),
	}
}

func TestAlertHandler_List(t *testing.T) {
	records := &fakeRecords{records: storedRecords()}
	h := newRouter(records, newMemThresholds(), &fakeRunner{})

	rec := do(h, http.MethodGet, "/api/v1/alerts?subscription_id=sub-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)

	var alerts []model.CostAlert
	require.NoError(t, json.Unmarshal(env.Data, &alerts))
	ids := make([]string, 0, len(alerts))
	for _, a := range alerts {
		ids = append(ids, a.ThresholdID)
	}
	assert.ElementsMatch(t, []string{
		"daily-global-warning", "daily-global-critical", "service-vm-warning", "rg-production-critical",
	}, ids)

	assert.Equal(t, "sub-1", records.got.SubscriptionID)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), records.got.DateRange.Start)
	assert.Equal(t, time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC), records.got.DateRange.End)
}

func TestAlertHandler_ListErrors(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		records    *fakeRecords
		wantStatus int
		wantErrors []string
	}{
		{
			name:       "missing subscription",
			target:     "/api/v1/alerts",
			records:    &fakeRecords{},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bad date",
			target:     "/api/v1/alerts?subscription_id=sub-1&start=03/01/2024",
			records:    &fakeRecords{},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "start after end",
			target:     "/api/v1/alerts?subscription_id=sub-1&start=2024-03-09&end=2024-03-01",
			records:    &fakeRecords{},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "record source failure",
			target:     "/api/v1/alerts?subscription_id=sub-1",
			records:    &fakeRecords{err: errors.New("connection refused")},
			wantStatus: http.StatusInternalServerError,
			wantErrors: []string{"connection refused"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(newRouter(tt.records, newMemThresholds(), &fakeRunner{}), http.MethodGet, tt.target, "")
			assert.Equal(t, tt.wantStatus, rec.Code)

			env := decodeEnvelope(t, rec)
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Message)
			if tt.wantErrors != nil {
				assert.Equal(t, tt.wantErrors, env.Errors)
			}
		})
	}
}

func TestAlertHandler_Evaluate(t *testing.T) {
	h := newRouter(&fakeRecords{}, newMemThresholds(), &fakeRunner{})

	body := `{"records":[
		{"subscription_id":"sub-1","date":"2024-03-08T00:00:00Z","total_cost":"150.00","resource_group":"rg-dev","service_name":"Storage"}
	]}`
	rec := do(h, http.MethodPost, "/api/v1/alerts/evaluate", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var alerts []model.CostAlert
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &alerts))
	require.Len(t, alerts, 1)
	assert.Equal(t, "daily-global-warning", alerts[0].ThresholdID)
	assert.Equal(t, "50.00", alerts[0].PercentageOver.StringFixed(2))
}

func TestAlertHandler_EvaluateEmptyRecords(t *testing.T) {
	h := newRouter(&fakeRecords{}, newMemThresholds(), &fakeRunner{})

	rec := do(h, http.MethodPost, "/api/v1/alerts/evaluate", `{"records":[]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(decodeEnvelope(t, rec).Data))
}

func TestAlertHandler_EvaluateRejectsBadInput(t *testing.T) {
	h := newRouter(&fakeRecords{}, newMemThresholds(), &fakeRunner{})

	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `{records`},
		{name: "unknown field", body: `{"rows":[]}`},
		{name: "negative cost", body: `{"records":[{"date":"2024-03-08T00:00:00Z","total_cost":"-5"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(h, http.MethodPost, "/api/v1/alerts/evaluate", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.False(t, decodeEnvelope(t, rec).Success)
		})
	}
}

func TestAlertHandler_Summary(t *testing.T) {
	h := newRouter(&fakeRecords{records: storedRecords()}, newMemThresholds(), &fakeRunner{})

	rec := do(h, http.MethodGet, "/api/v1/alerts/summary?subscription_id=sub-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var summary model.AlertSummary
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &summary))
	assert.Equal(t, 4, summary.TotalCount)
	assert.Equal(t, 2, summary.CriticalCount)
	assert.Equal(t, 2, summary.WarningCount)
	assert.Equal(t, model.AlertLevelCritical, summary.HighestLevel)
}

func TestAlertHandler_Export(t *testing.T) {
	h := newRouter(&fakeRecords{records: storedRecords()}, newMemThresholds(), &fakeRunner{})

	rec := do(h, http.MethodGet, "/api/v1/alerts/export?subscription_id=sub-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "smartcost-alerts-sub-1-2024-03-08.csv")

	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, exportHeader, rows[0])
	assert.Equal(t, "2024-03-08", rows[1][10])
}

func TestThresholdHandler_CRUD(t *testing.T) {
	store := newMemThresholds(threshold.DefaultThresholds()...)
	h := newRouter(&fakeRecords{}, store, &fakeRunner{})

	rec := do(h, http.MethodGet, "/api/v1/thresholds", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []model.CostThreshold
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &listed))
	assert.Len(t, listed, 5)

	rec = do(h, http.MethodPost, "/api/v1/thresholds",
		`{"name":"Storage spend","service_name":"Storage","amount":"75","alert_level":"Warning"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created model.CostThreshold
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &created))
	assert.NotEmpty(t, created.ID)
	assert.True(t, created.IsEnabled)
	assert.Equal(t, model.AlertTypeDailyCostThreshold, created.AlertType)

	rec = do(h, http.MethodPut, "/api/v1/thresholds/"+created.ID, `{"amount":"90","is_enabled":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	stored, err := store.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(90).Equal(stored.Amount))
	assert.False(t, stored.IsEnabled)

	rec = do(h, http.MethodPut, "/api/v1/thresholds/"+created.ID, `{"amount":"0"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodDelete, "/api/v1/thresholds/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(h, http.MethodGet, "/api/v1/thresholds/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestThresholdHandler_ReadOnlySource(t *testing.T) {
	source := threshold.NewStaticProvider(threshold.DefaultThresholds())
	h := newRouter(&fakeRecords{}, source, &fakeRunner{})

	rec := do(h, http.MethodGet, "/api/v1/thresholds", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []model.CostThreshold
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &listed))
	assert.Len(t, listed, len(threshold.DefaultThresholds()))

	rec = do(h, http.MethodGet, "/api/v1/thresholds/daily-global-warning", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got model.CostThreshold
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &got))
	assert.Equal(t, "daily-global-warning", got.ID)

	rec = do(h, http.MethodGet, "/api/v1/thresholds/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	writes := []struct {
		method string
		target string
		body   string
	}{
		{http.MethodPost, "/api/v1/thresholds", `{"name":"x","amount":"10","alert_level":"Info"}`},
		{http.MethodPut, "/api/v1/thresholds/daily-global-warning", `{"amount":"90"}`},
		{http.MethodDelete, "/api/v1/thresholds/daily-global-warning", ""},
	}
	for _, w := range writes {
		t.Run(w.method, func(t *testing.T) {
			rec := do(h, w.method, w.target, w.body)
			assert.Equal(t, http.StatusConflict, rec.Code)
			assert.False(t, decodeEnvelope(t, rec).Success)
		})
	}

	current, err := source.ListThresholds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, threshold.DefaultThresholds()[0].Amount.String(), current[0].Amount.String())
}

func TestThresholdHandler_CreateValidation(t *testing.T) {
	h := newRouter(&fakeRecords{}, newMemThresholds(), &fakeRunner{})

	tests := []struct {
		name string
		body string
	}{
		{name: "missing name", body: `{"amount":"10","alert_level":"Warning"}`},
		{name: "zero amount", body: `{"name":"x","amount":"0","alert_level":"Warning"}`},
		{name: "bad level", body: `{"name":"x","amount":"10","alert_level":"Severe"}`},
		{name: "bad type", body: `{"name":"x","amount":"10","alert_level":"Info","alert_type":"Weekly"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(h, http.MethodPost, "/api/v1/thresholds", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			env := decodeEnvelope(t, rec)
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Errors)
		})
	}
}

func TestJobHandler(t *testing.T) {
	runner := &fakeRunner{}
	h := newRouter(&fakeRecords{}, newMemThresholds(), runner)

	rec := do(h, http.MethodPost, "/api/v1/jobs/alert-evaluation/run", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"alert-evaluation"}, runner.ran)

	rec = do(h, http.MethodPost, "/api/v1/jobs/nope/run", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(h, http.MethodGet, "/api/v1/jobs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"name":"alert-evaluation","schedule":"0 30 * * * *"}]`, string(decodeEnvelope(t, rec).Data))
}
