package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/smartcost/backend/internal/apierrors"
	"github.com/smartcost/backend/internal/jobs"
)

// JobRunner triggers registered background jobs.
type JobRunner interface {
	RunNow(name string) error
	ListJobs() []*jobs.Job
}

// JobHandler exposes the scheduler.
type JobHandler struct {
	runner JobRunner
}

func NewJobHandler(runner JobRunner) *JobHandler {
	return &JobHandler{runner: runner}
}

type jobInfo struct {
	Name     string `json:"name"`
	Schedule string `json:"schedule"`
}

func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	registered := h.runner.ListJobs()
	out := make([]jobInfo, 0, len(registered))
	for _, j := range registered {
		out = append(out, jobInfo{Name: j.Name, Schedule: j.Schedule})
	}
	writeJSON(w, r, http.StatusOK, out)
}

// Run handles POST /api/v1/jobs/{name}/run. The job runs in the background.
func (h *JobHandler) Run(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.runner.RunNow(name); err != nil {
		if errors.Is(err, jobs.ErrUnknownJob) {
			apierrors.NewNotFoundError("job", name).Write(w, r)
			return
		}
		apierrors.NewInternalError("Failed to start job", err).Write(w, r)
		return
	}
	apierrors.WriteSuccess(w, r, http.StatusAccepted, jobInfo{Name: name}, "job started")
}
