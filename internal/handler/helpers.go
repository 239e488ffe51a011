// Package handler implements the HTTP API.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/smartcost/backend/internal/apierrors"
	"github.com/smartcost/backend/internal/model"
)

const maxBodyBytes = 10 << 20

// writeJSON writes data in a successful envelope.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	apierrors.WriteSuccess(w, r, status, data, "")
}

// writeError writes err as an error envelope.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	apierrors.FromError(err).Write(w, r)
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apierrors.NewBadRequestError("request body is required")
		}
		return apierrors.NewBadRequestError("invalid request body", err.Error())
	}
	return nil
}

// dateRange reads start/end query parameters (YYYY-MM-DD). end defaults to
// today and start to lookbackDays before end, inclusive.
func dateRange(r *http.Request, now time.Time, lookbackDays int) (model.DateRange, error) {
	end := model.TruncateDay(now)
	if v := r.URL.Query().Get("end"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return model.DateRange{}, apierrors.NewBadRequestError("invalid end date", err.Error())
		}
		end = t.UTC()
	}

	start := end.AddDate(0, 0, -(lookbackDays - 1))
	if v := r.URL.Query().Get("start"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return model.DateRange{}, apierrors.NewBadRequestError("invalid start date", err.Error())
		}
		start = t.UTC()
	}

	if start.After(end) {
		return model.DateRange{}, apierrors.NewBadRequestError(
			fmt.Sprintf("start %s is after end %s", model.DayKey(start), model.DayKey(end)))
	}
	return model.DateRange{Start: start, End: end}, nil
}
