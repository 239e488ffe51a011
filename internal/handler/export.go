package handler

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"time"

	"github.com/smartcost/backend/internal/model"
)

var exportHeader = []string{
	"Triggered At", "Level", "Type", "Threshold ID", "Title",
	"Current Cost", "Threshold Amount", "Percentage Over",
	"Service", "Resource Group", "Date",
}

// Export handles GET /api/v1/alerts/export and streams the evaluated alerts as CSV.
func (h *AlertHandler) Export(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.evaluateStored(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	filename := fmt.Sprintf("smartcost-alerts-%s-%s.csv",
		r.URL.Query().Get("subscription_id"), h.now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	_ = cw.Write(exportHeader)
	for _, a := range alerts {
		_ = cw.Write(exportRow(a))
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		h.logger.Warn("alert export interrupted", "error", err)
	}
}

func exportRow(a model.CostAlert) []string {
	day, _ := a.Metadata["date"].(string)
	return []string{
		a.TriggeredAt.Format(time.RFC3339),
		string(a.Level),
		string(a.Type),
		a.ThresholdID,
		a.Title,
		a.CurrentCost.StringFixed(2),
		a.ThresholdAmount.StringFixed(2),
		a.PercentageOver.StringFixed(2),
		a.ServiceName,
		a.ResourceGroup,
		day,
	}
}
