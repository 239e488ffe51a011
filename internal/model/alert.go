package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AnomalyDetectorID is the threshold ID carried by spike alerts.
const AnomalyDetectorID = "anomaly-detector"

// CostAlert is a triggered alert produced by one evaluation run. IDs are not
// stable across runs.
type CostAlert struct {
	ID              string          `json:"id"`
	ThresholdID     string          `json:"threshold_id"`
	Level           AlertLevel      `json:"level"`
	Type            AlertType       `json:"type"`
	Title           string          `json:"title"`
	Message         string          `json:"message"`
	CurrentCost     decimal.Decimal `json:"current_cost"`
	ThresholdAmount decimal.Decimal `json:"threshold_amount"`
	PercentageOver  decimal.Decimal `json:"percentage_over"`
	ResourceGroup   string          `json:"resource_group,omitempty"`
	ServiceName     string          `json:"service_name,omitempty"`
	TriggeredAt     time.Time       `json:"triggered_at"`
	IsResolved      bool            `json:"is_resolved"`
	Metadata        map[string]any  `json:"metadata,omitempty"`
}

// IsAnomaly reports whether the alert came from the spike detector.
func (a CostAlert) IsAnomaly() bool {
	return a.ThresholdID == AnomalyDetectorID
}

// AlertSummary provides dashboard counts over a set of alerts.
type AlertSummary struct {
	TotalCount    int               `json:"total_count"`
	InfoCount     int               `json:"info_count"`
	WarningCount  int               `json:"warning_count"`
	CriticalCount int               `json:"critical_count"`
	ByType        map[AlertType]int `json:"by_type"`
	HighestLevel  AlertLevel        `json:"highest_level,omitempty"`
}
