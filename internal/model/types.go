// Package model contains the core domain entities for SmartCost.
package model

import (
	"time"
)

// Currency represents monetary currency codes.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
)

// AlertLevel represents alert severity.
type AlertLevel string

const (
	AlertLevelInfo     AlertLevel = "Info"
	AlertLevelWarning  AlertLevel = "Warning"
	AlertLevelCritical AlertLevel = "Critical"
)

// Valid reports whether the level is one of the known levels.
func (l AlertLevel) Valid() bool {
	switch l {
	case AlertLevelInfo, AlertLevelWarning, AlertLevelCritical:
		return true
	}
	return false
}

// AlertType represents the rule family that produced an alert.
type AlertType string

const (
	AlertTypeDailyCostThreshold   AlertType = "DailyCostThreshold"
	AlertTypeMonthlyCostThreshold AlertType = "MonthlyCostThreshold"
	AlertTypeAnomalyCostSpike     AlertType = "AnomalyCostSpike"
	AlertTypeServiceCostIncrease  AlertType = "ServiceCostIncrease"
)

// Valid reports whether the type is one of the known alert types.
func (t AlertType) Valid() bool {
	switch t {
	case AlertTypeDailyCostThreshold, AlertTypeMonthlyCostThreshold,
		AlertTypeAnomalyCostSpike, AlertTypeServiceCostIncrease:
		return true
	}
	return false
}

// DateRange represents a time period.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the range, both ends inclusive.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// TruncateDay returns t as midnight UTC of the same calendar day.
func TruncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DayKey formats a day the way it is stored in alert metadata and exports.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
