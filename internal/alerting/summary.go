package alerting

import (
	"github.com/samber/lo"

	"github.com/smartcost/backend/internal/model"
)

var levelRank = map[model.AlertLevel]int{
	model.AlertLevelInfo:     1,
	model.AlertLevelWarning:  2,
	model.AlertLevelCritical: 3,
}

// Summarize counts alerts by level and type for dashboards.
func Summarize(alerts []model.CostAlert) model.AlertSummary {
	summary := model.AlertSummary{
		TotalCount: len(alerts),
		ByType:     lo.CountValuesBy(alerts, func(a model.CostAlert) model.AlertType { return a.Type }),
	}

	for _, a := range alerts {
		switch a.Level {
		case model.AlertLevelInfo:
			summary.InfoCount++
		case model.AlertLevelWarning:
			summary.WarningCount++
		case model.AlertLevelCritical:
			summary.CriticalCount++
		}
		if levelRank[a.Level] > levelRank[summary.HighestLevel] {
			summary.HighestLevel = a.Level
		}
	}

	return summary
}
