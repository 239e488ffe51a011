package alerting

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/smartcost/backend/internal/model"
)

func TestSummarize(t *testing.T) {
	alerts := []model.CostAlert{
		{Level: model.AlertLevelWarning, Type: model.AlertTypeDailyCostThreshold},
		{Level: model.AlertLevelCritical, Type: model.AlertTypeDailyCostThreshold},
		{Level: model.AlertLevelWarning, Type: model.AlertTypeAnomalyCostSpike},
		{Level: model.AlertLevelInfo, Type: model.AlertTypeMonthlyCostThreshold},
	}

	got := Summarize(alerts)

	assert.Equal(t, 4, got.TotalCount)
	assert.Equal(t, 1, got.InfoCount)
	assert.Equal(t, 2, got.WarningCount)
	assert.Equal(t, 1, got.CriticalCount)
	assert.Equal(t, model.AlertLevelCritical, got.HighestLevel)
	assert.Equal(t, map[model.AlertType]int{
		model.AlertTypeDailyCostThreshold:   2,
		model.AlertTypeAnomalyCostSpike:     1,
		model.AlertTypeMonthlyCostThreshold: 1,
	}, got.ByType)
}

func TestSummarize_Empty(t *testing.T) {
	got := Summarize(nil)
	assert.Zero(t, got.TotalCount)
	assert.Empty(t, got.HighestLevel)
	assert.Empty(t, got.ByType)
}
