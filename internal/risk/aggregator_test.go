package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/your-org/aedes/internal/models"
)

func TestIntensity(t *testing.T) {
	tests := []struct {
		name string
		ra   models.RiskAssessment
		want float64
	}{
		{
			name: "score only",
			ra:   models.RiskAssessment{RiskScore: 0.4},
			want: 0.4,
		},
		{
			name: "volume boost capped",
			ra:   models.RiskAssessment{RiskScore: 0.5, TotalDetections: 20, HighRiskCount: 10},
			want: 1.0, // 0.5 + 0.30 + 0.20, clamped
		},
		{
			name: "partial boosts",
			ra:   models.RiskAssessment{RiskScore: 0.2, TotalDetections: 2, HighRiskCount: 1},
			want: 0.2 + 0.2 + 0.2,
		},
		{
			name: "zero everything",
			ra:   models.RiskAssessment{},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Intensity(tt.ra), 1e-9)
		})
	}
}

func TestIntensityStaysInUnitInterval(t *testing.T) {
	extremes := []models.RiskAssessment{
		{RiskScore: 5.0, TotalDetections: 1000, HighRiskCount: 500},
		{RiskScore: -3.0},
		{RiskScore: 0.99, TotalDetections: 9, HighRiskCount: 4},
		{RiskScore: 1.0, TotalDetections: 1, HighRiskCount: 0},
	}

	for _, ra := range extremes {
		got := Intensity(ra)
		assert.GreaterOrEqual(t, got, 0.0, "assessment %+v", ra)
		assert.LessOrEqual(t, got, 1.0, "assessment %+v", ra)
	}
}

func TestSummarizeCountsSumToTotal(t *testing.T) {
	statuses := []models.BatchStatus{
		models.BatchPending,
		models.BatchPending,
		models.BatchProcessing,
		models.BatchCompleted,
		models.BatchCompleted,
		models.BatchCompleted,
		models.BatchFailed,
	}

	s := Summarize(statuses)

	assert.Equal(t, 2, s.Pending)
	assert.Equal(t, 1, s.Processing)
	assert.Equal(t, 3, s.Completed)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, len(statuses), s.Total)
	assert.Equal(t, s.Total, s.Pending+s.Processing+s.Completed+s.Failed)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	assert.Equal(t, Summary{}, s)
}
