package risk

import (
	"github.com/your-org/aedes/internal/models"
)

// Caps for the additive intensity boosts. The raw risk score under-weights
// detection volume and severity, so many low-risk detections or a few
// high-risk ones raise a point's heat-map prominence, but neither factor can
// push past its cap.
const (
	volumeBoostCap   = 0.30
	volumeDivisor    = 10.0
	severityBoostCap = 0.20
	severityDivisor  = 5.0
)

// Intensity folds a risk assessment into a [0,1] scalar used to weight a
// point's visual prominence on the heat map.
func Intensity(ra models.RiskAssessment) float64 {
	intensity := ra.RiskScore
	intensity += min(float64(ra.TotalDetections)/volumeDivisor, volumeBoostCap)
	intensity += min(float64(ra.HighRiskCount)/severityDivisor, severityBoostCap)
	return clamp(intensity, 0, 1)
}

// Summary holds per-status counts over a batch item collection.
type Summary struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Total      int `json:"total"`
}

// Summarize recomputes status counts from scratch on every call so the
// summary can never drift from the collection it describes.
func Summarize(statuses []models.BatchStatus) Summary {
	s := Summary{Total: len(statuses)}
	for _, st := range statuses {
		switch st {
		case models.BatchPending:
			s.Pending++
		case models.BatchProcessing:
			s.Processing++
		case models.BatchCompleted:
			s.Completed++
		case models.BatchFailed:
			s.Failed++
		}
	}
	return s
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
