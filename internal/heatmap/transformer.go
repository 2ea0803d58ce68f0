package heatmap

import (
	"strings"
	"time"
	"unicode"

	"github.com/your-org/aedes/internal/models"
	"github.com/your-org/aedes/internal/risk"
)

// Point is one map-ready record derived from a completed, geolocated
// analysis. Points are recomputed on demand and never mutated in place.
type Point struct {
	Latitude       float64          `json:"latitude"`
	Longitude      float64          `json:"longitude"`
	Intensity      float64          `json:"intensity"`
	RiskLevel      models.RiskLevel `json:"risk_level"`
	DetectionCount int              `json:"detection_count"`
	Location       string           `json:"location,omitempty"`
	Timestamp      *time.Time       `json:"timestamp,omitempty"`
}

// ToHeatPoints converts analyses into heat-map points. Only completed
// analyses that carry a risk assessment and coordinates survive; everything
// else is excluded here so a Point never represents a missing location.
func ToHeatPoints(analyses []models.Analysis) []Point {
	points := make([]Point, 0, len(analyses))
	for _, a := range analyses {
		if a.Status != models.BatchCompleted || a.Result == nil || a.Result.Location == nil {
			continue
		}

		ts := a.CreatedAt
		point := Point{
			Latitude:       a.Result.Location.Latitude,
			Longitude:      a.Result.Location.Longitude,
			Intensity:      risk.Intensity(a.Result.RiskAssessment),
			RiskLevel:      a.Result.RiskAssessment.OverallRiskLevel,
			DetectionCount: a.Result.RiskAssessment.TotalDetections,
			Location:       LabelFromFilename(a.FileName),
		}
		if !ts.IsZero() {
			point.Timestamp = &ts
		}
		points = append(points, point)
	}
	return points
}

// FilterByTimeRange keeps points whose timestamp lies in [from, to],
// inclusive, preserving order. Points without a timestamp are dropped since
// they cannot be placed in the range.
func FilterByTimeRange(points []Point, from, to time.Time) []Point {
	out := make([]Point, 0, len(points))
	for _, p := range points {
		if p.Timestamp == nil {
			continue
		}
		if p.Timestamp.Before(from) || p.Timestamp.After(to) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// FilterByRiskLevels keeps points whose risk level is in the accepted set,
// preserving order.
func FilterByRiskLevels(points []Point, levels []models.RiskLevel) []Point {
	accepted := make(map[models.RiskLevel]struct{}, len(levels))
	for _, l := range levels {
		accepted[l] = struct{}{}
	}

	out := make([]Point, 0, len(points))
	for _, p := range points {
		if _, ok := accepted[p.RiskLevel]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Stats summarizes a point collection.
type Stats struct {
	TotalPoints     int                      `json:"total_points"`
	ByRiskLevel     map[models.RiskLevel]int `json:"by_risk_level"`
	TotalDetections int                      `json:"total_detections"`
	AvgIntensity    float64                  `json:"avg_intensity"`
}

// ComputeStats returns counts and mean intensity over a point collection.
// An empty collection yields zero values, never a division error.
func ComputeStats(points []Point) Stats {
	s := Stats{
		TotalPoints: len(points),
		ByRiskLevel: map[models.RiskLevel]int{
			models.RiskHigh:   0,
			models.RiskMedium: 0,
			models.RiskLow:    0,
		},
	}

	var intensitySum float64
	for _, p := range points {
		s.ByRiskLevel[p.RiskLevel]++
		s.TotalDetections += p.DetectionCount
		intensitySum += p.Intensity
	}
	if len(points) > 0 {
		s.AvgIntensity = intensitySum / float64(len(points))
	}
	return s
}

// LabelFromFilename derives a best-effort human-readable place label from an
// image filename: extension stripped, separators replaced with spaces, each
// word title-cased. "patio_trasero-7.jpg" becomes "Patio Trasero 7".
func LabelFromFilename(name string) string {
	if idx := strings.LastIndex(name, "."); idx > 0 {
		name = name[:idx]
	}

	words := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || unicode.IsSpace(r)
	})

	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		for j := 1; j < len(runes); j++ {
			runes[j] = unicode.ToLower(runes[j])
		}
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
