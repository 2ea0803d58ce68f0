package dto

import (
	"github.com/your-org/aedes/internal/heatmap"
)

type HeatMapResponse struct {
	Points []heatmap.Point `json:"points"`
	Total  int             `json:"total"`
}

type HeatMapStatsResponse struct {
	Stats heatmap.Stats `json:"stats"`
}
