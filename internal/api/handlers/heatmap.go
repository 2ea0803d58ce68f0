package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/aedes/internal/heatmap"
	"github.com/your-org/aedes/internal/storage"
	"github.com/your-org/aedes/pkg/dto"
)

type HeatMapHandler struct {
	db *storage.PostgresStore
}

func NewHeatMapHandler(db *storage.PostgresStore) *HeatMapHandler {
	return &HeatMapHandler{db: db}
}

// Points serves heat-map points built from stored geolocated analyses,
// optionally narrowed by ?from, ?to (RFC3339, inclusive) and ?risk
// (comma-separated ALTO,MEDIO,BAJO).
func (h *HeatMapHandler) Points(c *gin.Context) {
	points, err := h.buildPoints(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.HeatMapResponse{Points: points, Total: len(points)})
}

// Stats serves aggregate statistics over the same point set Points would
// return for identical filters.
func (h *HeatMapHandler) Stats(c *gin.Context) {
	points, err := h.buildPoints(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.HeatMapStatsResponse{Stats: heatmap.ComputeStats(points)})
}

func (h *HeatMapHandler) buildPoints(c *gin.Context) ([]heatmap.Point, error) {
	// Time bounds narrow at the store; the risk-level filter composes over
	// the derived points.
	analyses, _, err := h.db.QueryAnalyses(c.Request.Context(), storage.AnalysisFilter{
		From:           parseTimeQuery(c, "from"),
		To:             parseTimeQuery(c, "to"),
		OnlyGeolocated: true,
		Limit:          500,
	})
	if err != nil {
		return nil, err
	}

	points := heatmap.ToHeatPoints(analyses)
	if levels := parseRiskLevels(c.Query("risk")); len(levels) > 0 {
		points = heatmap.FilterByRiskLevels(points, levels)
	}
	return points, nil
}
