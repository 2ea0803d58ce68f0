package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/aedes/internal/models"
	"github.com/your-org/aedes/internal/storage"
	"github.com/your-org/aedes/pkg/dto"
)

type AnalysisHandler struct {
	db    *storage.PostgresStore
	minio *storage.MinIOStore
}

func NewAnalysisHandler(db *storage.PostgresStore, minio *storage.MinIOStore) *AnalysisHandler {
	return &AnalysisHandler{db: db, minio: minio}
}

func (h *AnalysisHandler) List(c *gin.Context) {
	filter := storage.AnalysisFilter{
		From:       parseTimeQuery(c, "from"),
		To:         parseTimeQuery(c, "to"),
		RiskLevels: parseRiskLevels(c.Query("risk")),
	}
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	filter.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if v := c.Query("geolocated"); v == "true" || v == "1" {
		filter.OnlyGeolocated = true
	}

	analyses, total, err := h.db.QueryAnalyses(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := dto.AnalysisListResponse{
		Analyses: make([]dto.AnalysisResponse, 0, len(analyses)),
		Total:    total,
	}
	for _, a := range analyses {
		resp.Analyses = append(resp.Analyses, dto.NewAnalysis(a))
	}

	c.JSON(http.StatusOK, resp)
}

// Image proxies the original analyzed image from MinIO.
func (h *AnalysisHandler) Image(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid analysis id"})
		return
	}

	a, err := h.db.GetAnalysis(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if a == nil || a.ImageKey == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
		return
	}

	data, err := h.minio.GetObject(c.Request.Context(), a.ImageKey)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
		return
	}

	contentType := a.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}
	c.Data(http.StatusOK, contentType, data)
}

func parseTimeQuery(c *gin.Context, name string) *time.Time {
	if raw := c.Query(name); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return &t
		}
	}
	return nil
}

func parseRiskLevels(raw string) []models.RiskLevel {
	if raw == "" {
		return nil
	}
	var levels []models.RiskLevel
	for _, part := range strings.Split(raw, ",") {
		switch models.RiskLevel(strings.ToUpper(strings.TrimSpace(part))) {
		case models.RiskHigh:
			levels = append(levels, models.RiskHigh)
		case models.RiskMedium:
			levels = append(levels, models.RiskMedium)
		case models.RiskLow:
			levels = append(levels, models.RiskLow)
		}
	}
	return levels
}
