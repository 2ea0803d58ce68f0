package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/your-org/aedes/internal/models"
)

type AnalysisResponse struct {
	ID           uuid.UUID               `json:"id"`
	FileName     string                  `json:"file_name"`
	FileSize     int64                   `json:"file_size"`
	ContentType  string                  `json:"content_type"`
	Status       string                  `json:"status"`
	Result       *models.DetectionResult `json:"result,omitempty"`
	ErrorMessage string                  `json:"error_message,omitempty"`
	ImageURL     string                  `json:"image_url,omitempty"`
	CreatedAt    string                  `json:"created_at"`
}

// NewAnalysis converts a stored analysis into its API representation.
func NewAnalysis(a models.Analysis) AnalysisResponse {
	r := AnalysisResponse{
		ID:           a.ID,
		FileName:     a.FileName,
		FileSize:     a.FileSize,
		ContentType:  a.ContentType,
		Status:       string(a.Status),
		Result:       a.Result,
		ErrorMessage: a.ErrorMessage,
		CreatedAt:    a.CreatedAt.Format(time.RFC3339),
	}
	if a.ImageKey != "" {
		r.ImageURL = "/v1/analyses/" + a.ID.String() + "/image"
	}
	return r
}

type AnalysisListResponse struct {
	Analyses []AnalysisResponse `json:"analyses"`
	Total    int                `json:"total"`
}
