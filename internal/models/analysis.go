package models

import (
	"time"

	"github.com/google/uuid"
)

// RiskLevel is the severity label assigned by the detection service.
type RiskLevel string

const (
	RiskHigh   RiskLevel = "ALTO"
	RiskMedium RiskLevel = "MEDIO"
	RiskLow    RiskLevel = "BAJO"
)

// BatchStatus is the lifecycle state of one enqueued image.
type BatchStatus string

const (
	BatchPending    BatchStatus = "pending"
	BatchProcessing BatchStatus = "processing"
	BatchCompleted  BatchStatus = "completed"
	BatchFailed     BatchStatus = "failed"
)

// Detection is one breeding-site region identified in an image.
type Detection struct {
	ClassID    int          `json:"class_id"`
	ClassName  string       `json:"class_name"`
	Confidence float64      `json:"confidence"`
	RiskLevel  RiskLevel    `json:"risk_level"`
	Polygon    [][2]float64 `json:"polygon"` // ordered x,y vertices of the region
	MaskArea   float64      `json:"mask_area"`
}

// RiskAssessment is the server-computed aggregate over all detections in one image.
type RiskAssessment struct {
	OverallRiskLevel RiskLevel         `json:"overall_risk_level"`
	TotalDetections  int               `json:"total_detections"`
	HighRiskCount    int               `json:"high_risk_count"`
	MediumRiskCount  int               `json:"medium_risk_count"`
	LowRiskCount     int               `json:"low_risk_count"`
	RiskScore        float64           `json:"risk_score"`
	RiskDistribution map[RiskLevel]int `json:"risk_distribution"`
}

// Location is GPS metadata extracted from the image EXIF data.
type Location struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Altitude  *float64 `json:"altitude,omitempty"`
	Source    string   `json:"source,omitempty"`
}

// CameraInfo is camera EXIF metadata, absent when the image carries none.
type CameraInfo struct {
	Make     string `json:"make,omitempty"`
	Model    string `json:"model,omitempty"`
	TakenAt  string `json:"taken_at,omitempty"`
	Software string `json:"software,omitempty"`
}

// DetectionResult is the detection service's structured response for one image.
// It is created once per successful detect call and never mutated afterwards.
type DetectionResult struct {
	Detections          []Detection    `json:"detections"`
	RiskAssessment      RiskAssessment `json:"risk_assessment"`
	Location            *Location      `json:"location,omitempty"`
	Camera              *CameraInfo    `json:"camera,omitempty"`
	ProcessingTimeMs    float64        `json:"processing_time_ms"`
	ModelUsed           string         `json:"model_used"`
	ConfidenceThreshold float64        `json:"confidence_threshold"`
}

// Analysis is one finished batch item: the outcome of running a single image
// through the detection service. Completed analyses are persisted so heat maps
// can be built over history, not just the live batch.
type Analysis struct {
	ID           uuid.UUID        `json:"id" db:"id"`
	FileName     string           `json:"file_name" db:"file_name"`
	FileSize     int64            `json:"file_size" db:"file_size"`
	ContentType  string           `json:"content_type" db:"content_type"`
	ImageKey     string           `json:"image_key,omitempty" db:"image_key"` // MinIO key of the original image
	Status       BatchStatus      `json:"status" db:"status"`
	Result       *DetectionResult `json:"result,omitempty" db:"result"`
	ErrorMessage string           `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time        `json:"created_at" db:"created_at"`
}

// HealthStatus is the detection service's GET /health response.
type HealthStatus struct {
	Status         string `json:"status"`
	Service        string `json:"service"`
	Version        string `json:"version"`
	Timestamp      string `json:"timestamp"`
	ModelAvailable bool   `json:"model_available"`
	ModelPath      string `json:"model_path"`
}

// ModelInfo describes one model known to the detection service.
type ModelInfo struct {
	Name      string  `json:"name"`
	Path      string  `json:"path"`
	SizeMB    float64 `json:"size_mb"`
	IsCurrent bool    `json:"is_current"`
}

// ModelList is the detection service's GET /models response.
type ModelList struct {
	AvailableModels []ModelInfo `json:"available_models"`
	CurrentModel    string      `json:"current_model"`
}
