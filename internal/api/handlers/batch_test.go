package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/aedes/internal/batch"
	"github.com/your-org/aedes/internal/config"
	"github.com/your-org/aedes/internal/detector"
	"github.com/your-org/aedes/internal/models"
	"github.com/your-org/aedes/pkg/dto"
)

type instantDetector struct{}

func (instantDetector) Detect(_ context.Context, _ detector.File, _ detector.Options) (*models.DetectionResult, error) {
	return &models.DetectionResult{
		RiskAssessment: models.RiskAssessment{OverallRiskLevel: models.RiskLow},
	}, nil
}

func newBatchRouter(t *testing.T) (*gin.Engine, *batch.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m := batch.NewManager(batch.Config{Detector: instantDetector{}, Ceiling: 2})
	t.Cleanup(m.Close)

	h := NewBatchHandler(m, config.BatchConfig{MaxBatchSize: 3, MaxFileSizeMB: 1})

	r := gin.New()
	r.POST("/v1/batch/images", h.Enqueue)
	r.GET("/v1/batch", h.List)
	r.GET("/v1/batch/summary", h.Summary)
	r.DELETE("/v1/batch/:id", h.Remove)
	return r, m
}

func multipartImages(t *testing.T, fields map[string]string, names ...string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, name := range names {
		part, err := w.CreateFormFile("images", name)
		require.NoError(t, err)
		_, err = part.Write([]byte("jpeg bytes for " + name))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestEnqueueAcceptsImages(t *testing.T) {
	r, m := newBatchRouter(t)

	body, contentType := multipartImages(t, nil, "a.jpg", "b.jpg")
	req := httptest.NewRequest(http.MethodPost, "/v1/batch/images", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp dto.EnqueueResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "a.jpg", resp.Items[0].FileName)
	assert.Equal(t, "b.jpg", resp.Items[1].FileName)
	assert.Equal(t, 2, resp.Summary.Total)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, m.Wait(ctx))
	assert.Equal(t, 2, m.Summary().Completed)
}

func TestEnqueueRejectsEmptyAndOversizedBatches(t *testing.T) {
	r, _ := newBatchRouter(t)

	body, contentType := multipartImages(t, map[string]string{"include_gps": "true"})
	req := httptest.NewRequest(http.MethodPost, "/v1/batch/images", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "no images provided")

	// Batch limit is 3 in this router.
	body, contentType = multipartImages(t, nil, "1.jpg", "2.jpg", "3.jpg", "4.jpg")
	req = httptest.NewRequest(http.MethodPost, "/v1/batch/images", body)
	req.Header.Set("Content-Type", contentType)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "too many images")
}

func TestEnqueueValidatesConfidenceThreshold(t *testing.T) {
	r, _ := newBatchRouter(t)

	for _, bad := range []string{"1.5", "-0.1", "abc"} {
		body, contentType := multipartImages(t, map[string]string{"confidence_threshold": bad}, "a.jpg")
		req := httptest.NewRequest(http.MethodPost, "/v1/batch/images", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "threshold %q", bad)
	}
}

func TestListAndSummary(t *testing.T) {
	r, m := newBatchRouter(t)

	body, contentType := multipartImages(t, nil, "a.jpg")
	req := httptest.NewRequest(http.MethodPost, "/v1/batch/images", body)
	req.Header.Set("Content-Type", contentType)
	r.ServeHTTP(httptest.NewRecorder(), req)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, m.Wait(ctx))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/batch", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var list dto.BatchListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, "completed", list.Items[0].Status)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/batch/summary", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"completed":1`)
}

func TestRemoveResponses(t *testing.T) {
	r, m := newBatchRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/batch/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/v1/batch/%s", uuid.New()), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	body, contentType := multipartImages(t, nil, "a.jpg")
	req := httptest.NewRequest(http.MethodPost, "/v1/batch/images", body)
	req.Header.Set("Content-Type", contentType)
	r.ServeHTTP(httptest.NewRecorder(), req)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, m.Wait(ctx))

	id := m.Items()[0].ID
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/v1/batch/%s", id), nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, m.Items())
}
