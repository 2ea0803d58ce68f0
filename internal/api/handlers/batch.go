package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/aedes/internal/batch"
	"github.com/your-org/aedes/internal/config"
	"github.com/your-org/aedes/internal/detector"
	"github.com/your-org/aedes/pkg/dto"
)

type BatchHandler struct {
	manager      *batch.Manager
	maxBatchSize int
	maxFileBytes int64
}

func NewBatchHandler(manager *batch.Manager, cfg config.BatchConfig) *BatchHandler {
	return &BatchHandler{
		manager:      manager,
		maxBatchSize: cfg.MaxBatchSize,
		maxFileBytes: int64(cfg.MaxFileSizeMB) * 1024 * 1024,
	}
}

// Enqueue accepts multipart images under the "images" field and appends them
// to the batch in submission order.
func (h *BatchHandler) Enqueue(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}

	headers := form.File["images"]
	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no images provided"})
		return
	}
	if len(headers) > h.maxBatchSize {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "too many images",
			"max":   h.maxBatchSize,
		})
		return
	}

	var opts detector.Options
	if v := c.PostForm("confidence_threshold"); v != "" {
		threshold, err := strconv.ParseFloat(v, 64)
		if err != nil || threshold < 0 || threshold > 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "confidence_threshold must be in [0,1]"})
			return
		}
		opts.ConfidenceThreshold = &threshold
	}
	if v := c.PostForm("include_gps"); v != "" {
		include := v == "true" || v == "1"
		opts.IncludeGPS = &include
	}

	files := make([]detector.File, 0, len(headers))
	for _, fh := range headers {
		if fh.Size > h.maxFileBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": "file too large",
				"file":  fh.Filename,
			})
			return
		}

		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "read upload: " + fh.Filename})
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "read upload: " + fh.Filename})
			return
		}

		files = append(files, detector.File{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	items := h.manager.Enqueue(files, opts)

	resp := dto.EnqueueResponse{
		Items:   make([]dto.BatchItemResponse, 0, len(items)),
		Summary: h.manager.Summary(),
	}
	for _, it := range items {
		resp.Items = append(resp.Items, dto.NewBatchItem(it))
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *BatchHandler) List(c *gin.Context) {
	items := h.manager.Items()

	resp := dto.BatchListResponse{
		Items:   make([]dto.BatchItemResponse, 0, len(items)),
		Summary: h.manager.Summary(),
	}
	for _, it := range items {
		resp.Items = append(resp.Items, dto.NewBatchItem(it))
	}

	c.JSON(http.StatusOK, resp)
}

func (h *BatchHandler) Summary(c *gin.Context) {
	c.JSON(http.StatusOK, h.manager.Summary())
}

// Remove deletes a batch item. Processing items are refused: the in-flight
// request cannot be cancelled and must not be orphaned.
func (h *BatchHandler) Remove(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return
	}

	switch err := h.manager.Remove(id); err {
	case nil:
		c.JSON(http.StatusOK, gin.H{"status": "removed", "item_id": id})
	case batch.ErrItemNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
	case batch.ErrItemProcessing:
		c.JSON(http.StatusConflict, gin.H{"error": "item is processing and cannot be removed"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
