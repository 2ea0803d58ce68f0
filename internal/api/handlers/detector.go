package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/aedes/internal/detector"
)

type DetectorHandler struct {
	client *detector.Client
}

func NewDetectorHandler(client *detector.Client) *DetectorHandler {
	return &DetectorHandler{client: client}
}

// Models proxies the detection service's model inventory.
func (h *DetectorHandler) Models(c *gin.Context) {
	list, err := h.client.Models(c.Request.Context())
	if err != nil {
		de := detector.AsError(err)
		c.JSON(http.StatusBadGateway, gin.H{"error": de.Message, "kind": de.Kind})
		return
	}

	c.JSON(http.StatusOK, list)
}
