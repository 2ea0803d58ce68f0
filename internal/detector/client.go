package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/your-org/aedes/internal/models"
	"github.com/your-org/aedes/internal/observability"
)

const (
	// DefaultTimeout is tuned for AI inference latency, not ordinary API calls.
	DefaultTimeout = 60 * time.Second

	defaultCacheTTL = time.Minute
	modelsCacheKey  = "models"
)

// Config configures the detection service client.
type Config struct {
	BaseURL             string
	Timeout             time.Duration
	ConfidenceThreshold float64 // default threshold sent with detect calls; 0 lets the service decide
	IncludeGPS          bool    // request EXIF GPS extraction by default
	ModelsCacheTTL      time.Duration
}

// File is one image payload submitted for detection.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Size returns the payload size in bytes.
func (f File) Size() int64 { return int64(len(f.Data)) }

// Options adjusts a single detect call. Zero values fall back to the
// client-level defaults from Config.
type Options struct {
	ConfidenceThreshold *float64
	IncludeGPS          *bool
	// OnProgress receives strictly increasing upload percentages in [0,100].
	OnProgress func(percent int)
}

// Client wraps the remote AI breeding-site detection service. It performs a
// single submission per call; retry policy belongs to the caller.
type Client struct {
	cfg        Config
	httpClient *http.Client
	cache      *cache.Cache
}

// New creates a detection client. The base URL comes from configuration,
// never hardcoded.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.ModelsCacheTTL == 0 {
		cfg.ModelsCacheTTL = defaultCacheTTL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		cache:      cache.New(cfg.ModelsCacheTTL, cfg.ModelsCacheTTL*2),
	}
}

// Detect submits one image and returns its detection result. Every failure
// comes back as a classified *Error; nothing escapes unclassified.
func (c *Client) Detect(ctx context.Context, file File, opts Options) (*models.DetectionResult, error) {
	start := time.Now()
	result, err := c.detect(ctx, file, opts)

	outcome := "success"
	if err != nil {
		outcome = string(AsError(err).Kind)
	}
	observability.DetectDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	return result, err
}

func (c *Client) detect(ctx context.Context, file File, opts Options) (*models.DetectionResult, error) {
	body, contentType, err := c.buildDetectBody(file, opts)
	if err != nil {
		return nil, &Error{Kind: KindBadRequest, Message: UserMessage(KindBadRequest), cause: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/detect",
		newProgressReader(bytes.NewReader(body), int64(len(body)), opts.OnProgress))
	if err != nil {
		return nil, &Error{Kind: KindUnclassified, Message: UserMessage(KindUnclassified), cause: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = int64(len(body))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp.StatusCode, readErrorDetail(resp.Body))
	}

	var result models.DetectionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &Error{Kind: KindUnclassified, Message: UserMessage(KindUnclassified), cause: fmt.Errorf("decode detect response: %w", err)}
	}

	slog.Debug("detect call completed",
		"file", file.Name,
		"detections", len(result.Detections),
		"risk_level", result.RiskAssessment.OverallRiskLevel,
		"processing_ms", result.ProcessingTimeMs,
	)

	return &result, nil
}

// buildDetectBody assembles the multipart form up front so upload progress
// can be measured against a known total size.
func (c *Client) buildDetectBody(file File, opts Options) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", file.Name)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, "", fmt.Errorf("write form file: %w", err)
	}

	threshold := c.cfg.ConfidenceThreshold
	if opts.ConfidenceThreshold != nil {
		threshold = *opts.ConfidenceThreshold
	}
	if threshold > 0 {
		if err := w.WriteField("confidence_threshold", strconv.FormatFloat(threshold, 'f', -1, 64)); err != nil {
			return nil, "", fmt.Errorf("write threshold field: %w", err)
		}
	}

	includeGPS := c.cfg.IncludeGPS
	if opts.IncludeGPS != nil {
		includeGPS = *opts.IncludeGPS
	}
	if err := w.WriteField("include_gps", strconv.FormatBool(includeGPS)); err != nil {
		return nil, "", fmt.Errorf("write gps field: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// Health probes the detection service's GET /health endpoint.
func (c *Client) Health(ctx context.Context) (*models.HealthStatus, error) {
	var status models.HealthStatus
	if err := c.getJSON(ctx, "/health", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Models returns the service's model inventory. Responses are cached briefly
// since the model list changes rarely.
func (c *Client) Models(ctx context.Context) (*models.ModelList, error) {
	if cached, ok := c.cache.Get(modelsCacheKey); ok {
		return cached.(*models.ModelList), nil
	}

	var list models.ModelList
	if err := c.getJSON(ctx, "/models", &list); err != nil {
		return nil, err
	}
	c.cache.Set(modelsCacheKey, &list, cache.DefaultExpiration)
	return &list, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp.StatusCode, readErrorDetail(resp.Body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// readErrorDetail pulls the optional {"detail": "..."} body from an error
// response, falling back to the raw body text.
func readErrorDetail(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Detail != "" {
		return body.Detail
	}
	return strings.TrimSpace(string(data))
}
