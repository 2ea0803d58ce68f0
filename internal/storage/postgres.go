package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/your-org/aedes/internal/config"
	"github.com/your-org/aedes/internal/models"
	"github.com/your-org/aedes/internal/observability"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// SaveAnalysis persists one finished analysis. Inserts are idempotent on the
// analysis id because the NATS consumer may redeliver an event. Risk level,
// coordinates and detection count are denormalized into columns so heat-map
// queries never unpack the result document.
func (s *PostgresStore) SaveAnalysis(ctx context.Context, a *models.Analysis) error {
	var resultJSON []byte
	var riskLevel *string
	var riskScore *float64
	var detectionCount *int
	var lat, lon *float64

	if a.Result != nil {
		var err error
		resultJSON, err = json.Marshal(a.Result)
		if err != nil {
			return fmt.Errorf("marshal analysis result: %w", err)
		}
		lvl := string(a.Result.RiskAssessment.OverallRiskLevel)
		riskLevel = &lvl
		riskScore = &a.Result.RiskAssessment.RiskScore
		detectionCount = &a.Result.RiskAssessment.TotalDetections
		if a.Result.Location != nil {
			lat = &a.Result.Location.Latitude
			lon = &a.Result.Location.Longitude
		}
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO analyses (id, file_name, file_size, content_type, image_key, status,
		                       risk_level, risk_score, detection_count, latitude, longitude,
		                       result, error_message, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 ON CONFLICT (id) DO NOTHING`,
		a.ID, a.FileName, a.FileSize, a.ContentType, a.ImageKey, a.Status,
		riskLevel, riskScore, detectionCount, lat, lon,
		resultJSON, a.ErrorMessage, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("save analysis: %w", err)
	}
	if tag.RowsAffected() > 0 {
		observability.AnalysesStored.Inc()
	}
	return nil
}

// AnalysisFilter narrows QueryAnalyses. Time bounds are inclusive.
type AnalysisFilter struct {
	From           *time.Time
	To             *time.Time
	RiskLevels     []models.RiskLevel
	OnlyGeolocated bool
	Limit          int
	Offset         int
}

// QueryAnalyses returns stored completed analyses newest first, plus the
// total count matching the filter.
func (s *PostgresStore) QueryAnalyses(ctx context.Context, f AnalysisFilter) ([]models.Analysis, int, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > 500 {
		f.Limit = 500
	}

	baseWhere := "WHERE status = $1"
	args := []interface{}{models.BatchCompleted}
	argIdx := 2

	if f.From != nil {
		baseWhere += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *f.From)
		argIdx++
	}
	if f.To != nil {
		baseWhere += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *f.To)
		argIdx++
	}
	if len(f.RiskLevels) > 0 {
		levels := make([]string, 0, len(f.RiskLevels))
		for _, l := range f.RiskLevels {
			levels = append(levels, string(l))
		}
		baseWhere += fmt.Sprintf(" AND risk_level = ANY($%d)", argIdx)
		args = append(args, levels)
		argIdx++
	}
	if f.OnlyGeolocated {
		baseWhere += " AND latitude IS NOT NULL AND longitude IS NOT NULL"
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM analyses " + baseWhere
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count analyses: %w", err)
	}

	query := fmt.Sprintf(
		`SELECT id, file_name, file_size, content_type, image_key, status, result, error_message, created_at
		 FROM analyses %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		baseWhere, argIdx, argIdx+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query analyses: %w", err)
	}
	defer rows.Close()

	var analyses []models.Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, 0, err
		}
		analyses = append(analyses, a)
	}
	return analyses, total, nil
}

// GetAnalysis returns one analysis by id, or nil when it does not exist.
func (s *PostgresStore) GetAnalysis(ctx context.Context, id uuid.UUID) (*models.Analysis, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, file_name, file_size, content_type, image_key, status, result, error_message, created_at
		 FROM analyses WHERE id = $1`, id)

	a, err := scanAnalysis(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get analysis: %w", err)
	}
	return &a, nil
}

func scanAnalysis(row pgx.Row) (models.Analysis, error) {
	var a models.Analysis
	var resultJSON []byte

	err := row.Scan(&a.ID, &a.FileName, &a.FileSize, &a.ContentType, &a.ImageKey,
		&a.Status, &resultJSON, &a.ErrorMessage, &a.CreatedAt)
	if err != nil {
		return a, err
	}

	if len(resultJSON) > 0 {
		var result models.DetectionResult
		if err := json.Unmarshal(resultJSON, &result); err != nil {
			return a, fmt.Errorf("unmarshal analysis result: %w", err)
		}
		a.Result = &result
	}
	return a, nil
}
