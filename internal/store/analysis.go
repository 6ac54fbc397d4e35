package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/sheetlytics/apiserver/types"
)

// AnalysisRepository handles persistence for analyses.
type AnalysisRepository struct {
	db *sql.DB
}

func NewAnalysisRepository(db *sql.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

const analysisColumns = `id, user_id, file_name, object_key, x_axis, y_axis, chart_type, data, created_at`

func scanAnalysis(scan func(dest ...any) error) (types.Analysis, error) {
	var analysis types.Analysis
	var dataJSON []byte
	if err := scan(
		&analysis.ID,
		&analysis.UserID,
		&analysis.FileName,
		&analysis.ObjectKey,
		&analysis.XAxis,
		&analysis.YAxis,
		&analysis.ChartType,
		&dataJSON,
		&analysis.CreatedAt,
	); err != nil {
		return types.Analysis{}, err
	}
	_ = json.Unmarshal(dataJSON, &analysis.Data)
	return analysis, nil
}

func (r *AnalysisRepository) Get(ctx context.Context, id int64) (types.Analysis, error) {
	const query = `
		SELECT ` + analysisColumns + `
		FROM analyses
		WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)
	analysis, err := scanAnalysis(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Analysis{}, ErrNotFound
		}
		return types.Analysis{}, err
	}
	return analysis, nil
}

func (r *AnalysisRepository) Create(ctx context.Context, analysis types.Analysis) (types.Analysis, error) {
	analysis.CreatedAt = time.Now()

	dataJSON, err := json.Marshal(analysis.Data)
	if err != nil {
		return types.Analysis{}, err
	}

	const query = `
		INSERT INTO analyses (user_id, file_name, object_key, x_axis, y_axis, chart_type, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		analysis.UserID,
		analysis.FileName,
		analysis.ObjectKey,
		analysis.XAxis,
		analysis.YAxis,
		analysis.ChartType,
		dataJSON,
		analysis.CreatedAt,
	).Scan(&analysis.ID); err != nil {
		return types.Analysis{}, err
	}
	return analysis, nil
}

// UpdateChart persists the chart configuration fields of an analysis.
// The parsed data is immutable and never touched here.
func (r *AnalysisRepository) UpdateChart(ctx context.Context, id int64, xAxis, yAxis, chartType string) (types.Analysis, error) {
	const query = `
		UPDATE analyses
		SET x_axis = $1,
			y_axis = $2,
			chart_type = $3
		WHERE id = $4`
	result, err := r.db.ExecContext(ctx, query, xAxis, yAxis, chartType, id)
	if err != nil {
		return types.Analysis{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Analysis{}, err
	}
	if affected == 0 {
		return types.Analysis{}, ErrNotFound
	}
	return r.Get(ctx, id)
}

// ListByOwner returns the owner's analyses, newest first, capped at limit.
// A limit of zero or less means no cap.
func (r *AnalysisRepository) ListByOwner(ctx context.Context, ownerID, limit int) ([]types.Analysis, error) {
	query := `
		SELECT ` + analysisColumns + `
		FROM analyses
		WHERE user_id = $1
		ORDER BY created_at DESC`
	args := []any{ownerID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	analyses := make([]types.Analysis, 0)
	for rows.Next() {
		analysis, err := scanAnalysis(rows.Scan)
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, analysis)
	}
	return analyses, rows.Err()
}

func (r *AnalysisRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM analyses WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByOwner removes all analyses belonging to a user.
func (r *AnalysisRepository) DeleteByOwner(ctx context.Context, ownerID int) error {
	const query = `DELETE FROM analyses WHERE user_id = $1`
	_, err := r.db.ExecContext(ctx, query, ownerID)
	return err
}

func (r *AnalysisRepository) Count(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(1) FROM analyses`
	var total int
	if err := r.db.QueryRowContext(ctx, query).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// CountActiveOwners counts distinct users that created an analysis at or
// after since.
func (r *AnalysisRepository) CountActiveOwners(ctx context.Context, since time.Time) (int, error) {
	const query = `SELECT COUNT(DISTINCT user_id) FROM analyses WHERE created_at >= $1`
	var total int
	if err := r.db.QueryRowContext(ctx, query, since).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}
