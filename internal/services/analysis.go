package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sheetlytics/apiserver/internal/chart"
	"github.com/sheetlytics/apiserver/internal/spreadsheet"
	"github.com/sheetlytics/apiserver/internal/storage"
	"github.com/sheetlytics/apiserver/internal/store"
	"github.com/sheetlytics/apiserver/types"
)

// historyLimit caps the number of analyses returned by History.
const historyLimit = 50

// AnalysisRepository defines persistence operations for analyses.
type AnalysisRepository interface {
	Get(ctx context.Context, id int64) (types.Analysis, error)
	Create(ctx context.Context, analysis types.Analysis) (types.Analysis, error)
	UpdateChart(ctx context.Context, id int64, xAxis, yAxis, chartType string) (types.Analysis, error)
	ListByOwner(ctx context.Context, ownerID, limit int) ([]types.Analysis, error)
	Delete(ctx context.Context, id int64) error
	DeleteByOwner(ctx context.Context, ownerID int) error
	Count(ctx context.Context) (int, error)
	CountActiveOwners(ctx context.Context, since time.Time) (int, error)
}

// ObjectStore is the slice of object storage the upload pipeline needs.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
}

// AnalysisService encapsulates the upload pipeline and analysis use-cases.
type AnalysisService struct {
	repo    AnalysisRepository
	objects ObjectStore
}

func NewAnalysisService(repo AnalysisRepository, objects ObjectStore) *AnalysisService {
	return &AnalysisService{repo: repo, objects: objects}
}

// Upload runs the upload pipeline: gate on declared content type, persist
// the raw file to object storage, parse the first sheet, record the
// analysis. A file already written to storage is not cleaned up when a
// later step fails.
func (s *AnalysisService) Upload(ctx context.Context, ownerID int, fileName, contentType string, content []byte) (types.Analysis, error) {
	if !spreadsheet.Accepted(contentType) {
		return types.Analysis{}, ErrUnsupportedFileType
	}

	key := storage.UploadKey(fileName)
	if err := s.objects.Put(ctx, key, bytes.NewReader(content), int64(len(content)), contentType); err != nil {
		return types.Analysis{}, fmt.Errorf("store upload: %w", err)
	}

	rows, err := spreadsheet.ParseFirstSheet(bytes.NewReader(content))
	if err != nil {
		return types.Analysis{}, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}

	return s.repo.Create(ctx, types.Analysis{
		UserID:    ownerID,
		FileName:  fileName,
		ObjectKey: key,
		Data:      rows,
	})
}

// Configure sets the chart axes and kind on an analysis owned by ownerID.
// A missing analysis and one owned by someone else both come back as
// store.ErrNotFound so existence of other users' records does not leak.
func (s *AnalysisService) Configure(ctx context.Context, ownerID int, id int64, xAxis, yAxis, chartType string) (types.Analysis, error) {
	analysis, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Analysis{}, err
	}
	if analysis.UserID != ownerID {
		return types.Analysis{}, store.ErrNotFound
	}
	return s.repo.UpdateChart(ctx, id, xAxis, yAxis, chartType)
}

// History returns the owner's analyses, newest first, capped at 50.
func (s *AnalysisService) History(ctx context.Context, ownerID int) ([]types.Analysis, error) {
	return s.repo.ListByOwner(ctx, ownerID, historyLimit)
}

// Chart projects an owned analysis onto chart axes. Explicit fields win
// over the stored configuration.
func (s *AnalysisService) Chart(ctx context.Context, ownerID int, id int64, xField, yField string) (chart.Series, error) {
	analysis, err := s.repo.Get(ctx, id)
	if err != nil {
		return chart.Series{}, err
	}
	if analysis.UserID != ownerID {
		return chart.Series{}, store.ErrNotFound
	}

	if xField == "" {
		xField = analysis.XAxis
	}
	if yField == "" {
		yField = analysis.YAxis
	}
	if xField == "" || yField == "" {
		return chart.Series{}, ErrAxesNotConfigured
	}

	return chart.BuildSeries(analysis.Data, xField, yField), nil
}
