package services

import (
	"context"
	"time"

	"github.com/sheetlytics/apiserver/types"
)

const (
	// activeWindow is how far back an analysis counts a user as active.
	activeWindow = 24 * time.Hour

	// signupWindowDays is the length of the signup time series.
	signupWindowDays = 30

	// activityLimit caps the per-user activity feed.
	activityLimit = 20

	dayFormat = "2006-01-02"
)

// UsageSummary aggregates headline usage counts.
type UsageSummary struct {
	TotalUsers  int `json:"totalUsers"`
	ActiveUsers int `json:"activeUsers"`
	TotalFiles  int `json:"totalFiles"`
}

// SignupSeries is a day-bucketed signup count over the trailing window,
// oldest day first, with empty days zero-filled.
type SignupSeries struct {
	Labels []string `json:"labels"`
	Data   []int    `json:"data"`
}

// AdminService encapsulates user management and reporting use-cases.
type AdminService struct {
	users    UserRepository
	analyses AnalysisRepository
	now      func() time.Time
}

func NewAdminService(users UserRepository, analyses AnalysisRepository) *AdminService {
	return &AdminService{users: users, analyses: analyses, now: time.Now}
}

// ListUsers returns all user records.
func (s *AdminService) ListUsers(ctx context.Context) ([]types.User, error) {
	return s.users.List(ctx)
}

// Summary reports total users, users with an analysis in the last 24 hours,
// and total analyses.
func (s *AdminService) Summary(ctx context.Context) (UsageSummary, error) {
	totalUsers, err := s.users.Count(ctx)
	if err != nil {
		return UsageSummary{}, err
	}
	activeUsers, err := s.analyses.CountActiveOwners(ctx, s.now().Add(-activeWindow))
	if err != nil {
		return UsageSummary{}, err
	}
	totalFiles, err := s.analyses.Count(ctx)
	if err != nil {
		return UsageSummary{}, err
	}

	return UsageSummary{
		TotalUsers:  totalUsers,
		ActiveUsers: activeUsers,
		TotalFiles:  totalFiles,
	}, nil
}

// SignupSeries buckets signups by UTC calendar day over the trailing 30
// days.
func (s *AdminService) SignupSeries(ctx context.Context) (SignupSeries, error) {
	now := s.now().UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).
		AddDate(0, 0, -(signupWindowDays - 1))

	times, err := s.users.SignupTimes(ctx, start)
	if err != nil {
		return SignupSeries{}, err
	}

	counts := make(map[string]int, signupWindowDays)
	for _, t := range times {
		counts[t.UTC().Format(dayFormat)]++
	}

	series := SignupSeries{
		Labels: make([]string, 0, signupWindowDays),
		Data:   make([]int, 0, signupWindowDays),
	}
	for i := 0; i < signupWindowDays; i++ {
		day := start.AddDate(0, 0, i).Format(dayFormat)
		series.Labels = append(series.Labels, day)
		series.Data = append(series.Data, counts[day])
	}
	return series, nil
}

// SetRole changes a user's role.
func (s *AdminService) SetRole(ctx context.Context, id int, role types.Role) (types.User, error) {
	if !role.Valid() {
		return types.User{}, ErrInvalidRole
	}
	return s.users.UpdateRole(ctx, id, role)
}

// DeleteUser removes a user and all their analyses.
func (s *AdminService) DeleteUser(ctx context.Context, id int) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	return s.analyses.DeleteByOwner(ctx, id)
}

// UserReports returns all of a user's analyses, newest first.
func (s *AdminService) UserReports(ctx context.Context, userID int) ([]types.Analysis, error) {
	return s.analyses.ListByOwner(ctx, userID, 0)
}

// UserActivity returns a user's most recent analyses, capped at 20. It is
// the same data as UserReports through a second, bounded read path.
func (s *AdminService) UserActivity(ctx context.Context, userID int) ([]types.Analysis, error) {
	return s.analyses.ListByOwner(ctx, userID, activityLimit)
}

// DeleteAnalysis removes a single analysis.
func (s *AdminService) DeleteAnalysis(ctx context.Context, id int64) error {
	return s.analyses.Delete(ctx, id)
}
