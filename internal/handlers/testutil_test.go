package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sheetlytics/apiserver/internal/metrics"
	"github.com/sheetlytics/apiserver/internal/services"
	"github.com/sheetlytics/apiserver/internal/store"
	"github.com/sheetlytics/apiserver/types"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const testSecret = "test-secret"

type fakeUserRepo struct {
	mu     sync.Mutex
	nextID int
	users  map[int]types.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int]types.User)}
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *fakeUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return types.User{}, store.ErrDuplicateEmail
		}
	}
	r.nextID++
	user.ID = r.nextID
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	user.UpdatedAt = user.CreatedAt
	r.users[user.ID] = user
	return user, nil
}

func (r *fakeUserRepo) List(_ context.Context) ([]types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]types.User, 0, len(r.users))
	for _, user := range r.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID > users[j].ID })
	return users, nil
}

func (r *fakeUserRepo) Count(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users), nil
}

func (r *fakeUserRepo) SignupTimes(_ context.Context, since time.Time) ([]time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	times := make([]time.Time, 0)
	for _, user := range r.users {
		if !user.CreatedAt.Before(since) {
			times = append(times, user.CreatedAt)
		}
	}
	return times, nil
}

func (r *fakeUserRepo) UpdateRole(_ context.Context, id int, role types.Role) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	user.Role = role
	user.UpdatedAt = time.Now()
	r.users[id] = user
	return user, nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

type fakeAnalysisRepo struct {
	mu       sync.Mutex
	nextID   int64
	analyses map[int64]types.Analysis
}

func newFakeAnalysisRepo() *fakeAnalysisRepo {
	return &fakeAnalysisRepo{analyses: make(map[int64]types.Analysis)}
}

func (r *fakeAnalysisRepo) Get(_ context.Context, id int64) (types.Analysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	analysis, ok := r.analyses[id]
	if !ok {
		return types.Analysis{}, store.ErrNotFound
	}
	return analysis, nil
}

func (r *fakeAnalysisRepo) Create(_ context.Context, analysis types.Analysis) (types.Analysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	analysis.ID = r.nextID
	if analysis.CreatedAt.IsZero() {
		analysis.CreatedAt = time.Now()
	}
	r.analyses[analysis.ID] = analysis
	return analysis, nil
}

func (r *fakeAnalysisRepo) UpdateChart(_ context.Context, id int64, xAxis, yAxis, chartType string) (types.Analysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	analysis, ok := r.analyses[id]
	if !ok {
		return types.Analysis{}, store.ErrNotFound
	}
	analysis.XAxis = xAxis
	analysis.YAxis = yAxis
	analysis.ChartType = chartType
	r.analyses[id] = analysis
	return analysis, nil
}

func (r *fakeAnalysisRepo) ListByOwner(_ context.Context, ownerID, limit int) ([]types.Analysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	owned := make([]types.Analysis, 0)
	for _, analysis := range r.analyses {
		if analysis.UserID == ownerID {
			owned = append(owned, analysis)
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		if owned[i].CreatedAt.Equal(owned[j].CreatedAt) {
			return owned[i].ID > owned[j].ID
		}
		return owned[i].CreatedAt.After(owned[j].CreatedAt)
	})
	if limit > 0 && len(owned) > limit {
		owned = owned[:limit]
	}
	return owned, nil
}

func (r *fakeAnalysisRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.analyses[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.analyses, id)
	return nil
}

func (r *fakeAnalysisRepo) DeleteByOwner(_ context.Context, ownerID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, analysis := range r.analyses {
		if analysis.UserID == ownerID {
			delete(r.analyses, id)
		}
	}
	return nil
}

func (r *fakeAnalysisRepo) Count(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.analyses), nil
}

func (r *fakeAnalysisRepo) CountActiveOwners(_ context.Context, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	owners := make(map[int]struct{})
	for _, analysis := range r.analyses {
		if !analysis.CreatedAt.Before(since) {
			owners[analysis.UserID] = struct{}{}
		}
	}
	return len(owners), nil
}

type fakeObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: make(map[string][]byte)}
}

func (s *fakeObjectStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if s.err != nil {
		return s.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *fakeObjectStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

type testEnv struct {
	router    *chi.Mux
	users     *fakeUserRepo
	analyses  *fakeAnalysisRepo
	objects   *fakeObjectStore
	registry  *metrics.Registry
	analysisS *services.AnalysisService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	users := newFakeUserRepo()
	analyses := newFakeAnalysisRepo()
	objects := newFakeObjectStore()
	registry := metrics.NewRegistry()

	userService := services.NewUserService(users)
	analysisService := services.NewAnalysisService(analyses, objects)
	adminService := services.NewAdminService(users, analyses)

	authHandler := NewAuthHandler(userService, testSecret)

	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			AuthRouter(r, authHandler)
		})
		AnalysisRouter(r, analysisService, authHandler.RequireAuth)
		r.Route("/admin", func(r chi.Router) {
			AdminRouter(r, adminService, registry, authHandler.RequireAuth)
		})
	})

	return &testEnv{
		router:    router,
		users:     users,
		analyses:  analyses,
		objects:   objects,
		registry:  registry,
		analysisS: analysisService,
	}
}

func (env *testEnv) doJSON(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

// signup registers a user through the API and returns the token and user.
func (env *testEnv) signup(t *testing.T, name, email, password string, role string) (string, types.User) {
	t.Helper()

	body := map[string]string{"name": name, "email": email, "password": password}
	if role != "" {
		body["role"] = role
	}
	rec := env.doJSON(t, http.MethodPost, "/api/auth/signup", "", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token, resp.User
}

func (env *testEnv) uploadFile(t *testing.T, token, fileName, contentType string, content []byte) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {`form-data; name="file"; filename="` + fileName + `"`},
		"Content-Type":        {contentType},
	})
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

// xlsxBytes builds a small workbook with a header row and data rows.
func xlsxBytes(t *testing.T, headers []string, rows [][]any) []byte {
	t.Helper()

	file := excelize.NewFile()
	sheet := file.GetSheetName(0)

	headerCells := make([]any, len(headers))
	for i, header := range headers {
		headerCells[i] = header
	}
	require.NoError(t, file.SetSheetRow(sheet, "A1", &headerCells))

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, err)
		require.NoError(t, file.SetSheetRow(sheet, cell, &row))
	}

	buf, err := file.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}
