package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/sheetlytics/apiserver/internal/spreadsheet"
	"github.com/sheetlytics/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadParsesSpreadsheet(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.signup(t, "A", "a@x.com", "password1", "")

	content := xlsxBytes(t, []string{"Month", "Sales"}, [][]any{
		{"Jan", 120},
		{"Feb", 95},
	})
	rec := env.uploadFile(t, token, "sales.xlsx", spreadsheet.MIMETypeXLSX, content)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	assert.Positive(t, resp.AnalysisID)
	assert.Equal(t, "Jan", resp.Data[0]["Month"])
	assert.Equal(t, float64(120), resp.Data[0]["Sales"])

	// The raw file must have landed in object storage.
	assert.Equal(t, 1, env.objects.count())

	// History includes the new analysis.
	history := env.doJSON(t, http.MethodGet, "/api/history", token, nil)
	require.Equal(t, http.StatusOK, history.Code)
	var analyses []types.Analysis
	require.NoError(t, json.Unmarshal(history.Body.Bytes(), &analyses))
	require.Len(t, analyses, 1)
	assert.Equal(t, resp.AnalysisID, analyses[0].ID)
	assert.Equal(t, "sales.xlsx", analyses[0].FileName)
}

func TestUploadRejectsUnsupportedContentType(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.signup(t, "A", "a@x.com", "password1", "")

	rec := env.uploadFile(t, token, "data.csv", "text/csv", []byte("Month,Sales\nJan,120\n"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Rejected before storage and parsing: no object written, no record created.
	assert.Equal(t, 0, env.objects.count())
	count, err := env.analyses.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestUploadRejectsMissingFile(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.signup(t, "A", "a@x.com", "password1", "")

	rec := env.doJSON(t, http.MethodPost, "/api/upload", token, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadUnparseableFileIsServerError(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.signup(t, "A", "a@x.com", "password1", "")

	rec := env.uploadFile(t, token, "broken.xlsx", spreadsheet.MIMETypeXLSX, []byte("not a workbook"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	// The accepted file was already written before parsing failed; it is
	// deliberately not cleaned up.
	assert.Equal(t, 1, env.objects.count())
	count, err := env.analyses.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestUploadRequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	content := xlsxBytes(t, []string{"Month"}, [][]any{{"Jan"}})
	rec := env.uploadFile(t, "", "sales.xlsx", spreadsheet.MIMETypeXLSX, content)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestConfigureUpdatesChartFields(t *testing.T) {
	env := newTestEnv(t)
	token, user := env.signup(t, "A", "a@x.com", "password1", "")

	analysis, err := env.analysisS.Upload(context.Background(), user.ID, "sales.xlsx", spreadsheet.MIMETypeXLSX,
		xlsxBytes(t, []string{"Month", "Sales"}, [][]any{{"Jan", 120}}))
	require.NoError(t, err)

	rec := env.doJSON(t, http.MethodPost, "/api/analysis", token, ConfigureRequest{
		AnalysisID: analysis.ID,
		XAxis:      "Month",
		YAxis:      "Sales",
		ChartType:  "bar",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated types.Analysis
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "Month", updated.XAxis)
	assert.Equal(t, "Sales", updated.YAxis)
	assert.Equal(t, "bar", updated.ChartType)
	assert.Equal(t, analysis.Data, updated.Data)
}

func TestConfigureOwnershipIndistinguishableFromMissing(t *testing.T) {
	env := newTestEnv(t)
	_, owner := env.signup(t, "A", "a@x.com", "password1", "")
	otherToken, _ := env.signup(t, "B", "b@x.com", "password1", "")

	analysis, err := env.analysisS.Upload(context.Background(), owner.ID, "sales.xlsx", spreadsheet.MIMETypeXLSX,
		xlsxBytes(t, []string{"Month"}, [][]any{{"Jan"}}))
	require.NoError(t, err)

	foreign := env.doJSON(t, http.MethodPost, "/api/analysis", otherToken, ConfigureRequest{
		AnalysisID: analysis.ID,
		XAxis:      "Month",
	})
	missing := env.doJSON(t, http.MethodPost, "/api/analysis", otherToken, ConfigureRequest{
		AnalysisID: 99999,
		XAxis:      "Month",
	})

	assert.Equal(t, http.StatusNotFound, foreign.Code)
	assert.Equal(t, http.StatusNotFound, missing.Code)
	assert.Equal(t, foreign.Body.String(), missing.Body.String())
}

func TestHistoryNewestFirstCappedAtFifty(t *testing.T) {
	env := newTestEnv(t)
	token, user := env.signup(t, "A", "a@x.com", "password1", "")

	content := xlsxBytes(t, []string{"Month"}, [][]any{{"Jan"}})
	for i := 0; i < 55; i++ {
		_, err := env.analysisS.Upload(context.Background(), user.ID, fmt.Sprintf("f%02d.xlsx", i), spreadsheet.MIMETypeXLSX, content)
		require.NoError(t, err)
	}

	rec := env.doJSON(t, http.MethodGet, "/api/history", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var analyses []types.Analysis
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &analyses))
	require.Len(t, analyses, 50)
	for i := 1; i < len(analyses); i++ {
		assert.GreaterOrEqual(t, analyses[i-1].ID, analyses[i].ID)
	}
}

func TestChartSeriesCoercesValues(t *testing.T) {
	env := newTestEnv(t)
	token, user := env.signup(t, "A", "a@x.com", "password1", "")

	analysis, err := env.analysisS.Upload(context.Background(), user.ID, "sales.xlsx", spreadsheet.MIMETypeXLSX,
		xlsxBytes(t, []string{"Month", "Sales"}, [][]any{
			{"Jan", 120},
			{"Feb", "n/a"},
			{"Mar", 95.5},
		}))
	require.NoError(t, err)

	_, err = env.analysisS.Configure(context.Background(), user.ID, analysis.ID, "Month", "Sales", "line")
	require.NoError(t, err)

	rec := env.doJSON(t, http.MethodGet, fmt.Sprintf("/api/analysis/%d/chart", analysis.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var series struct {
		Labels []string  `json:"labels"`
		Values []float64 `json:"values"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &series))
	assert.Equal(t, []string{"Jan", "Feb", "Mar"}, series.Labels)
	assert.Equal(t, []float64{120, 0, 95.5}, series.Values)
}

func TestChartWithoutAxesIsBadRequest(t *testing.T) {
	env := newTestEnv(t)
	token, user := env.signup(t, "A", "a@x.com", "password1", "")

	analysis, err := env.analysisS.Upload(context.Background(), user.ID, "sales.xlsx", spreadsheet.MIMETypeXLSX,
		xlsxBytes(t, []string{"Month"}, [][]any{{"Jan"}}))
	require.NoError(t, err)

	rec := env.doJSON(t, http.MethodGet, fmt.Sprintf("/api/analysis/%d/chart", analysis.ID), token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
