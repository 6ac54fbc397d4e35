package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sheetlytics/apiserver/internal/services"
	"github.com/sheetlytics/apiserver/internal/store"
	"github.com/sheetlytics/apiserver/types"
)

const (
	maxMultipartMemory = 32 << 20
	maxUploadBytes     = 64 << 20
	formFieldFile      = "file"
)

// AnalysisHandler provides HTTP handlers for uploads and analyses.
type AnalysisHandler struct {
	analysisService *services.AnalysisService
}

// NewAnalysisHandler constructs a handler with the provided service.
func NewAnalysisHandler(analysisService *services.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{analysisService: analysisService}
}

// AnalysisRouter registers upload, history, and analysis routes on the
// given router. All routes require authentication.
func AnalysisRouter(r chi.Router, analysisService *services.AnalysisService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewAnalysisHandler(analysisService)

	r.With(authMiddleware).Post("/upload", handler.Upload)
	r.With(authMiddleware).Get("/history", handler.History)
	r.With(authMiddleware).Post("/analysis", handler.Configure)
	r.With(authMiddleware).Get("/analysis/{analysisID}/chart", handler.Chart)
}

// Upload accepts a multipart spreadsheet, runs the parse pipeline, and
// returns the parsed rows with the new analysis id.
func (h *AnalysisHandler) Upload(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "not authorized to access this route")
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "no file uploaded or invalid file type")
		return
	}

	file, header, err := r.FormFile(formFieldFile)
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file uploaded or invalid file type")
		return
	}

	content, err := readFileLimited(file, maxUploadBytes)
	_ = file.Close()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	analysis, err := h.analysisService.Upload(
		r.Context(),
		user.ID,
		header.Filename,
		header.Header.Get("Content-Type"),
		content,
	)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUnsupportedFileType):
			writeError(w, http.StatusBadRequest, "no file uploaded or invalid file type")
		case errors.Is(err, services.ErrParseFailed):
			writeError(w, http.StatusInternalServerError, "error reading spreadsheet file")
		default:
			writeError(w, http.StatusInternalServerError, "failed to process upload")
		}
		return
	}

	writeJSON(w, http.StatusOK, UploadResponse{
		Message:    "file uploaded and parsed successfully",
		Data:       analysis.Data,
		AnalysisID: analysis.ID,
	})
}

// History returns the caller's analyses, newest first, capped at 50.
func (h *AnalysisHandler) History(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "not authorized to access this route")
		return
	}

	analyses, err := h.analysisService.History(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	writeJSON(w, http.StatusOK, analyses)
}

// Configure persists the chart axes and kind on one of the caller's
// analyses.
func (h *AnalysisHandler) Configure(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "not authorized to access this route")
		return
	}

	var req ConfigureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.AnalysisID < 1 {
		writeError(w, http.StatusBadRequest, "analysisId is required")
		return
	}

	analysis, err := h.analysisService.Configure(r.Context(), user.ID, req.AnalysisID, req.XAxis, req.YAxis, req.ChartType)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "analysis not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update analysis")
		return
	}

	writeJSON(w, http.StatusOK, analysis)
}

// Chart returns the label/value series for one of the caller's analyses.
// Query parameters x and y override the stored axis configuration.
func (h *AnalysisHandler) Chart(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "not authorized to access this route")
		return
	}

	analysisID, err := parseInt64Param(r, "analysisID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	series, err := h.analysisService.Chart(
		r.Context(),
		user.ID,
		analysisID,
		r.URL.Query().Get("x"),
		r.URL.Query().Get("y"),
	)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "analysis not found")
		case errors.Is(err, services.ErrAxesNotConfigured):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to build chart data")
		}
		return
	}

	writeJSON(w, http.StatusOK, series)
}

type ConfigureRequest struct {
	AnalysisID int64  `json:"analysisId"`
	XAxis      string `json:"xAxis"`
	YAxis      string `json:"yAxis"`
	ChartType  string `json:"chartType"`
}

type UploadResponse struct {
	Message    string      `json:"message"`
	Data       []types.Row `json:"data"`
	AnalysisID int64       `json:"analysisId"`
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("uploaded file exceeds %d bytes", limit)
	}
	return data, nil
}
