package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sheetlytics/apiserver/internal/metrics"
	"github.com/sheetlytics/apiserver/internal/services"
	"github.com/sheetlytics/apiserver/internal/store"
	"github.com/sheetlytics/apiserver/types"
)

// AdminHandler provides user management and reporting endpoints.
type AdminHandler struct {
	adminService *services.AdminService
	metrics      *metrics.Registry
}

// NewAdminHandler constructs a handler with the provided dependencies.
func NewAdminHandler(adminService *services.AdminService, registry *metrics.Registry) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
		metrics:      registry,
	}
}

// AdminRouter registers admin routes on the given router. Every route
// requires an authenticated admin.
func AdminRouter(r chi.Router, adminService *services.AdminService, registry *metrics.Registry, authMiddleware func(http.Handler) http.Handler) {
	handler := NewAdminHandler(adminService, registry)

	r.Use(authMiddleware, requireAdmin)
	r.Get("/users", handler.ListUsers)
	r.Get("/analytics/summary", handler.Summary)
	r.Get("/analytics/performance", handler.Performance)
	r.Get("/analytics/signups", handler.Signups)
	r.Route("/user/{userID}", func(r chi.Router) {
		r.Patch("/role", handler.SetRole)
		r.Delete("/", handler.DeleteUser)
		r.Get("/reports", handler.UserReports)
		r.Get("/activity", handler.UserActivity)
	})
	r.Delete("/analysis/{analysisID}", handler.DeleteAnalysis)
}

// requireAdmin gates a route on the authenticated user's role. The role
// comes from the record RequireAuth fetched for the verified token subject,
// never from anything the client sends.
func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := userFromContext(r.Context())
		if err != nil {
			writeError(w, http.StatusUnauthorized, "not authorized to access this route")
			return
		}
		if user.Role != types.RoleAdmin {
			writeError(w, http.StatusForbidden, "you do not have permission to perform this action")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ListUsers returns all users. Password hashes are never serialized.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.adminService.ListUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// Summary returns headline usage counts.
func (h *AdminHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.adminService.Summary(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build summary")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Performance returns the rolling average latency of each tracked endpoint.
func (h *AdminHandler) Performance(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.metrics.Averages())
}

// Signups returns the day-bucketed signup series for the trailing 30 days.
func (h *AdminHandler) Signups(w http.ResponseWriter, r *http.Request) {
	series, err := h.adminService.SignupSeries(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build signup series")
		return
	}
	writeJSON(w, http.StatusOK, series)
}

// SetRole changes a user's role.
func (h *AdminHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	userID, err := parseIntParam(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req SetRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	user, err := h.adminService.SetRole(r.Context(), userID, types.Role(req.Role))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidRole):
			writeError(w, http.StatusBadRequest, "invalid role")
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "user not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to update role")
		}
		return
	}

	writeJSON(w, http.StatusOK, SetRoleResponse{Message: "role updated", User: user})
}

// DeleteUser removes a user and all their analyses.
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, err := parseIntParam(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.adminService.DeleteUser(r.Context(), userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete user")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "user and their analyses deleted"})
}

// UserReports returns all analyses of one user, newest first.
func (h *AdminHandler) UserReports(w http.ResponseWriter, r *http.Request) {
	userID, err := parseIntParam(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	analyses, err := h.adminService.UserReports(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load reports")
		return
	}
	writeJSON(w, http.StatusOK, analyses)
}

// UserActivity returns the 20 most recent analyses of one user.
func (h *AdminHandler) UserActivity(w http.ResponseWriter, r *http.Request) {
	userID, err := parseIntParam(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	analyses, err := h.adminService.UserActivity(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load activity")
		return
	}
	writeJSON(w, http.StatusOK, analyses)
}

// DeleteAnalysis removes a single analysis.
func (h *AdminHandler) DeleteAnalysis(w http.ResponseWriter, r *http.Request) {
	analysisID, err := parseInt64Param(r, "analysisID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.adminService.DeleteAnalysis(r.Context(), analysisID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "analysis not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete analysis")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "analysis deleted"})
}

type SetRoleRequest struct {
	Role string `json:"role"`
}

type SetRoleResponse struct {
	Message string     `json:"message"`
	User    types.User `json:"user"`
}
