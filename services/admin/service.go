// Package admin implements the JWT-protected operator surface (A4):
// inspecting and editing system_settings, reading a message's monitor row,
// and resetting the pipeline cursor. Grounded on services/sms-service's
// handler shape and packages/adminauth's Middleware/RequireRole.
package admin

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/brivas/sms-validation-bridge/packages/adminauth"
	"github.com/brivas/sms-validation-bridge/packages/pipeline"
	"github.com/brivas/sms-validation-bridge/packages/settings"
)

// Service handles admin HTTP requests.
type Service struct {
	settings *settings.Store
	monitor  *pipeline.MonitorReader
	cursor   pipeline.CursorStore
	auth     *adminauth.Engine
	logger   *zap.Logger
}

// New builds a Service.
func New(settingsStore *settings.Store, monitor *pipeline.MonitorReader, cursor pipeline.CursorStore, auth *adminauth.Engine, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{settings: settingsStore, monitor: monitor, cursor: cursor, auth: auth, logger: logger}
}

// Routes returns the admin chi router. Every route requires a valid bearer
// token; PUT/POST routes additionally require the admin role.
func (s *Service) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.auth.Middleware)

	r.Get("/admin/settings", s.requireAny(s.handleListSettings))
	r.Put("/admin/settings/{key}", s.requireAdmin(s.handleSetSetting))
	r.Get("/admin/monitor/{uuid}", s.requireAny(s.handleGetMonitor))
	r.Post("/admin/cursor/reset", s.requireAdmin(s.handleResetCursor))

	return r
}

func (s *Service) requireAny(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		adminauth.RequireRole(h, adminauth.RoleAdmin, adminauth.RoleReadonly).ServeHTTP(w, r)
	}
}

func (s *Service) requireAdmin(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		adminauth.RequireRole(h, adminauth.RoleAdmin).ServeHTTP(w, r)
	}
}

func (s *Service) handleListSettings(w http.ResponseWriter, r *http.Request) {
	all, err := s.settings.All(r.Context())
	if err != nil {
		s.logger.Error("list settings failed", zap.Error(err))
		s.jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.jsonResponse(w, all, http.StatusOK)
}

type setSettingRequest struct {
	Value string `json:"value"`
}

func (s *Service) handleSetSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var req setSettingRequest
	if jsonErr := json.Unmarshal(body, &req); jsonErr != nil || req.Value == "" {
		s.jsonError(w, "missing required field: value", http.StatusBadRequest)
		return
	}

	if err := s.settings.Set(r.Context(), key, req.Value); err != nil {
		s.logger.Error("set setting failed", zap.String("key", key), zap.Error(err))
		s.jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.jsonResponse(w, map[string]string{"key": key, "value": req.Value}, http.StatusOK)
}

func (s *Service) handleGetMonitor(w http.ResponseWriter, r *http.Request) {
	uuid := chi.URLParam(r, "uuid")

	pm, err := s.monitor.Get(r.Context(), uuid)
	if errors.Is(err, pipeline.ErrNotFound) {
		s.jsonError(w, "monitor row not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("get monitor row failed", zap.Error(err))
		s.jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.jsonResponse(w, pm, http.StatusOK)
}

type resetCursorRequest struct {
	UUID string `json:"uuid"`
}

// handleResetCursor rewinds last_processed_uuid, letting an operator
// re-run the pipeline over a range of already-processed messages — the
// monitor and outbound upserts are idempotent by design (see
// packages/pipeline's Record and packages/outbound's persist), so a
// re-run is safe.
func (s *Service) handleResetCursor(w http.ResponseWriter, r *http.Request) {
	var req resetCursorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.cursor.SetCursor(r.Context(), req.UUID); err != nil {
		s.logger.Error("reset cursor failed", zap.Error(err))
		s.jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.jsonResponse(w, map[string]string{"last_processed_uuid": req.UUID}, http.StatusOK)
}

func (s *Service) jsonResponse(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Service) jsonError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg, "status": "error"})
}
