// Package ingress implements the public HTTP surface (C9): receiving
// inbound SMS into the durable input queue and running the onboarding
// sub-protocol's registration/status/deactivation endpoints. Grounded on
// services/sms-service/service.go's handler shape (chi routing,
// jsonResponse/jsonError helpers, context-scoped request handling).
package ingress

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/brivas/sms-validation-bridge/packages/errs"
	"github.com/brivas/sms-validation-bridge/packages/idgen"
	"github.com/brivas/sms-validation-bridge/packages/model"
	"github.com/brivas/sms-validation-bridge/packages/onboarding"
	"github.com/brivas/sms-validation-bridge/packages/settings"
	"github.com/brivas/sms-validation-bridge/packages/store"
)

// Service handles ingress and onboarding HTTP requests.
type Service struct {
	store      *store.Client
	onboarding *onboarding.Registry
	settings   *settings.Store
	logger     *zap.Logger
}

// New builds a Service.
func New(client *store.Client, registry *onboarding.Registry, settingsStore *settings.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: client, onboarding: registry, settings: settingsStore, logger: logger}
}

// Routes returns the public chi router: ingress, onboarding, and health.
func (s *Service) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/sms/receive", s.handleReceive)
	r.Post("/onboarding/register", s.handleOnboardingRegister)
	r.Get("/onboarding/status/{mobile_number}", s.handleOnboardingStatus)
	r.Delete("/onboarding/{mobile_number}", s.handleOnboardingDeactivate)
	r.Get("/health", s.handleHealth)

	return r
}

type receiveRequest struct {
	SenderNumber      string     `json:"sender_number"`
	SMSMessage        string     `json:"sms_message"`
	ReceivedTimestamp *time.Time `json:"received_timestamp"`
}

type receiveResponse struct {
	Status string `json:"status"`
}

// handleReceive accepts one inbound SMS and queues it durably. It performs
// no validation beyond basic shape — the pipeline, not ingress, is where
// the six checks run.
func (s *Service) handleReceive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req receiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Info("reject malformed ingress request", zap.Error(fmt.Errorf("%w: %v", errs.InputMalformed, err)))
		s.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.SenderNumber == "" || req.SMSMessage == "" {
		s.logger.Info("reject malformed ingress request",
			zap.Error(fmt.Errorf("%w: missing required fields", errs.InputMalformed)))
		s.jsonError(w, "missing required fields: sender_number, sms_message", http.StatusBadRequest)
		return
	}

	uuid, err := idgen.NewMessageID()
	if err != nil {
		s.logger.Error("generate message id failed", zap.Error(err))
		s.jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	// The caller may supply received_timestamp (spec.md §6) so the boundary
	// scenarios around the validation time window can be driven precisely;
	// absent that, the server stamps arrival time itself.
	receivedAt := time.Now().UTC()
	if req.ReceivedTimestamp != nil {
		receivedAt = req.ReceivedTimestamp.UTC()
	}

	msg := model.InputMessage{
		UUID:              uuid,
		SenderNumber:      req.SenderNumber,
		SMSMessage:        req.SMSMessage,
		ReceivedTimestamp: receivedAt,
	}

	if _, err := s.store.Exec(ctx,
		`INSERT INTO input_sms (uuid, sender_number, sms_message, received_timestamp) VALUES ($1,$2,$3,$4)`,
		msg.UUID, msg.SenderNumber, msg.SMSMessage, msg.ReceivedTimestamp,
	); err != nil {
		s.logger.Error("insert input_sms failed", zap.Error(err))
		s.jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.jsonResponse(w, receiveResponse{Status: "received"}, http.StatusOK)
}

type registerRequest struct {
	MobileNumber string `json:"mobile_number"`
}

type registerResponse struct {
	MobileNumber string `json:"mobile_number"`
	Hash         string `json:"hash"`
	Message      string `json:"message"`
}

// handleOnboardingRegister issues a fresh salt/hash pair for a mobile
// number. The hash is returned to the caller, who is expected to relay it
// back in an "ONBOARD:<hash>" message from that number within the
// configured time window.
func (s *Service) handleOnboardingRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.MobileNumber == "" {
		s.jsonError(w, "missing required field: mobile_number", http.StatusBadRequest)
		return
	}

	saltLength, err := s.settings.GetInt(ctx, "hash_salt_length", 16)
	if err != nil {
		s.logger.Error("read hash_salt_length failed", zap.Error(err))
		s.jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	rec, err := s.onboarding.Register(ctx, req.MobileNumber, saltLength)
	if errors.Is(err, onboarding.ErrAlreadyActive) {
		s.jsonError(w, "mobile number already has an active onboarding request", http.StatusConflict)
		return
	}
	if err != nil {
		s.logger.Error("register onboarding failed", zap.Error(err))
		s.jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	// message is the literal body the caller relays back verbatim from the
	// registered number to complete onboarding (original_source's test
	// harness does exactly this).
	s.jsonResponse(w, registerResponse{
		MobileNumber: rec.MobileNumber,
		Hash:         rec.Hash,
		Message:      "ONBOARD:" + rec.Hash,
	}, http.StatusOK)
}

type statusResponse struct {
	MobileNumber     string    `json:"mobile_number"`
	IsActive         bool      `json:"is_active"`
	RequestTimestamp time.Time `json:"request_timestamp"`
	SMSValidated     bool      `json:"sms_validated"`
}

// handleOnboardingStatus reports activation state without exposing the
// salt or hash — those are only ever returned once, at registration time.
func (s *Service) handleOnboardingStatus(w http.ResponseWriter, r *http.Request) {
	mobileNumber := chi.URLParam(r, "mobile_number")

	rec, err := s.onboarding.Status(r.Context(), mobileNumber)
	if errors.Is(err, onboarding.ErrNotFound) {
		s.jsonError(w, "mobile number not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("onboarding status failed", zap.Error(err))
		s.jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.jsonResponse(w, statusResponse{
		MobileNumber:     rec.MobileNumber,
		IsActive:         rec.IsActive,
		RequestTimestamp: rec.RequestTimestamp,
		SMSValidated:     rec.SMSValidated,
	}, http.StatusOK)
}

// handleOnboardingDeactivate revokes a mobile number's active onboarding
// registration.
func (s *Service) handleOnboardingDeactivate(w http.ResponseWriter, r *http.Request) {
	mobileNumber := chi.URLParam(r, "mobile_number")

	err := s.onboarding.Deactivate(r.Context(), mobileNumber)
	if errors.Is(err, onboarding.ErrNotFound) {
		s.jsonError(w, "mobile number not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("onboarding deactivate failed", zap.Error(err))
		s.jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Health(r.Context()); err != nil {
		s.jsonError(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	s.jsonResponse(w, map[string]string{"status": "healthy"}, http.StatusOK)
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
