package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/custodia-labs/broker-core/internal/core/domain"
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// ReadyResponse reports each dependency's health
// @Description Readiness status per dependency
type ReadyResponse struct {
	Status string            `json:"status" example:"ready"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Pings the service store and task queue
// @Tags         Health
// @Produce      json
// @Success      200  {object}  ReadyResponse
// @Failure      503  {object}  ReadyResponse
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := ReadyResponse{Status: "ready", Checks: make(map[string]string, len(s.checks))}
	status := http.StatusOK
	for name, check := range s.checks {
		if err := check.Ping(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	writeJSON(w, status, resp)
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: s.version})
}

// Service endpoints

// handleProvision godoc
// @Summary      Provision a service
// @Description  Stores the service and asks the broker to create it. 201 when the broker finished, 202 while it is still working.
// @Description  A broker that finished with a failure still yields 201: the service record exists and its last_operation.state is "failed".
// @Tags         Services
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      domain.ProvisionRequest  true  "Service to provision"
// @Success      201      {object}  domain.Service  "Broker finished; check last_operation.state for succeeded or failed"
// @Success      202      {object}  domain.Service
// @Failure      400      {object}  ErrorResponse  "Invalid request body"
// @Failure      502      {object}  ErrorResponse  "Broker failure"
// @Router       /services [post]
func (s *Server) handleProvision(w http.ResponseWriter, r *http.Request) {
	var req domain.ProvisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	service, err := s.provisionService.Provision(r.Context(), domain.NewService(req))
	if err != nil {
		s.writeServiceError(w, "provision", err)
		return
	}

	// The record exists even when the broker failed synchronously, so a
	// FAILED operation is reported as created with its state in the body.
	status := http.StatusCreated
	if service.HasOperationInProgress() {
		status = http.StatusAccepted
	}
	writeJSON(w, status, service)
}

// handleGetService godoc
// @Summary      Get a service
// @Tags         Services
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Service ID"
// @Success      200  {object}  domain.Service
// @Failure      404  {object}  ErrorResponse  "Service not found"
// @Router       /services/{id} [get]
func (s *Server) handleGetService(w http.ResponseWriter, r *http.Request) {
	service, err := s.serviceQuery.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, "get service", err)
		return
	}
	writeJSON(w, http.StatusOK, service)
}

// handleGetLastOperation godoc
// @Summary      Get a service's last operation
// @Tags         Services
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Service ID"
// @Success      200  {object}  domain.Operation
// @Failure      404  {object}  ErrorResponse  "Service or operation not found"
// @Router       /services/{id}/last_operation [get]
func (s *Server) handleGetLastOperation(w http.ResponseWriter, r *http.Request) {
	op, err := s.serviceQuery.LastOperation(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, "get last operation", err)
		return
	}
	writeJSON(w, http.StatusOK, op)
}

// handleDeprovision godoc
// @Summary      Deprovision a service
// @Description  Starts tearing the service down. Progress is visible through last_operation.
// @Tags         Services
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Service ID"
// @Success      202  {object}  StatusResponse
// @Failure      404  {object}  ErrorResponse  "Service not found"
// @Failure      409  {object}  ErrorResponse  "Operation in progress or service locked"
// @Router       /services/{id} [delete]
func (s *Server) handleDeprovision(w http.ResponseWriter, r *http.Request) {
	if err := s.deprovisionService.Deprovision(r.Context(), r.PathValue("id")); err != nil {
		s.writeServiceError(w, "deprovision", err)
		return
	}
	writeJSON(w, http.StatusAccepted, StatusResponse{Status: "accepted"})
}

// writeServiceError maps domain errors onto HTTP statuses
func (s *Server) writeServiceError(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "service not found")
	case errors.Is(err, domain.ErrOperationInProgress):
		writeError(w, http.StatusConflict, domain.ErrOperationInProgress.Error())
	case errors.Is(err, domain.ErrLocked):
		writeError(w, http.StatusConflict, "service is locked by another operation")
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "service already exists")
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrInvalidState):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		s.logger.Error(action+" failed", "error", err)
		writeError(w, http.StatusInternalServerError, action+" failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
