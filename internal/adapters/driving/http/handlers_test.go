package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/custodia-labs/broker-core/internal/adapters/driven/auth"
	"github.com/custodia-labs/broker-core/internal/adapters/driven/broker"
	"github.com/custodia-labs/broker-core/internal/adapters/driven/memory"
	"github.com/custodia-labs/broker-core/internal/adapters/driven/scheduler"
	"github.com/custodia-labs/broker-core/internal/core/domain"
	"github.com/custodia-labs/broker-core/internal/core/services"
)

// Mock services for testing

type mockProvisionService struct {
	provisionFn func(ctx context.Context, service *domain.Service) (*domain.Service, error)
}

func (m *mockProvisionService) Provision(ctx context.Context, service *domain.Service) (*domain.Service, error) {
	if m.provisionFn != nil {
		return m.provisionFn(ctx, service)
	}
	return nil, errors.New("not implemented")
}

type mockDeprovisionService struct {
	deprovisionFn func(ctx context.Context, serviceID string) error
}

func (m *mockDeprovisionService) Deprovision(ctx context.Context, serviceID string) error {
	if m.deprovisionFn != nil {
		return m.deprovisionFn(ctx, serviceID)
	}
	return errors.New("not implemented")
}

type mockServiceQuery struct {
	getFn           func(ctx context.Context, serviceID string) (*domain.Service, error)
	lastOperationFn func(ctx context.Context, serviceID string) (*domain.Operation, error)
}

func (m *mockServiceQuery) Get(ctx context.Context, serviceID string) (*domain.Service, error) {
	if m.getFn != nil {
		return m.getFn(ctx, serviceID)
	}
	return nil, errors.New("not implemented")
}

func (m *mockServiceQuery) LastOperation(ctx context.Context, serviceID string) (*domain.Operation, error) {
	if m.lastOperationFn != nil {
		return m.lastOperationFn(ctx, serviceID)
	}
	return nil, errors.New("not implemented")
}

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(ctx context.Context) error {
	return m.err
}

func newTestServer(svcs Services) *Server {
	if svcs.Provision == nil {
		svcs.Provision = &mockProvisionService{}
	}
	if svcs.Deprovision == nil {
		svcs.Deprovision = &mockDeprovisionService{}
	}
	if svcs.Query == nil {
		svcs.Query = &mockServiceQuery{}
	}
	return NewServer(DefaultConfig(), svcs, nil, nil)
}

func serve(s *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp.Error
}

func inProgress(opType domain.OperationType) *domain.Operation {
	op := domain.NewOperation(opType)
	return &op
}

func TestHealthHandler(t *testing.T) {
	server := &Server{version: "test"}

	req := httptest.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()

	server.handleHealth(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	var response StatusResponse
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Status != "ok" {
		t.Errorf("expected status 'ok', got %s", response.Status)
	}
}

func TestReadyHandler(t *testing.T) {
	server := &Server{checks: map[string]Pinger{"store": &mockPinger{}, "queue": &mockPinger{}}}

	rr := httptest.NewRecorder()
	server.handleReady(rr, httptest.NewRequest("GET", "/ready", nil))

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	var response ReadyResponse
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Status != "ready" {
		t.Errorf("expected status 'ready', got %s", response.Status)
	}
	if response.Checks["store"] != "ok" || response.Checks["queue"] != "ok" {
		t.Errorf("expected all checks ok, got %v", response.Checks)
	}
}

func TestReadyHandler_Unavailable(t *testing.T) {
	server := &Server{checks: map[string]Pinger{
		"store": &mockPinger{},
		"queue": &mockPinger{err: errors.New("connection refused")},
	}}

	rr := httptest.NewRecorder()
	server.handleReady(rr, httptest.NewRequest("GET", "/ready", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rr.Code)
	}

	var response ReadyResponse
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Checks["queue"] != "connection refused" {
		t.Errorf("expected queue failure to be reported, got %q", response.Checks["queue"])
	}
}

func TestVersionHandler(t *testing.T) {
	server := &Server{version: "1.2.3"}

	rr := httptest.NewRecorder()
	server.handleVersion(rr, httptest.NewRequest("GET", "/version", nil))

	var response VersionResponse
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Version != "1.2.3" {
		t.Errorf("expected version '1.2.3', got %s", response.Version)
	}
}

func TestWriteJSON(t *testing.T) {
	rr := httptest.NewRecorder()

	writeJSON(rr, http.StatusCreated, map[string]string{"foo": "bar"})

	if rr.Code != http.StatusCreated {
		t.Errorf("expected status 201, got %d", rr.Code)
	}
	if rr.Header().Get("Content-Type") != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", rr.Header().Get("Content-Type"))
	}
}

func TestHandleProvision(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		result     *domain.Operation
		err        error
		wantStatus int
	}{
		{
			name:       "finished synchronously",
			body:       `{"name":"orders-db","plan_id":"small"}`,
			result:     &domain.Operation{Type: domain.OperationTypeProvision, State: domain.OperationStateSucceeded},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "reconciling",
			body:       `{"name":"orders-db","plan_id":"small"}`,
			result:     inProgress(domain.OperationTypeProvision),
			wantStatus: http.StatusAccepted,
		},
		{
			name:       "failed synchronously",
			body:       `{"name":"orders-db","plan_id":"small"}`,
			result:     &domain.Operation{Type: domain.OperationTypeProvision, State: domain.OperationStateFailed, Message: "quota exceeded"},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "invalid json",
			body:       `{`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing name",
			body:       `{"plan_id":"small"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "broker reported unknown state",
			body:       `{"name":"orders-db"}`,
			err:        fmt.Errorf("provision service x: %w", domain.ErrInvalidState),
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "broker unreachable",
			body:       `{"name":"orders-db"}`,
			err:        errors.New("dial tcp: connection refused"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *domain.Service
			server := newTestServer(Services{Provision: &mockProvisionService{
				provisionFn: func(ctx context.Context, service *domain.Service) (*domain.Service, error) {
					got = service
					if tt.err != nil {
						return nil, tt.err
					}
					out := service.Clone()
					out.ID = "svc-1"
					out.LastOperation = tt.result
					return out, nil
				},
			}})

			rr := serve(server, "POST", "/api/v1/services", []byte(tt.body))

			if rr.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, rr.Code, rr.Body.String())
			}
			if tt.wantStatus >= 400 {
				return
			}

			if got == nil || got.Name != "orders-db" || got.PlanID != "small" {
				t.Errorf("expected request fields to reach the service, got %+v", got)
			}
			var service domain.Service
			if err := json.NewDecoder(rr.Body).Decode(&service); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if service.ID != "svc-1" {
				t.Errorf("expected id svc-1, got %s", service.ID)
			}
			if tt.result != nil && (service.LastOperation == nil || *service.LastOperation != *tt.result) {
				t.Errorf("expected last operation %+v, got %+v", tt.result, service.LastOperation)
			}
		})
	}
}

func TestHandleGetService(t *testing.T) {
	server := newTestServer(Services{Query: &mockServiceQuery{
		getFn: func(ctx context.Context, serviceID string) (*domain.Service, error) {
			if serviceID != "svc-1" {
				return nil, domain.ErrNotFound
			}
			return &domain.Service{ID: "svc-1", Name: "orders-db"}, nil
		},
	}})

	rr := serve(server, "GET", "/api/v1/services/svc-1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var service domain.Service
	if err := json.NewDecoder(rr.Body).Decode(&service); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if service.Name != "orders-db" {
		t.Errorf("expected orders-db, got %s", service.Name)
	}

	rr = serve(server, "GET", "/api/v1/services/missing", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

func TestHandleGetLastOperation(t *testing.T) {
	server := newTestServer(Services{Query: &mockServiceQuery{
		lastOperationFn: func(ctx context.Context, serviceID string) (*domain.Operation, error) {
			if serviceID == "bare" {
				return nil, fmt.Errorf("service %s has no operation: %w", serviceID, domain.ErrNotFound)
			}
			return inProgress(domain.OperationTypeDeprovision), nil
		},
	}})

	rr := serve(server, "GET", "/api/v1/services/svc-1/last_operation", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var op domain.Operation
	if err := json.NewDecoder(rr.Body).Decode(&op); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if op.Type != domain.OperationTypeDeprovision || op.State != domain.OperationStateInProgress {
		t.Errorf("unexpected operation %s", op)
	}

	rr = serve(server, "GET", "/api/v1/services/bare/last_operation", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

func TestHandleDeprovision(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"accepted", nil, http.StatusAccepted},
		{"not found", fmt.Errorf("deprovision service x: %w", domain.ErrNotFound), http.StatusNotFound},
		{"operation in progress", fmt.Errorf("deprovision service x: %w", domain.ErrOperationInProgress), http.StatusConflict},
		{"locked", fmt.Errorf("service x: %w", domain.ErrLocked), http.StatusConflict},
		{"invalid input", domain.ErrInvalidInput, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotID string
			server := newTestServer(Services{Deprovision: &mockDeprovisionService{
				deprovisionFn: func(ctx context.Context, serviceID string) error {
					gotID = serviceID
					return tt.err
				},
			}})

			rr := serve(server, "DELETE", "/api/v1/services/svc-1", nil)
			if rr.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rr.Code)
			}
			if gotID != "svc-1" {
				t.Errorf("expected svc-1, got %q", gotID)
			}
		})
	}
}

func TestServer_RequiresTokenWhenAuthConfigured(t *testing.T) {
	authService := services.NewAuthService(auth.NewAdapter("secret"), "", time.Hour)
	server := newTestServer(Services{
		Auth: authService,
		Query: &mockServiceQuery{
			getFn: func(ctx context.Context, serviceID string) (*domain.Service, error) {
				if claims := GetClaims(ctx); claims == nil || claims.Subject != "operator" {
					t.Errorf("expected claims for operator in context, got %+v", claims)
				}
				return &domain.Service{ID: serviceID}, nil
			},
		},
	})

	rr := serve(server, "GET", "/api/v1/services/svc-1", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 without token, got %d", rr.Code)
	}
	if msg := decodeError(t, rr); msg != "missing authorization token" {
		t.Errorf("unexpected error %q", msg)
	}

	token, err := authService.IssueToken(context.Background(), "operator")
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	req := httptest.NewRequest("GET", "/api/v1/services/svc-1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200 with token, got %d", rr.Code)
	}

	// health stays public
	rr = serve(server, "GET", "/health", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("expected /health to be public, got %d", rr.Code)
	}
}

func TestServer_MetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})
	server := NewServer(DefaultConfig(), Services{}, metrics, nil)

	rr := serve(server, "GET", "/metrics", nil)
	if rr.Code != http.StatusOK || rr.Body.String() != "# metrics" {
		t.Errorf("expected metrics handler to be mounted, got %d %q", rr.Code, rr.Body.String())
	}
}

// TestServer_Lifecycle drives the API against the real services, the
// in-memory store and a simulated broker that needs one poll to finish.
func TestServer_Lifecycle(t *testing.T) {
	store := memory.NewServiceStore()
	sched := scheduler.NewInProcess(scheduler.InProcessConfig{})
	defer sched.Stop()

	cfg := services.LifecycleConfig{
		Store:      store,
		Broker:     broker.NewSimulated(broker.SimulatedConfig{Polls: 1}),
		Scheduler:  sched,
		RetryDelay: 10 * time.Millisecond,
	}
	server := newTestServer(Services{
		Provision:   services.NewProvisionService(cfg),
		Deprovision: services.NewDeprovisionService(cfg),
		Query:       services.NewServiceQuery(store),
	})

	rr := serve(server, "POST", "/api/v1/services", []byte(`{"name":"orders-db","plan_id":"small"}`))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", rr.Code, rr.Body.String())
	}
	var created domain.Service
	if err := json.NewDecoder(rr.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	// the job may hit the request's lock once and retry after RetryDelay
	eventually(t, func() bool {
		rr := serve(server, "GET", "/api/v1/services/"+created.ID+"/last_operation", nil)
		var op domain.Operation
		_ = json.NewDecoder(rr.Body).Decode(&op)
		return op.State == domain.OperationStateSucceeded
	}, "provision to succeed")

	// the job's lock can outlive the write by a moment
	eventually(t, func() bool {
		return serve(server, "DELETE", "/api/v1/services/"+created.ID, nil).Code == http.StatusAccepted
	}, "deprovision to be accepted")

	eventually(t, func() bool {
		return serve(server, "GET", "/api/v1/services/"+created.ID, nil).Code == http.StatusNotFound
	}, "deprovisioned service to be gone")
}

func eventually(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
