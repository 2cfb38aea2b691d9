// Package broker talks to the external service broker that actually
// creates and removes resources.
package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/custodia-labs/broker-core/internal/core/domain"
	"github.com/custodia-labs/broker-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.BrokerClient = (*Client)(nil)

// Config holds broker client configuration
type Config struct {
	// BaseURL is the broker's root, e.g. http://broker:8081
	BaseURL string

	// Signer signs a short-lived bearer token for every request. Nil disables auth.
	Signer driven.AuthAdapter

	// Subject and Audience go into the signed token
	Subject  string
	Audience string

	// TokenTTL bounds how long a signed request token is valid
	TokenTTL time.Duration

	// Timeout applies to each HTTP call
	Timeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:  baseURL,
		Subject:  "broker-core",
		Audience: "service-broker",
		TokenTTL: time.Minute,
		Timeout:  30 * time.Second,
	}
}

// Client is a BrokerClient speaking JSON over HTTP.
type Client struct {
	cfg        Config
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a new broker client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Minute
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
	}
}

// provisionRequest is the body sent when creating a service
type provisionRequest struct {
	Name       string            `json:"name,omitempty"`
	PlanID     string            `json:"plan_id,omitempty"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

// Provision asks the broker to create the service.
func (c *Client) Provision(ctx context.Context, service *domain.Service) (domain.OperationResult, error) {
	if service == nil || service.ID == "" {
		return domain.OperationResult{}, fmt.Errorf("provision: service id is required: %w", domain.ErrInvalidInput)
	}
	body, err := json.Marshal(provisionRequest{
		Name:       service.Name,
		PlanID:     service.PlanID,
		Parameters: service.Parameters,
	})
	if err != nil {
		return domain.OperationResult{}, fmt.Errorf("marshal provision request: %w", err)
	}
	return c.call(ctx, http.MethodPut, servicePath(service.ID), body)
}

// Deprovision asks the broker to remove the service.
// A broker answering 410 Gone no longer has the service, which counts as success.
func (c *Client) Deprovision(ctx context.Context, serviceID string) (domain.OperationResult, error) {
	return c.call(ctx, http.MethodDelete, servicePath(serviceID), nil)
}

// FetchLastOperation polls the state of the service's running operation.
func (c *Client) FetchLastOperation(ctx context.Context, serviceID string) (domain.OperationResult, error) {
	return c.call(ctx, http.MethodGet, servicePath(serviceID)+"/last_operation", nil)
}

func servicePath(id string) string {
	return "/v1/service_instances/" + url.PathEscape(id)
}

// operationResponse is the broker's answer to every call.
type operationResponse struct {
	State       domain.OperationState `json:"state"`
	Description string                `json:"description,omitempty"`
}

func (c *Client) call(ctx context.Context, method, path string, body []byte) (domain.OperationResult, error) {
	var result domain.OperationResult

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return result, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.Signer != nil {
		token, err := c.cfg.Signer.GenerateToken(domain.NewTokenClaims(c.cfg.Subject, c.cfg.Audience, c.cfg.TokenTTL))
		if err != nil {
			return result, fmt.Errorf("sign request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return result, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	// Gone means the instance no longer exists, which ends a deprovision.
	if resp.StatusCode == http.StatusGone && (method == http.MethodDelete || strings.HasSuffix(path, "/last_operation")) {
		return domain.OperationResult{State: domain.OperationStateSucceeded}, nil
	}
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return result, fmt.Errorf("broker error %d on %s %s: %s", resp.StatusCode, method, path, strings.TrimSpace(string(msg)))
	}

	var answer operationResponse
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return domain.OperationResult{}, fmt.Errorf("decode broker response: %w", err)
	}
	result = domain.OperationResult{State: answer.State, Message: answer.Description}
	if err := result.Validate(); err != nil {
		return domain.OperationResult{}, fmt.Errorf("broker response: %w", err)
	}
	return result, nil
}
