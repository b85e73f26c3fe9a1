package relay

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// HealthResponse reports relay and upstream connectivity status.
type HealthResponse struct {
	Status          string `json:"status"`
	OllamaConnected bool   `json:"ollama_connected"`
	Error           string `json:"error,omitempty"`
}

// ResponsesStatusResponse reports whether the chat endpoint is ready to
// serve completions.
type ResponsesStatusResponse struct {
	Status            string `json:"status"`
	OllamaEndpoint    string `json:"ollama_endpoint"`
	ResponsesEndpoint string `json:"responses_endpoint"`
	OllamaConnected   bool   `json:"ollama_connected"`
	Error             string `json:"error,omitempty"`
}

// EndpointInfoResponse reports the configured endpoints.
type EndpointInfoResponse struct {
	OllamaEndpoint string `json:"ollama_endpoint"`
	RelayEndpoint  string `json:"relay_endpoint"`
	Status         string `json:"status"`
}

// handleRoot returns a service banner.
func (r *Relay) handleRoot(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": "Zeroui AI Agent relay server",
		"status":  "running",
	})
}

// handleHealth probes Ollama's model-list endpoint and reports connectivity.
func (r *Relay) handleHealth(c *fiber.Ctx) error {
	ok, err := r.upstreamReachable(c.Context())
	switch {
	case err != nil:
		return c.JSON(HealthResponse{Status: "unhealthy", OllamaConnected: false, Error: err.Error()})
	case !ok:
		return c.JSON(HealthResponse{Status: "degraded", OllamaConnected: false})
	default:
		return c.JSON(HealthResponse{Status: "healthy", OllamaConnected: true})
	}
}

// handleResponsesStatus reports whether the chat endpoint can currently
// serve completions, with the configured endpoints for the client's benefit.
func (r *Relay) handleResponsesStatus(c *fiber.Ctx) error {
	resp := ResponsesStatusResponse{
		OllamaEndpoint:    r.config.UpstreamURL,
		ResponsesEndpoint: "/chat",
	}

	ok, err := r.upstreamReachable(c.Context())
	switch {
	case err != nil:
		resp.Status = "unavailable"
		resp.Error = err.Error()
	case !ok:
		resp.Status = "degraded"
	default:
		resp.Status = "ready"
		resp.OllamaConnected = true
	}

	return c.JSON(resp)
}

// handleEndpointInfo reports the configured upstream and relay endpoints.
func (r *Relay) handleEndpointInfo(c *fiber.Ctx) error {
	relayEndpoint := r.config.ListenAddr
	if strings.HasPrefix(relayEndpoint, ":") {
		relayEndpoint = "http://localhost" + relayEndpoint
	}

	return c.JSON(EndpointInfoResponse{
		OllamaEndpoint: r.config.UpstreamURL,
		RelayEndpoint:  relayEndpoint,
		Status:         "configured",
	})
}

// upstreamReachable performs a single GET against Ollama's model-list
// endpoint. It reports whether the upstream answered 200, or an error when
// it could not be reached at all.
func (r *Relay) upstreamReachable(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.config.UpstreamURL+"/api/tags", nil)
	if err != nil {
		return false, err
	}

	resp, err := r.statusClient.Do(req)
	if err != nil {
		r.logger.Warn("upstream health probe failed", zap.Error(err))
		return false, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK, nil
}
