package relay

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/zerouihq/relay/pkg/llm"
)

// PreloadRequest is the (optional) body of POST /model/preload.
type PreloadRequest struct {
	ModelName string `json:"model_name"`
}

// PreloadResponse reports the outcome of a preload attempt. A timeout is a
// distinct non-error outcome: the model may well still be loading.
type PreloadResponse struct {
	Status  string `json:"status"`
	Model   string `json:"model"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// handlePreload forces Ollama to load a model into memory by sending it a
// minimal non-streaming chat request, so that the first real completion does
// not pay the cold-load cost.
func (r *Relay) handlePreload(c *fiber.Ctx) error {
	var req PreloadRequest
	if len(c.Body()) > 0 {
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorEvent{Error: "invalid request body"})
		}
	}

	model := req.ModelName
	if model == "" {
		model = r.config.DefaultModel
	}

	payload := llm.ChatPayload{
		Model:    model,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "test"}},
		Stream:   false,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorEvent{Error: "internal error"})
	}

	httpReq, err := http.NewRequestWithContext(c.Context(), http.MethodPost, r.config.UpstreamURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorEvent{Error: "internal error"})
	}
	httpReq.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	r.logger.Info("preloading model", zap.String("model", model))

	httpResp, err := r.preloadClient.Do(httpReq)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return c.JSON(PreloadResponse{
				Status:  "timeout",
				Model:   model,
				Message: fmt.Sprintf("Model %s pre-load timed out, but it may still be loading", model),
			})
		}

		return c.JSON(PreloadResponse{
			Status: "error",
			Model:  model,
			Error:  fmt.Sprintf("Cannot connect to Ollama server at %s", r.config.UpstreamURL),
		})
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(httpResp.Body)
		return c.JSON(PreloadResponse{
			Status: "error",
			Model:  model,
			Error:  fmt.Sprintf("Failed to pre-load model: %s", string(respBody)),
		})
	}

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, httpResp.Body)

	return c.JSON(PreloadResponse{
		Status:  "success",
		Model:   model,
		Message: fmt.Sprintf("Model %s pre-loaded successfully", model),
	})
}
