package relay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zerouihq/relay/pkg/llm"
	"github.com/zerouihq/relay/pkg/normalize"
	"github.com/zerouihq/relay/pkg/utils"
)

// modelPlaceholder is the sentinel clients send when no model was chosen
// (a swagger-ui artifact). It must never be forwarded upstream.
const modelPlaceholder = "string"

// handleChat relays a chat completion request to Ollama and streams the
// line-delimited response back to the client. The response is always 200
// with an event-stream content type; every failure mode surfaces as a
// single terminal {"error": ...} line inside the stream.
func (r *Relay) handleChat(c *fiber.Ctx) error {
	log := r.logger.With(zap.String("request_id", uuid.NewString()))

	var req llm.ChatRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		log.Warn("malformed chat request", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorEvent{Error: "invalid request body"})
	}

	model := resolveModel(req.Model, r.config.DefaultModel)
	if model != req.Model {
		log.Warn("unusable model name, using default",
			zap.String("requested", req.Model),
			zap.String("default", r.config.DefaultModel),
		)
	}

	payload := llm.ChatPayload{
		Model:    model,
		Messages: prepareMessages(req.Messages),
		Stream:   req.Streaming(),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		log.Error("failed to encode upstream payload", zap.Error(err))
		return r.sendErrorEvent(c, "Internal server error")
	}

	var preview string
	if n := len(payload.Messages); n > 0 {
		preview = utils.Truncate(payload.Messages[n-1].Content, 80)
	}
	log.Debug("forwarding chat request to upstream",
		zap.String("model", model),
		zap.Int("message_count", len(payload.Messages)),
		zap.Bool("stream", payload.Stream),
		zap.String("last_message", preview),
	)

	// Use context.Background() instead of c.Context() because fasthttp
	// recycles its RequestCtx after the handler returns, but the streaming
	// goroutine keeps reading from the upstream connection. The connection
	// is released when the stream ends or the client goes away (the pipe
	// write fails and the goroutine unwinds).
	httpReq, err := http.NewRequestWithContext(context.Background(), http.MethodPost, r.config.UpstreamURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		log.Error("failed to create upstream request", zap.Error(err))
		return r.sendErrorEvent(c, "Internal server error")
	}
	httpReq.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	httpResp, err := r.chatClient.Do(httpReq)
	if err != nil {
		log.Error("upstream request failed", zap.Error(err))
		return r.sendErrorEvent(c, r.transportErrorMessage(err))
	}

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(httpResp.Body)
		httpResp.Body.Close()
		log.Error("upstream returned error",
			zap.Int("status", httpResp.StatusCode),
			zap.String("body", string(respBody)),
		)
		return r.sendErrorEvent(c, upstreamStatusError(httpResp.StatusCode, respBody))
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")

	// io.Pipe gives direct backpressure: pw.Write blocks until fasthttp
	// reads from the pipe and flushes to the TCP socket, so each upstream
	// line reaches the client as soon as it is relayed.
	pr, pw := io.Pipe()
	go r.streamUpstream(httpResp, pw, model, log)

	// Unknown size (-1) triggers chunked transfer encoding in fasthttp.
	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

// streamUpstream reads the upstream NDJSON stream line by line, forwarding
// data chunks verbatim and translating the first error line into a terminal
// client-facing error event. At most one error event is written, always as
// the final line.
func (r *Relay) streamUpstream(httpResp *http.Response, pw *io.PipeWriter, model string, log *zap.Logger) {
	defer httpResp.Body.Close()
	defer pw.Close()

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("panic while relaying stream", zap.Any("panic", rec))
			_, _ = io.WriteString(pw, errorEventLine("Internal server error"))
		}
	}()

	scanner := bufio.NewScanner(httpResp.Body)
	// Increase buffer size for large chunks
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		ev := classifyLine(line)
		switch ev.Kind {
		case LineError:
			log.Warn("upstream reported error mid-stream", zap.String("error", ev.ErrText))
			_, _ = io.WriteString(pw, errorEventLine(translateBackendError(ev.ErrText, model)))
			return

		case LineData:
			// Forward the chunk with its own line terminator. A write
			// error means the client disconnected; unwinding closes the
			// upstream body via the deferred Close.
			if _, err := pw.Write(ev.Raw); err != nil {
				log.Debug("client disconnected mid-stream", zap.Error(err))
				return
			}
			if _, err := pw.Write([]byte("\n")); err != nil {
				log.Debug("client disconnected mid-stream", zap.Error(err))
				return
			}
		}
	}

	if err := scanner.Err(); err != nil {
		log.Error("error reading upstream stream", zap.Error(err))
		_, _ = io.WriteString(pw, errorEventLine(r.transportErrorMessage(err)))
	}
}

// sendErrorEvent sends a stream consisting of exactly one terminal error
// event line. Used for failures that occur before any upstream output has
// been relayed.
func (r *Relay) sendErrorEvent(c *fiber.Ctx, msg string) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	return c.SendString(errorEventLine(msg))
}

// errorEventLine renders a terminal error event as one newline-terminated
// JSON line.
func errorEventLine(msg string) string {
	b, _ := json.Marshal(llm.ErrorEvent{Error: msg})
	return string(b) + "\n"
}

// resolveModel applies the relay's model fallback: an empty, whitespace-only,
// or placeholder model name resolves to the configured default; anything
// else is forwarded trimmed.
func resolveModel(requested, fallback string) string {
	trimmed := strings.TrimSpace(requested)
	if trimmed == "" || strings.EqualFold(trimmed, modelPlaceholder) {
		return fallback
	}
	return trimmed
}

// prepareMessages runs each user message through the normalizer with the
// messages before it as conversation context. Assistant and system messages
// are forwarded verbatim, and ordering is preserved.
func prepareMessages(messages []llm.Message) []llm.Message {
	prepared := make([]llm.Message, 0, len(messages))
	for i, msg := range messages {
		if msg.Role == llm.RoleUser {
			var prior []llm.Message
			if i > 0 {
				prior = messages[:i]
			}
			msg.Content = normalize.Normalize(msg.Content, prior)
		}
		prepared = append(prepared, msg)
	}
	return prepared
}

// upstreamStatusError derives the error message for a non-200 initial
// upstream response: the body's own "error" field when it parses, a generic
// status message otherwise.
func upstreamStatusError(status int, body []byte) string {
	var ev llm.ErrorEvent
	if err := json.Unmarshal(body, &ev); err == nil && ev.Error != "" {
		return ev.Error
	}
	return fmt.Sprintf("Ollama API error: %d", status)
}

// transportErrorMessage distinguishes a timed-out upstream exchange from an
// unreachable upstream.
func (r *Relay) transportErrorMessage(err error) string {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Request timeout to Ollama. Make sure Ollama is running and responsive."
	}
	return fmt.Sprintf("Cannot connect to Ollama server at %s. Make sure Ollama is running.", r.config.UpstreamURL)
}
