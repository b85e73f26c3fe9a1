package relay

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"

	"github.com/zerouihq/relay/pkg/llm"
)

// defaultMaxInputLength is the input length ceiling applied when the client
// does not send one.
const defaultMaxInputLength = 10000

// InputValidationRequest is the body of POST /input/validate.
type InputValidationRequest struct {
	Message   string `json:"message"`
	MaxLength int    `json:"max_length"`
}

// InputValidationResponse is the structured validation result. Validation
// failures are ordinary results, never stream interruptions or error
// statuses.
type InputValidationResponse struct {
	Valid         bool   `json:"valid"`
	Error         string `json:"error,omitempty"`
	MessageLength int    `json:"message_length,omitempty"`
	CurrentLength int    `json:"current_length,omitempty"`
	MaxLength     int    `json:"max_length,omitempty"`
}

// handleValidateInput checks a candidate message before submission: it must
// be non-empty after trimming and at most max_length characters long.
func (r *Relay) handleValidateInput(c *fiber.Ctx) error {
	var req InputValidationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorEvent{Error: "invalid request body"})
	}

	maxLength := req.MaxLength
	if maxLength <= 0 {
		maxLength = defaultMaxInputLength
	}

	if strings.TrimSpace(req.Message) == "" {
		return c.JSON(InputValidationResponse{
			Valid: false,
			Error: "Input cannot be empty",
		})
	}

	// Length is counted in characters, not bytes, so multi-byte input is
	// not penalized.
	length := utf8.RuneCountInString(req.Message)
	if length > maxLength {
		return c.JSON(InputValidationResponse{
			Valid:         false,
			Error:         fmt.Sprintf("Input exceeds maximum length of %d characters", maxLength),
			CurrentLength: length,
			MaxLength:     maxLength,
		})
	}

	return c.JSON(InputValidationResponse{
		Valid:         true,
		MessageLength: length,
	})
}
