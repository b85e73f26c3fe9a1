package relay

import (
	"fmt"
	"strings"
)

// errorRule pairs a predicate over upstream error text with the translated
// client-facing message. Matching on free-text error strings is inherently
// fragile, so the rules live in one ordered table instead of being scattered
// through the streaming loop.
type errorRule struct {
	match   func(errText string) bool
	message func(errText, model string) string
}

// errorRules is evaluated top to bottom; the first match wins.
var errorRules = []errorRule{
	// Ollama reports a cold model load that outlasted its llama runner
	// startup window as a timeout. The request is usually fine on retry
	// once the model is resident.
	{
		match: func(errText string) bool {
			return strings.Contains(errText, "timed out waiting for llama runner") ||
				strings.Contains(strings.ToLower(errText), "timeout")
		},
		message: func(_, model string) string {
			return fmt.Sprintf("Model loading timeout. The model may be loading for the first time. "+
				"Please try again in a moment, or check if the model %q is properly installed in Ollama.", model)
		},
	},
	// Unknown model: tell the caller how to install it.
	{
		match: func(errText string) bool {
			lower := strings.ToLower(errText)
			return strings.Contains(lower, "model") &&
				(strings.Contains(lower, "not found") || strings.Contains(lower, "does not exist"))
		},
		message: func(_, model string) string {
			return fmt.Sprintf("Model %q not found in Ollama. Please install it using: ollama pull %s", model, model)
		},
	},
}

// translateBackendError maps raw upstream error text to actionable guidance.
// model is the resolved model name the request was forwarded with. Errors no
// rule recognizes pass through verbatim.
func translateBackendError(errText, model string) string {
	for _, rule := range errorRules {
		if rule.match(errText) {
			return rule.message(errText, model)
		}
	}
	return errText
}
