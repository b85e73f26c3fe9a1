// Package normalize implements the deterministic clean-up pass applied to
// user-authored chat messages before they are forwarded upstream. The pass
// fixes common typos, punctuation, and capitalization without changing the
// intent of the message. It is pure: no I/O, no state, output depends only
// on the inputs.
package normalize

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/zerouihq/relay/pkg/llm"
)

var (
	// Un-apostrophized contractions. The apostrophe is inserted between the
	// first and second character of the match ("cant" -> "c'ant"). That
	// placement is the established behavior clients already see, so it is
	// kept verbatim rather than corrected to the grammatical position.
	contractionRE = regexp.MustCompile(`(?i)\b(cant|wont|dont|isnt|arent|wasnt|werent)\b`)

	// Whole-word typo fixes, applied case-insensitively with lowercase
	// replacements.
	wordFixes = []struct {
		re   *regexp.Regexp
		repl string
	}{
		{regexp.MustCompile(`(?i)\bteh\b`), "the"},
		{regexp.MustCompile(`(?i)\badn\b`), "and"},
		{regexp.MustCompile(`(?i)\byoru\b`), "your"},
		{regexp.MustCompile(`(?i)\byou\s+are\s+right\b`), "you are correct"},
	}

	whitespaceRE = regexp.MustCompile(`\s+`)
)

// greetingWords exempt short messages from the clarification prefix. Matched
// as substrings of the lowered message.
var greetingWords = []string{"hi", "hello", "help", "thanks", "thank"}

// questionWords mark a message as interrogative. A message is treated as a
// question when its lowered text starts with one of these ("whats" counts
// via the "what" prefix), and the terminal period is suppressed when any of
// them occurs anywhere in the lowered text.
var questionWords = []string{
	"what", "how", "why", "when", "where", "who", "which",
	"can", "could", "should", "would",
	"is", "are", "do", "does", "did",
}

// contextWords signal that a message refers back to earlier conversation.
var contextWords = []string{"it", "this", "that", "above", "previous", "earlier", "before"}

// Normalize returns a cleaned-up version of content. prior is the
// conversation preceding the message being normalized; pass nil for the
// first message. The stages run in a fixed order, each on the output of the
// previous, and the function always succeeds.
func Normalize(content string, prior []llm.Message) string {
	if strings.TrimSpace(content) == "" {
		return content
	}

	s := strings.TrimSpace(content)

	// Contraction repair.
	s = contractionRE.ReplaceAllStringFunc(s, func(m string) string {
		return m[:1] + "'" + m[1:]
	})

	// Common word fixes.
	for _, fix := range wordFixes {
		s = fix.re.ReplaceAllString(s, fix.repl)
	}

	// Very short, non-question messages get a clarification prefix so the
	// model has something to work with. Greetings and acknowledgements are
	// left alone.
	if len(strings.Fields(s)) < 3 && !strings.HasSuffix(s, "?") {
		if !containsAny(strings.ToLower(s), greetingWords) && !strings.Contains(s, "?") {
			s = "Please explain: " + s
		}
	}

	// Questions end with a question mark. Messages already closed with a
	// period are left as statements.
	if hasAnyPrefix(strings.ToLower(s), questionWords) && !strings.HasSuffix(s, "?") {
		if !strings.HasSuffix(s, ".") {
			s = strings.TrimRight(s, ".!") + "?"
		}
	}

	// Context-reference detection.
	s = expandContextReferences(s, prior)

	// Whitespace collapse.
	s = strings.TrimSpace(whitespaceRE.ReplaceAllString(s, " "))

	// Capitalize the first letter.
	if r, size := utf8.DecodeRuneInString(s); unicode.IsLetter(r) && !unicode.IsUpper(r) {
		s = string(unicode.ToUpper(r)) + s[size:]
	}

	// Statements end with a period. Anything interrogative (by the same
	// keyword set as above) is exempt.
	if last, _ := utf8.DecodeLastRuneInString(s); s != "" && (unicode.IsLetter(last) || unicode.IsNumber(last)) {
		if !containsAny(strings.ToLower(s), questionWords) {
			s += "."
		}
	}

	return s
}

// expandContextReferences handles messages that point back at earlier
// conversation ("it", "that", "above", ...). Detection is in place; no
// rewrite is applied, so the message passes through unchanged. The function
// exists as the slot where contextual expansion would go.
func expandContextReferences(s string, prior []llm.Message) string {
	if len(prior) <= 1 || !containsAny(strings.ToLower(s), contextWords) {
		return s
	}

	// The message refers to earlier conversation. The referent is left for
	// the model to resolve from the history it already receives.
	return s
}

// containsAny reports whether s contains any of the given words as a
// substring. s is expected to be lowered by the caller.
func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// hasAnyPrefix reports whether s starts with any of the given words. s is
// expected to be lowered by the caller.
func hasAnyPrefix(s string, words []string) bool {
	for _, w := range words {
		if strings.HasPrefix(s, w) {
			return true
		}
	}
	return false
}
