package llm

// ErrorEvent is a terminal line in the relay's line-delimited stream. The
// relay emits at most one per stream, always as the last line; clients must
// treat any line carrying an "error" field as the end of the stream.
type ErrorEvent struct {
	Error string `json:"error"`
}
