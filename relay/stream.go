package relay

import "encoding/json"

// LineKind tags a single line of the upstream stream.
type LineKind int

const (
	// LineData is a normal partial-completion chunk. The relay treats it
	// as opaque and forwards it verbatim, whether or not it is JSON.
	LineData LineKind = iota

	// LineError is a JSON object carrying an "error" field. It terminates
	// the stream after translation.
	LineError
)

// StreamLine is one classified line of the upstream stream.
type StreamLine struct {
	Kind    LineKind
	Raw     []byte
	ErrText string
}

// classifyLine decides how a single upstream line is handled. Lines that
// parse as a JSON object with a string "error" field become LineError;
// everything else, including opaque non-JSON text, passes through as
// LineData. Keeping this a pure classification lets the forwarding loop stay
// a plain dispatch over the result.
func classifyLine(line []byte) StreamLine {
	var probe struct {
		Error *string `json:"error"`
	}
	if err := json.Unmarshal(line, &probe); err == nil && probe.Error != nil {
		return StreamLine{Kind: LineError, Raw: line, ErrText: *probe.Error}
	}

	return StreamLine{Kind: LineData, Raw: line}
}
