package fileutils

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
)

var codeFence = regexp.MustCompile("(?s)^```[A-Za-z0-9_-]*[ \t]*\\r?\\n?(.*?)\\s*```$")

// StripCodeFence removes a surrounding markdown code fence (```json ... ```), if present.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if m := codeFence.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

// DecodeModelJSON unmarshals JSON from a model response, with a small amount of robustness
// for cases where the model wraps the JSON in a code fence or extra text, or returns leading/trailing whitespace.
func DecodeModelJSON(outputText string, v any) error {
	s := StripCodeFence(outputText)
	if s == "" {
		return io.ErrUnexpectedEOF
	}

	// Fast path: valid JSON as-is.
	if err := json.Unmarshal([]byte(s), v); err == nil {
		return nil
	}

	// Fallback: attempt to extract the outermost JSON object or array.
	opener, closer := byte('{'), byte('}')
	if i := strings.IndexAny(s, "{["); i >= 0 && s[i] == '[' {
		opener, closer = '[', ']'
	}
	start := strings.IndexByte(s, opener)
	end := strings.LastIndexByte(s, closer)
	if start == -1 || end == -1 || end <= start {
		return fmt.Errorf("no JSON value found in model output (len=%d)", len(s))
	}

	sub := s[start : end+1]
	if err := json.Unmarshal([]byte(sub), v); err != nil {
		return fmt.Errorf("failed to unmarshal extracted JSON (len=%d): %w", len(sub), err)
	}
	return nil
}
