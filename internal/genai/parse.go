package genai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/reino-app/bestias-backend/internal/archetype"
)

// ErrMalformedOutput indicates the resolver's response contained no
// well-formed JSON object, even after substring extraction. It is a distinct
// error kind so callers can tell a broken model contract apart from transport
// failures.
var ErrMalformedOutput = errors.New("malformed generation output")

// extractJSON attempts a strict decode of text, then falls back to decoding
// the first '{'..last '}' span so that responses wrapped in prose still
// parse. Both failing is ErrMalformedOutput.
func extractJSON(text string, out any) error {
	text = strings.TrimSpace(text)
	if err := json.Unmarshal([]byte(text), out); err == nil {
		return nil
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return ErrMalformedOutput
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), out); err != nil {
		return ErrMalformedOutput
	}
	return nil
}

// ParseTriple decodes a resolver response into a validated archetype triple.
// The element may arrive as a display label in any supported language; it is
// normalized to the canonical code. Invalid animal/element values are errors
// wrapping the archetype sentinels; genderForm is coerced per policy.
func ParseTriple(raw, lang string) (archetype.Triple, error) {
	var decoded struct {
		Animal     string `json:"animal"`
		Element    string `json:"element"`
		GenderForm string `json:"genderForm"`
	}
	if err := extractJSON(raw, &decoded); err != nil {
		return archetype.Triple{}, err
	}
	triple, err := archetype.DefaultPolicy.Validate(archetype.Triple{
		Animal:     decoded.Animal,
		Element:    decoded.Element,
		GenderForm: decoded.GenderForm,
	}, lang)
	if err != nil {
		return archetype.Triple{}, fmt.Errorf("resolver output: %w", err)
	}
	return triple, nil
}

// StripPromptEcho removes any echoed framing before the report's first
// header line and drops leaked "LINE_A: "/"LINE_B: " prefixes. Models
// occasionally repeat the payload framing; the stored report must start at
// the 🟢 line.
func StripPromptEcho(text, lineA string) string {
	stripped := strings.TrimSpace(text)
	if stripped == "" {
		return stripped
	}
	if idx := strings.Index(stripped, lineA); idx != -1 {
		stripped = stripped[idx:]
	}
	lines := strings.Split(stripped, "\n")
	if len(lines) > 0 {
		lines[0] = strings.TrimPrefix(lines[0], "LINE_A: ")
	}
	if len(lines) > 1 {
		lines[1] = strings.TrimPrefix(lines[1], "LINE_B: ")
	}
	return strings.Join(lines, "\n")
}
