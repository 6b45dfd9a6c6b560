package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

type Outcome int

const (
	OutcomeDecoded Outcome = iota
	OutcomeFallback
)

func (o Outcome) String() string {
	if o == OutcomeDecoded {
		return "decoded"
	}
	return "fallback"
}

// Decoded carries either the parsed value or the caller's fallback, tagged so
// callers can tell the two apart.
type Decoded[T any] struct {
	Value   T
	Outcome Outcome
	Err     error
}

func (d Decoded[T]) Fallback() bool { return d.Outcome == OutcomeFallback }

var errNoJSON = errors.New("llm: no json payload in answer")

// DecodeJSON parses raw as T. Markdown code fences and prose around the
// outermost JSON object or array are ignored.
func DecodeJSON[T any](raw string, fallback T) Decoded[T] {
	payload := ExtractJSON(raw)
	if payload == "" {
		return Decoded[T]{Value: fallback, Outcome: OutcomeFallback, Err: errNoJSON}
	}
	var v T
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		return Decoded[T]{Value: fallback, Outcome: OutcomeFallback, Err: err}
	}
	return Decoded[T]{Value: v, Outcome: OutcomeDecoded}
}

// ExtractJSON returns the first balanced-looking JSON object or array in s,
// or "" when none is found.
func ExtractJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return ""
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		return ""
	}
	return s[start : end+1]
}
