package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PayloadError reports a model response that could not be decoded into the
// expected shape.
type PayloadError struct {
	Raw string
	Err error
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("malformed ai payload (%d bytes): %v", len(e.Raw), e.Err)
}

func (e *PayloadError) Unwrap() error { return e.Err }

// Decode unmarshals a model response into v. It tolerates code fences and
// prose around the JSON value, but not a truncated value.
func Decode(raw string, v any) error {
	js := stripCodeFences(raw)
	if js == "" {
		return &PayloadError{Raw: raw, Err: ErrEmptyResponse}
	}
	err := json.Unmarshal([]byte(js), v)
	if err == nil {
		return nil
	}
	if s := findFirstJSON(js); s != "" && s != js {
		err2 := json.Unmarshal([]byte(s), v)
		if err2 == nil {
			return nil
		}
		return &PayloadError{Raw: raw, Err: fmt.Errorf("%w (original error: %v)", err2, err)}
	}
	return &PayloadError{Raw: raw, Err: err}
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if nl := strings.Index(s, "\n"); nl != -1 {
			s = s[nl+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}

// findFirstJSON returns the first balanced JSON object or array in s, or ""
// when the first one never closes.
func findFirstJSON(s string) string {
	start := strings.IndexAny(s, "[{")
	if start == -1 {
		return ""
	}
	var stack []byte
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return ""
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
