package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DecodeJSON unmarshals a model reply into target. Replies wrapped in a
// markdown fence or surrounded by prose are reduced to the outermost JSON
// object before a second attempt.
func DecodeJSON(content string, target any) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return errors.New("empty payload")
	}
	err := json.Unmarshal([]byte(content), target)
	if err == nil {
		return nil
	}
	object := outermostObject(unfence(content))
	if object == "" || object == content {
		return fmt.Errorf("%w (payload: %s)", err, snippet(content, 160))
	}
	if err := json.Unmarshal([]byte(object), target); err != nil {
		return fmt.Errorf("%w (extracted: %s)", err, snippet(object, 160))
	}
	return nil
}

// unfence drops a leading ``` or ```json line and the closing fence.
func unfence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		if lang := strings.TrimSpace(s[:nl]); lang == "" || strings.EqualFold(lang, "json") {
			s = s[nl+1:]
		}
	}
	if end := strings.LastIndex(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}

func outermostObject(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

// snippet collapses whitespace and truncates to limit runes for error text.
func snippet(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return "<empty>"
	}
	if r := []rune(s); len(r) > limit {
		return string(r[:limit]) + "..."
	}
	return s
}
