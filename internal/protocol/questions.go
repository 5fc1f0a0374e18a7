package protocol

import (
	"errors"
	"strings"

	"github.com/bytedance/sonic"
)

// RawQuestions preserves the wire form of the follow_up_questions payload.
// The backend sends it either as a JSON array of strings or as a single
// delimited string.
type RawQuestions struct {
	Items []string
	Raw   string
}

// UnmarshalJSON accepts both wire forms.
func (q *RawQuestions) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		*q = RawQuestions{}
		return nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var items []string
		if err := sonic.Unmarshal(data, &items); err != nil {
			return err
		}
		*q = RawQuestions{Items: items}
		return nil
	}
	var raw string
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return errors.New("questions is neither array nor string")
	}
	*q = RawQuestions{Raw: raw}
	return nil
}

// MarshalJSON reproduces the original wire form.
func (q RawQuestions) MarshalJSON() ([]byte, error) {
	if q.Items != nil {
		return sonic.Marshal(q.Items)
	}
	return sonic.Marshal(q.Raw)
}

// Parse resolves the payload into an ordered question list using the
// documented fallback order: array as-is, then '$'-delimited split, then a
// '?' re-split that restores the trailing question mark on each segment.
func (q *RawQuestions) Parse() []string {
	if q == nil {
		return nil
	}
	if q.Items != nil {
		return q.Items
	}
	raw := q.Raw
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, "$")
	if len(parts) > 1 {
		return parts
	}
	segments := strings.Split(raw, "?")
	questions := make([]string, 0, len(segments))
	for _, segment := range segments {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		questions = append(questions, segment+"?")
	}
	return questions
}
