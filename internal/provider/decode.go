package provider

import (
	"encoding/json"

	"github.com/llm-gateway/internal/domain"
	"github.com/llm-gateway/pkg/jsonx"
)

// rawAnswer mirrors StructuredAnswer with loose field types so a decode can
// succeed even when the vendor got a field's type wrong.
type rawAnswer struct {
	Answer       json.RawMessage `json:"answer"`
	Confidence   json.RawMessage `json:"confidence"`
	Evidence     json.RawMessage `json:"evidence"`
	Alternatives json.RawMessage `json:"alternatives"`
}

// DecodeStrict parses text into a StructuredAnswer only when it is valid
// JSON with the required shape: a non-empty string answer and a numeric
// confidence. It is the acceptance check for escalation attempts.
func DecodeStrict(text string) (*domain.StructuredAnswer, bool) {
	content := jsonx.Extract(text)
	if content == "" {
		return nil, false
	}

	var raw rawAnswer
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, false
	}

	var answer string
	if err := json.Unmarshal(raw.Answer, &answer); err != nil || answer == "" {
		return nil, false
	}

	confidence, ok := decodeConfidence(raw.Confidence)
	if !ok {
		return nil, false
	}

	return &domain.StructuredAnswer{
		Answer:       answer,
		Confidence:   confidence,
		Evidence:     decodeStringList(raw.Evidence),
		Alternatives: decodeStringList(raw.Alternatives),
	}, true
}

// DecodeLenient always materializes a StructuredAnswer. When the text is not
// JSON at all, the whole text becomes the answer, confidence defaults to 50
// and a sentinel note is recorded in Evidence. When the JSON decodes but
// individual fields are missing or mistyped, only those fields receive the
// same defaults.
func DecodeLenient(text string) *domain.StructuredAnswer {
	content := jsonx.Extract(text)
	if content == "" {
		return fallbackAnswer(text)
	}

	var raw rawAnswer
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return fallbackAnswer(text)
	}

	out := &domain.StructuredAnswer{
		Evidence:     decodeStringList(raw.Evidence),
		Alternatives: decodeStringList(raw.Alternatives),
	}

	var answer string
	if err := json.Unmarshal(raw.Answer, &answer); err == nil && answer != "" {
		out.Answer = answer
	} else {
		out.Answer = text
	}

	if confidence, ok := decodeConfidence(raw.Confidence); ok {
		out.Confidence = confidence
	} else {
		out.Confidence = 50
	}

	return out
}

func fallbackAnswer(text string) *domain.StructuredAnswer {
	return &domain.StructuredAnswer{
		Answer:       text,
		Confidence:   50,
		Evidence:     []string{domain.FallbackNote},
		Alternatives: []string{},
	}
}

// decodeConfidence accepts a number (or numeric string, which some vendors
// emit) and normalizes it to the canonical 0-100 scale. Values in (0,1] are
// treated as fractions and scaled once; everything is clamped to [0,100].
func decodeConfidence(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}

	var val float64
	if err := json.Unmarshal(raw, &val); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		if err := json.Unmarshal([]byte(s), &val); err != nil {
			return 0, false
		}
	}

	if val > 0 && val <= 1 {
		val *= 100
	}
	if val < 0 {
		val = 0
	}
	if val > 100 {
		val = 100
	}
	return val, true
}

// decodeStringList accepts a string array, a single string, or garbage,
// degrading to an empty list. Non-string array members are skipped.
func decodeStringList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return []string{}
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		out := make([]string, 0, len(list))
		for _, s := range list {
			if s != "" {
				out = append(out, s)
			}
		}
		return out
	}

	var loose []json.RawMessage
	if err := json.Unmarshal(raw, &loose); err == nil {
		out := make([]string, 0, len(loose))
		for _, item := range loose {
			var s string
			if err := json.Unmarshal(item, &s); err == nil && s != "" {
				out = append(out, s)
			}
		}
		return out
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return []string{single}
	}

	return []string{}
}
