package provider

import (
	"bytes"
	"text/template"
)

// PromptTier selects one of the escalating system-instruction variants used
// to coerce a vendor into the structured-answer shape.
type PromptTier string

const (
	// TierStructured is the normal request for schema-conformant JSON.
	TierStructured PromptTier = "structured"

	// TierStrict forbids markdown and any non-JSON text.
	TierStrict PromptTier = "strict"

	// TierEmergency tells the model its previous attempt was invalid and
	// that this is the final attempt.
	TierEmergency PromptTier = "emergency"
)

// schemaBlock is the JSON contract demanded from every vendor.
const schemaBlock = `{
  "answer": "string - the response to the user's request",
  "confidence": "number 0-100 - how certain you are of the answer",
  "evidence": ["string array - statements supporting the answer"],
  "alternatives": ["string array - alternative answers or known risks"]
}`

const structuredText = `Respond with a JSON object exactly matching this schema:

{{.Schema}}

All four fields are required. Use an empty array when you have no evidence or alternatives.`

const strictText = `You MUST respond with ONLY a valid JSON object matching this schema:

{{.Schema}}

No markdown, no code fences, no explanations, no text before or after the JSON object. Output starts with "{" and ends with "}".`

const emergencyText = `Your previous attempt did not produce valid JSON. This is the FINAL attempt.

Return ONLY a raw JSON object with exactly these fields:

{{.Schema}}

Any output that is not a single parseable JSON object will be discarded.`

var tierTemplates = map[PromptTier]*template.Template{
	TierStructured: template.Must(template.New("structured").Parse(structuredText)),
	TierStrict:     template.Must(template.New("strict").Parse(strictText)),
	TierEmergency:  template.Must(template.New("emergency").Parse(emergencyText)),
}

// SystemFor builds the system instruction for a tier, prepending the
// caller-supplied system prompt when present.
func SystemFor(tier PromptTier, userSystem string) string {
	tmpl, ok := tierTemplates[tier]
	if !ok {
		tmpl = tierTemplates[TierStructured]
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, struct{ Schema string }{Schema: schemaBlock}); err != nil {
		// Template execution over a string literal cannot realistically
		// fail; fall back to the schema alone.
		buf.Reset()
		buf.WriteString("Respond with JSON matching:\n" + schemaBlock)
	}

	if userSystem == "" {
		return buf.String()
	}
	return userSystem + "\n\n" + buf.String()
}
