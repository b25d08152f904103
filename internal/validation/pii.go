package validation

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/llm-gateway/internal/domain"
	"go.uber.org/zap"
)

// piiPattern is one built-in detector.
type piiPattern struct {
	name  string
	level domain.RuleLevel
	re    *regexp.Regexp
}

// Generic detectors. BLOCK-tier entries catch identifiers and leaked
// secrets; email is the single WARN-tier generic pattern.
var genericPatterns = []piiPattern{
	{"ssn", domain.LevelBlock, regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{"payment_card", domain.LevelBlock, regexp.MustCompile(`\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`)},
	{"password_assignment", domain.LevelBlock, regexp.MustCompile(`(?i)(password|passwd|pwd)\s*[:=]\s*['"]?[^\s'"]{4,}['"]?`)},
	{"api_key_assignment", domain.LevelBlock, regexp.MustCompile(`(?i)(api[_-]?key|secret[_-]?key|access[_-]?key)\s*[:=]\s*['"]?[a-zA-Z0-9_\-]{16,}['"]?`)},
	{"prefixed_token", domain.LevelBlock, regexp.MustCompile(`\bsk-[a-zA-Z0-9_\-]{20,}\b`)},
	{"cloud_access_key", domain.LevelBlock, regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`)},
	{"private_key", domain.LevelBlock, regexp.MustCompile(`-----BEGIN\s+(RSA|DSA|EC|OPENSSH)?\s*PRIVATE KEY-----`)},
	{"email", domain.LevelWarn, regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)},
}

// Japanese locale detectors. A labeling phrase upgrades a digit shape to
// BLOCK; the bare shape stays WARN as a lower-confidence match.
var japanesePatterns = []piiPattern{
	{"jp_my_number_labeled", domain.LevelBlock, regexp.MustCompile(`(マイナンバー|個人番号|[Mm]y\s?[Nn]umber)\D{0,10}\d{4}[-\s]?\d{4}[-\s]?\d{4}`)},
	{"jp_bank_account_labeled", domain.LevelBlock, regexp.MustCompile(`(口座番号|口座)\D{0,10}\d{7}`)},
	{"jp_my_number_unlabeled", domain.LevelWarn, regexp.MustCompile(`\b\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`)},
	{"jp_corporate_number", domain.LevelWarn, regexp.MustCompile(`\b\d{13}\b`)},
	{"jp_phone", domain.LevelWarn, regexp.MustCompile(`\b0\d{1,4}-\d{1,4}-\d{4}\b`)},
	{"jp_mobile_phone", domain.LevelWarn, regexp.MustCompile(`\b0[789]0-?\d{4}-?\d{4}\b`)},
	{"jp_postal_code", domain.LevelWarn, regexp.MustCompile(`〒\s?\d{3}-\d{4}|\b\d{3}-\d{4}\b`)},
}

// sensitiveKeywords are confidentiality markers contributing WARN.
var sensitiveKeywords = []string{
	"confidential",
	"internal only",
	"do not distribute",
	"社外秘",
	"関係者外秘",
	"機密",
}

// detection is one matched occurrence, already masked for echoing.
type detection struct {
	pattern string
	level   domain.RuleLevel
	masked  string
}

// PIIRule scans an answer's text fields for sensitive content: generic
// identifiers and secrets, Japanese locale patterns, confidentiality
// keywords and tenant-supplied custom patterns.
type PIIRule struct {
	logger *zap.Logger
}

// NewPIIRule creates the PII/risk detection rule.
func NewPIIRule(logger *zap.Logger) *PIIRule {
	return &PIIRule{logger: logger.Named("pii_rule")}
}

func (r *PIIRule) Name() string {
	return "pii"
}

func (r *PIIRule) Evaluate(ctx context.Context, answer *domain.StructuredAnswer, vctx *Context) (domain.RuleResult, error) {
	text := scanText(answer)

	scan := &scanState{}

	// BLOCK-tier patterns run first so a labeled, high-confidence match
	// suppresses the unlabeled WARN match over the same digit run.
	for _, tier := range []domain.RuleLevel{domain.LevelBlock, domain.LevelWarn} {
		for _, p := range genericPatterns {
			if p.level == tier {
				scan.apply(text, p)
			}
		}
		for _, p := range japanesePatterns {
			if p.level == tier {
				scan.apply(text, p)
			}
		}
	}

	for _, kw := range sensitiveKeywords {
		if strings.Contains(strings.ToLower(text), strings.ToLower(kw)) {
			scan.add(detection{pattern: "sensitive_keyword", level: domain.LevelWarn, masked: kw})
		}
	}

	r.applyCustomPatterns(ctx, text, vctx, scan)

	return r.report(scan.detections), nil
}

// applyCustomPatterns matches tenant-supplied regexes; any match escalates
// to BLOCK. An invalid pattern is skipped with a warning, never an abort.
func (r *PIIRule) applyCustomPatterns(ctx context.Context, text string, vctx *Context, scan *scanState) {
	if vctx == nil || vctx.Tenants == nil || vctx.WorkspaceID == "" {
		return
	}

	patterns, err := vctx.Tenants.CustomPatterns(ctx, vctx.WorkspaceID)
	if err != nil {
		r.logger.Warn("custom pattern lookup failed",
			zap.String("workspace_id", vctx.WorkspaceID),
			zap.Error(err),
		)
		return
	}

	for _, raw := range patterns {
		re, err := regexp.Compile(raw)
		if err != nil {
			r.logger.Warn("skipping invalid custom pattern",
				zap.String("workspace_id", vctx.WorkspaceID),
				zap.String("pattern", raw),
				zap.Error(err),
			)
			continue
		}
		scan.apply(text, piiPattern{name: "custom", level: domain.LevelBlock, re: re})
	}
}

// report reduces detections: BLOCK if any BLOCK-tier match fired, WARN if
// any WARN-tier match fired, PASS otherwise. Messages list every
// contributing detection.
func (r *PIIRule) report(detections []detection) domain.RuleResult {
	if len(detections) == 0 {
		return domain.RuleResult{
			Rule:    r.Name(),
			Level:   domain.LevelPass,
			Message: "no sensitive content detected",
		}
	}

	level := domain.LevelWarn
	issues := make([]string, 0, len(detections))
	meta := make([]map[string]any, 0, len(detections))

	for _, d := range detections {
		if d.level == domain.LevelBlock {
			level = domain.LevelBlock
		}
		issues = append(issues, fmt.Sprintf("%s (%s): %s", d.pattern, d.level, d.masked))
		meta = append(meta, map[string]any{
			"pattern": d.pattern,
			"level":   string(d.level),
			"match":   d.masked,
		})
	}

	return domain.RuleResult{
		Rule:     r.Name(),
		Level:    level,
		Message:  strings.Join(issues, "; "),
		Metadata: map[string]any{"detections": meta},
	}
}

// scanState tracks detections and the normalized values already reported
// so one value is never echoed twice per scan.
type scanState struct {
	detections []detection
	reported   []string // normalized digit runs, in detection order
	seenExact  map[string]bool
}

// apply runs one pattern over the text and records unseen matches.
func (s *scanState) apply(text string, p piiPattern) {
	for _, match := range p.re.FindAllString(text, -1) {
		norm := normalizeDigits(match)
		if norm != "" {
			if s.suppressed(norm) {
				continue
			}
			s.reported = append(s.reported, norm)
			s.detections = append(s.detections, detection{pattern: p.name, level: p.level, masked: maskDigits(norm)})
			continue
		}

		// Digit-free match (secret assignment, private key header, email).
		if s.seenExact == nil {
			s.seenExact = map[string]bool{}
		}
		if s.seenExact[match] {
			continue
		}
		s.seenExact[match] = true
		s.detections = append(s.detections, detection{pattern: p.name, level: p.level, masked: maskText(match)})
	}
}

func (s *scanState) add(d detection) {
	s.detections = append(s.detections, d)
}

// suppressed reports whether this digit run was already reported, either
// exactly or as part of a longer run (a labeled BLOCK match or a wider
// shape wins over a narrower re-match of the same digits).
func (s *scanState) suppressed(norm string) bool {
	for _, seen := range s.reported {
		if seen == norm || strings.Contains(seen, norm) {
			return true
		}
	}
	return false
}

// scanText concatenates the answer's text fields for scanning.
func scanText(answer *domain.StructuredAnswer) string {
	parts := make([]string, 0, 1+len(answer.Evidence)+len(answer.Alternatives))
	parts = append(parts, answer.Answer)
	parts = append(parts, answer.Evidence...)
	parts = append(parts, answer.Alternatives...)
	return strings.Join(parts, "\n")
}

// normalizeDigits strips everything but digits. Returns "" for matches
// carrying fewer than four digits, which are not treated as digit runs.
func normalizeDigits(s string) string {
	var b strings.Builder
	for _, c := range s {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	if b.Len() < 4 {
		return ""
	}
	return b.String()
}

// maskDigits echoes only the first two and last two digits of a run.
func maskDigits(norm string) string {
	if len(norm) <= 4 {
		return "**"
	}
	return norm[:2] + strings.Repeat("*", len(norm)-4) + norm[len(norm)-2:]
}

// maskText redacts the value part of digit-free matches.
func maskText(match string) string {
	if idx := strings.IndexAny(match, ":="); idx != -1 {
		return match[:idx+1] + "[REDACTED]"
	}
	if len(match) > 10 {
		return match[:4] + "****" + match[len(match)-4:]
	}
	return "[REDACTED]"
}
