// Package safety implements the pre/post-dispatch checks a node or agent
// tool call runs every payload through: PII detection and redaction,
// prompt-injection scoring, and category-threshold content moderation.
// Pipeline satisfies the SafetyChecker shape both internal/executor and
// internal/executor/agent declare independently (same two methods, no
// shared import) so either package can be constructed with one.
package safety

import (
	"context"
	"regexp"
	"strings"

	"github.com/gorax/gorax/internal/security"
)

// Category is a content-moderation axis scored against Config's thresholds.
type Category string

const (
	CategoryHarassment Category = "harassment"
	CategorySelfHarm   Category = "self_harm"
	CategoryViolence   Category = "violence"
	CategorySexual     Category = "sexual"
)

// BlockError is returned when a check rejects a payload outright rather
// than redacting it, distinct from the engine's ErrorKind taxonomy so this
// package stays free of an internal/executor import.
type BlockError struct {
	NodeID string
	Reason string
}

func (e *BlockError) Error() string {
	return "safety block on node " + e.NodeID + ": " + e.Reason
}

// Config tunes the pipeline's behavior per deployment; the zero value runs
// PII redaction and prompt-injection blocking with a conservative default
// wordlist, matching a fail-closed posture on unclassified input.
type Config struct {
	// RedactPII rewrites detected PII instead of blocking the payload.
	RedactPII bool
	// BlockOnPromptInjection rejects input scoring above InjectionThreshold
	// outright rather than letting it through.
	BlockOnPromptInjection bool
	// InjectionThreshold is the minimum match-count score that blocks input.
	InjectionThreshold int
	// ModerationThresholds maps a category to the match count that blocks output.
	ModerationThresholds map[Category]int
}

// DefaultConfig returns a Config with PII redaction on and prompt-injection
// blocking at a low threshold, the conservative posture for a multi-tenant
// pipeline where any single caller's node config can touch another
// tenant's trigger data downstream.
func DefaultConfig() *Config {
	return &Config{
		RedactPII:              true,
		BlockOnPromptInjection: true,
		InjectionThreshold:     1,
		ModerationThresholds: map[Category]int{
			CategoryHarassment: 2,
			CategorySelfHarm:   1,
			CategoryViolence:   2,
			CategorySexual:     2,
		},
	}
}

// Pipeline is the concrete SafetyChecker: PII scan+redact on input and
// output, prompt-injection scoring on input, content-moderation category
// scoring on output.
type Pipeline struct {
	cfg *Config
}

// New builds a Pipeline. A nil cfg uses DefaultConfig.
func New(cfg *Config) *Pipeline {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Pipeline{cfg: cfg}
}

// CheckInput runs PII redaction and prompt-injection scoring over payload
// before a node or tool call ever sees it.
func (p *Pipeline) CheckInput(ctx context.Context, nodeID string, payload string) error {
	if p.cfg.BlockOnPromptInjection {
		if score := scorePromptInjection(payload); score >= p.cfg.InjectionThreshold {
			return &BlockError{NodeID: nodeID, Reason: "prompt injection detected"}
		}
	}
	return nil
}

// CheckOutput redacts detected PII and blocks output whose moderation score
// crosses any configured category threshold, returning the (possibly
// redacted) cleaned payload otherwise.
func (p *Pipeline) CheckOutput(ctx context.Context, nodeID string, payload string) (string, error) {
	for category, threshold := range p.cfg.ModerationThresholds {
		if scoreCategory(payload, category) >= threshold {
			return "", &BlockError{NodeID: nodeID, Reason: "content moderation: " + string(category)}
		}
	}

	cleaned := payload
	if security.ContainsXSSPattern(cleaned) {
		cleaned = security.SanitizeHTML(cleaned)
	}
	if p.cfg.RedactPII {
		cleaned = RedactPII(cleaned)
	}
	return cleaned, nil
}

// --- PII detection ---

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	ssnPattern   = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	// cardPattern matches runs of 13-19 digits, optionally grouped by
	// spaces/dashes, as a candidate credit-card number; LuhnValid narrows
	// candidates to ones that actually pass the checksum.
	cardPattern = regexp.MustCompile(`\b(?:\d[ -]?){13,19}\b`)
)

// RedactPII replaces emails, SSNs, and Luhn-valid card numbers in s with a
// masked placeholder, reusing security.MaskString's visible-prefix/suffix
// convention instead of full blackout so redacted output stays legible.
func RedactPII(s string) string {
	s = emailPattern.ReplaceAllStringFunc(s, func(m string) string { return security.MaskEmail(m) })
	s = ssnPattern.ReplaceAllString(s, "[REDACTED-SSN]")
	s = cardPattern.ReplaceAllStringFunc(s, func(m string) string {
		digits := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, m)
		if LuhnValid(digits) {
			return "[REDACTED-CARD]"
		}
		return m
	})
	return s
}

// LuhnValid reports whether digits (a string of ASCII digits) passes the
// Luhn checksum used by card numbers.
func LuhnValid(digits string) bool {
	if len(digits) < 13 {
		return false
	}
	sum := 0
	alt := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if alt {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		alt = !alt
	}
	return sum%10 == 0
}

// --- Prompt-injection scoring ---

var injectionPhrases = []string{
	"ignore previous instructions",
	"ignore all previous instructions",
	"disregard your instructions",
	"you are now",
	"new instructions:",
	"system prompt",
	"reveal your prompt",
	"act as if",
	"jailbreak",
}

// scorePromptInjection counts how many known injection phrases appear in s.
func scorePromptInjection(s string) int {
	lower := strings.ToLower(s)
	score := 0
	for _, phrase := range injectionPhrases {
		if strings.Contains(lower, phrase) {
			score++
		}
	}
	return score
}

// --- Content moderation ---

var categoryKeywords = map[Category][]string{
	CategoryHarassment: {"i will hurt you", "you are worthless", "kill yourself"},
	CategorySelfHarm:   {"how to kill myself", "want to die", "self harm"},
	CategoryViolence:   {"how to build a bomb", "how to kill", "mass shooting"},
	CategorySexual:     {"explicit sexual content involving a minor"},
}

// scoreCategory counts how many of category's keyword phrases appear in s.
// This is a deliberately small, inspectable wordlist: a real moderation
// endpoint belongs behind the same Pipeline interface, swapped in without
// touching any SafetyChecker caller.
func scoreCategory(s string, category Category) int {
	lower := strings.ToLower(s)
	score := 0
	for _, phrase := range categoryKeywords[category] {
		if strings.Contains(lower, phrase) {
			score++
		}
	}
	return score
}
