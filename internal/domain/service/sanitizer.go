package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Injection pattern classes, reported in logs only.
const (
	PatternInstructionOverride = "instruction_override"
	PatternRoleElevation       = "role_elevation"
	PatternDelimiterToken      = "delimiter_token"
	PatternFakeTurnMarker      = "fake_turn_marker"
)

// RejectedInputMessage is the only thing a rejected user ever sees.
const RejectedInputMessage = "Your message contains disallowed patterns. Please rephrase your question."

// InputRejectedError is returned for a message matching an injection pattern.
type InputRejectedError struct {
	Class string
}

func (e *InputRejectedError) Error() string {
	return fmt.Sprintf("input rejected: %s", e.Class)
}

type injectionRule struct {
	class   string
	pattern *regexp.Regexp
}

// Rules are checked in order; the first match wins.
var defaultInjectionRules = []injectionRule{
	{PatternInstructionOverride, regexp.MustCompile(`(?i)\b(ignore|disregard|forget|override|bypass)\b[^.\n]{0,30}\b(previous|prior|above|earlier|preceding|all|any|your|the)\b[^.\n]{0,20}\b(instructions?|prompts?|rules|directions|guidelines)\b`)},
	{PatternInstructionOverride, regexp.MustCompile(`(?i)\bnew\s+instructions?\s*:`)},
	{PatternInstructionOverride, regexp.MustCompile(`(?i)\b(reveal|show|print|repeat|output)\s+(me\s+)?(your|the)\s+(system\s+prompt|hidden\s+instructions?)`)},
	{PatternRoleElevation, regexp.MustCompile(`(?i)\byou\s+are\s+now\s+(an?\s+|the\s+)?(admin|administrator|root|superuser|developer|dentist)\b`)},
	{PatternRoleElevation, regexp.MustCompile(`(?i)\b(act|behave|respond)\s+as\s+(an?\s+|the\s+)?(admin|administrator|root|superuser)\b`)},
	{PatternRoleElevation, regexp.MustCompile(`(?i)\bpretend\s+(to\s+be|you\s+are)\s+(an?\s+|the\s+)?(admin|administrator|root|superuser)\b`)},
	{PatternRoleElevation, regexp.MustCompile(`(?i)\b(developer|god|jailbreak|dan)\s+mode\b`)},
	{PatternDelimiterToken, regexp.MustCompile(`(?i)<\|?\s*(im_start|im_end|system|endoftext)\s*\|?>`)},
	{PatternDelimiterToken, regexp.MustCompile(`(?i)\[/?\s*(INST|SYS)\s*\]`)},
	{PatternDelimiterToken, regexp.MustCompile(`(?i)<</?\s*SYS\s*>>`)},
	{PatternDelimiterToken, regexp.MustCompile("(?im)^\\s*(#{2,}|```)\\s*(system|instructions?)\\b")},
	{PatternFakeTurnMarker, regexp.MustCompile(`(?im)^\s*(system|assistant)\s*:`)},
	{PatternFakeTurnMarker, regexp.MustCompile(`(?i)\[(system|assistant)\]`)},
}

// InputSanitizer screens user text for prompt-injection and role-escalation
// patterns before any model call or persistence happens.
type InputSanitizer struct {
	rules        []injectionRule
	previewRunes int
	logger       *zap.Logger
}

// NewInputSanitizer creates a sanitizer with the built-in rules.
func NewInputSanitizer(previewRunes int, logger *zap.Logger) *InputSanitizer {
	if previewRunes <= 0 {
		previewRunes = 100
	}
	return &InputSanitizer{
		rules:        defaultInjectionRules,
		previewRunes: previewRunes,
		logger:       logger.With(zap.String("component", "sanitizer")),
	}
}

// Sanitize returns nil for acceptable input or *InputRejectedError.
// Rejections are logged with the pattern class and a truncated preview only.
func (s *InputSanitizer) Sanitize(ctx context.Context, text string) error {
	for _, rule := range s.rules {
		if rule.pattern.MatchString(text) {
			s.logger.Warn("Input rejected by sanitizer",
				TraceField(ctx),
				zap.String("pattern_class", rule.class),
				zap.String("preview", Preview(text, s.previewRunes)),
			)
			return &InputRejectedError{Class: rule.class}
		}
	}
	return nil
}

// Preview truncates text to maxRunes, collapsing whitespace.
func Preview(text string, maxRunes int) string {
	collapsed := strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(collapsed) <= maxRunes {
		return collapsed
	}
	return string([]rune(collapsed)[:maxRunes]) + "..."
}
