package redact

import (
	"context"
	"regexp"
)

type pattern struct {
	class string
	re    *regexp.Regexp
	group int
}

// Order matters only for readability; overlapping matches are merged by Apply.
var defaultPatterns = []pattern{
	{class: "EMAIL", re: regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)},
	{class: "CARD_NUMBER", re: regexp.MustCompile(`\b(?:\d[ -]?){12,18}\d\b`)},
	{class: "SSN", re: regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{class: "PHONE_NUMBER", re: regexp.MustCompile(`(?:\+\d{1,3}[ .-]?)?(?:\(\d{3}\)|\b\d{3})[ .-]?\d{3}[ .-]?\d{4}\b`)},
	{class: "IP_ADDRESS", re: regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)},
	{class: "NAME", re: regexp.MustCompile(`\b(?:Mr|Mrs|Ms|Miss|Dr)\.?\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)`), group: 1},
	{class: "NAME", re: regexp.MustCompile(`(?i:\bmy name is|\bname's|\bthis is|\bspeaking with)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)`), group: 1},
}

// PatternDetector finds structured identifiers and self-introduced names with
// regular expressions. It needs no network and is deterministic.
type PatternDetector struct {
	patterns []pattern
}

// NewPatternDetector returns the detector with the built-in patterns.
func NewPatternDetector() *PatternDetector {
	return &PatternDetector{patterns: defaultPatterns}
}

// WithPattern returns a copy that also reports matches of expr as class.
func (d *PatternDetector) WithPattern(class, expr string) (*PatternDetector, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	ps := append(append([]pattern(nil), d.patterns...), pattern{class: class, re: re})
	return &PatternDetector{patterns: ps}, nil
}

func (d *PatternDetector) Detect(ctx context.Context, text string) ([]Span, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []Span
	for _, p := range d.patterns {
		for _, m := range p.re.FindAllStringSubmatchIndex(text, -1) {
			lo, hi := m[2*p.group], m[2*p.group+1]
			if lo < 0 {
				continue
			}
			out = append(out, Span{Start: lo, End: hi, Class: p.class})
		}
	}
	return out, nil
}
