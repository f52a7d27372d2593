// Package redact replaces personally identifying spans with class placeholders such as [NAME].
package redact

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"call-analytics-go/internal/logger"
	"call-analytics-go/internal/metrics"
	"call-analytics-go/internal/types"
)

// Span is a detected entity. Start and End are byte offsets into the text, End exclusive.
type Span struct {
	Start int
	End   int
	Class string
}

// Detector finds identifying spans in a text.
type Detector interface {
	Detect(ctx context.Context, text string) ([]Span, error)
}

var placeholderRE = regexp.MustCompile(`\[[A-Z][A-Z_]*\]`)

// Redactor applies a Detector and the replacement policy.
type Redactor struct {
	det      Detector
	failOpen bool
	log      *logger.Logger
}

// Option configures a Redactor.
type Option func(*Redactor)

// WithFailOpen keeps the original text when the detector fails.
func WithFailOpen(on bool) Option {
	return func(r *Redactor) { r.failOpen = on }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(r *Redactor) {
		if l != nil {
			r.log = l
		}
	}
}

// New creates a fail-closed Redactor.
func New(det Detector, opts ...Option) *Redactor {
	r := &Redactor{det: det, log: logger.Discard()}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.Component("redact")
	return r
}

// Redact returns text with every detected span replaced. Detector failure yields
// types.ErrRedaction unless the redactor is fail-open.
func (r *Redactor) Redact(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	spans, err := r.det.Detect(ctx, text)
	if err != nil {
		if r.failOpen && ctx.Err() == nil {
			r.log.WithError(err).Warn("detector failed, keeping text unredacted")
			return text, nil
		}
		return "", fmt.Errorf("%w: %w", types.ErrRedaction, err)
	}
	out, applied := Apply(text, spans)
	for _, s := range applied {
		metrics.RecordRedaction(s.Class)
	}
	return out, nil
}

// RedactUtterances redacts each utterance's text on its own, in order.
func (r *Redactor) RedactUtterances(ctx context.Context, utts []types.Utterance) ([]string, error) {
	out := make([]string, len(utts))
	for i, u := range utts {
		red, err := r.Redact(ctx, u.Text)
		if err != nil {
			return nil, fmt.Errorf("utterance %d: %w", u.SequenceIndex, err)
		}
		out[i] = red
	}
	return out, nil
}

// JoinText renders the call as "SPEAKER: text" lines in utterance order.
func JoinText(utts []types.Utterance, texts []string) string {
	var b strings.Builder
	for i, u := range utts {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(u.SpeakerID)
		b.WriteString(": ")
		if i < len(texts) {
			b.WriteString(texts[i])
		}
	}
	return b.String()
}

// Apply replaces spans in text and returns the spans actually applied. Spans are
// clipped to the text and to rune boundaries, and overlapping spans are merged.
// Existing placeholders are never rewritten: the parts of a span that cover one
// are cut out and the remainder is redacted, so applying the output of a
// detector to already-redacted text changes nothing.
func Apply(text string, spans []Span) (string, []Span) {
	if len(spans) == 0 {
		return text, nil
	}
	protected := placeholderRE.FindAllStringIndex(text, -1)

	clean := make([]Span, 0, len(spans))
	for _, s := range spans {
		s.Start = min(max(0, s.Start), len(text))
		s.End = min(max(0, s.End), len(text))
		for s.Start > 0 && s.Start < len(text) && !utf8.RuneStart(text[s.Start]) {
			s.Start--
		}
		for s.End < len(text) && !utf8.RuneStart(text[s.End]) {
			s.End++
		}
		s.Class = NormalizeClass(s.Class)
		for _, piece := range subtract(s, protected) {
			if strings.TrimSpace(text[piece.Start:piece.End]) == "" {
				continue
			}
			clean = append(clean, piece)
		}
	}
	if len(clean) == 0 {
		return text, nil
	}

	sort.SliceStable(clean, func(i, j int) bool { return clean[i].Start < clean[j].Start })
	merged := []Span{clean[0]}
	for _, s := range clean[1:] {
		last := &merged[len(merged)-1]
		if s.Start < last.End {
			last.End = max(last.End, s.End)
			continue
		}
		merged = append(merged, s)
	}

	var b strings.Builder
	prev := 0
	for _, s := range merged {
		b.WriteString(text[prev:s.Start])
		b.WriteString("[" + s.Class + "]")
		prev = s.End
	}
	b.WriteString(text[prev:])
	return b.String(), merged
}

// subtract returns the parts of s outside every protected range. protected is
// sorted and non-overlapping, as FindAllStringIndex returns it.
func subtract(s Span, protected [][]int) []Span {
	if s.End <= s.Start {
		return nil
	}
	var out []Span
	cur := s
	for _, p := range protected {
		if p[1] <= cur.Start || p[0] >= cur.End {
			continue
		}
		if p[0] > cur.Start {
			out = append(out, Span{Start: cur.Start, End: p[0], Class: s.Class})
		}
		cur.Start = p[1]
		if cur.Start >= cur.End {
			return out
		}
	}
	return append(out, cur)
}

var classAliases = map[string]string{
	"PERSON":      "NAME",
	"PER":         "NAME",
	"GPE":         "LOCATION",
	"LOC":         "LOCATION",
	"ORG":         "ORGANIZATION",
	"PHONE":       "PHONE_NUMBER",
	"CREDIT_CARD": "CARD_NUMBER",
	"IP":          "IP_ADDRESS",
}

// NormalizeClass maps detector labels onto the placeholder vocabulary.
func NormalizeClass(c string) string {
	c = strings.ToUpper(strings.TrimSpace(c))
	c = strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r == '_':
			return r
		case r == ' ' || r == '-':
			return '_'
		default:
			return -1
		}
	}, c)
	c = strings.Trim(c, "_")
	if alias, ok := classAliases[c]; ok {
		return alias
	}
	if c == "" {
		return "PII"
	}
	return c
}
