package sentiment

import (
	"context"
	"strings"
	"unicode"
)

// Labels of the three-class call sentiment model.
const (
	Negative = "negative"
	Neutral  = "neutral"
	Positive = "positive"
)

var defaultLabels = []string{Negative, Neutral, Positive}

var positiveWords = map[string]float64{
	"thanks": 1, "thank": 1, "great": 1.2, "good": 0.8, "perfect": 1.3, "excellent": 1.4,
	"appreciate": 1.1, "helpful": 1, "happy": 1.1, "glad": 0.9, "resolved": 1, "wonderful": 1.3,
	"awesome": 1.2, "love": 1.2, "fine": 0.4, "sure": 0.3, "pleased": 1, "fixed": 0.9,
	"welcome": 0.6, "nice": 0.8, "fantastic": 1.4, "works": 0.6, "working": 0.4,
}

var negativeWords = map[string]float64{
	"bad": 1, "terrible": 1.4, "awful": 1.4, "angry": 1.3, "frustrated": 1.3, "frustrating": 1.3,
	"upset": 1.1, "problem": 0.7, "issue": 0.5, "wrong": 0.9, "broken": 1, "cancel": 0.8,
	"complaint": 1, "disappointed": 1.2, "unacceptable": 1.5, "worst": 1.5, "hate": 1.4,
	"annoyed": 1.1, "charged": 0.4, "twice": 0.3, "waiting": 0.5, "refund": 0.6,
	"ridiculous": 1.3, "useless": 1.3, "fraud": 1.2, "failed": 0.9, "error": 0.7, "late": 0.6,
}

var negators = map[string]bool{
	"not": true, "no": true, "never": true, "dont": true, "don't": true, "didn't": true,
	"didnt": true, "isn't": true, "isnt": true, "wasn't": true, "wasnt": true, "can't": true,
	"cant": true, "won't": true, "wont": true, "nothing": true, "hardly": true,
}

// negationWindow is how many following tokens a negator flips.
const negationWindow = 3

// LexiconClassifier is a deterministic offline classifier. It sums word weights,
// flipping polarity for words shortly after a negator, and emits logits for
// negative, neutral and positive.
type LexiconClassifier struct{}

// NewLexiconClassifier returns the offline classifier.
func NewLexiconClassifier() *LexiconClassifier { return &LexiconClassifier{} }

func (*LexiconClassifier) Labels() []string { return append([]string(nil), defaultLabels...) }

func (c *LexiconClassifier) Logits(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = c.logits(t)
	}
	return out, nil
}

func (*LexiconClassifier) logits(text string) []float64 {
	tokens := tokenize(text)
	var pos, neg float64
	flip := 0
	for _, tok := range tokens {
		if negators[tok] {
			flip = negationWindow
			continue
		}
		p, n := positiveWords[tok], negativeWords[tok]
		if flip > 0 {
			p, n = n, p
			flip--
		}
		pos += p
		neg += n
	}
	// Neutral wins when nothing polar was seen.
	return []float64{1.5 * neg, 1.0, 1.5 * pos}
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
}
