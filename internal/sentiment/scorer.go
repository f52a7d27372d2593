// Package sentiment scores utterance text as a probability distribution over sentiment labels.
package sentiment

import (
	"context"
	"fmt"
	"math"
	"strings"

	"call-analytics-go/internal/logger"
	"call-analytics-go/internal/types"
)

// Classifier produces one raw logit vector per text, in Labels order.
type Classifier interface {
	Labels() []string
	Logits(ctx context.Context, texts []string) ([][]float64, error)
}

// Scorer batches a call's texts through a Classifier and normalizes the logits.
type Scorer struct {
	clf Classifier
	log *logger.Logger
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Scorer) {
		if l != nil {
			s.log = l
		}
	}
}

// New creates a Scorer around clf.
func New(clf Classifier, opts ...Option) *Scorer {
	s := &Scorer{clf: clf, log: logger.Discard()}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.Component("sentiment")
	return s
}

// Score returns exactly one distribution per text, in input order. Blank texts
// get the uniform distribution and are never sent to the classifier.
func (s *Scorer) Score(ctx context.Context, texts []string) ([]types.SentimentScore, error) {
	labels := s.clf.Labels()
	if len(labels) == 0 {
		return nil, fmt.Errorf("%w: classifier has no labels", types.ErrShapeMismatch)
	}

	out := make([]types.SentimentScore, len(texts))
	var batch []string
	var positions []int
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			out[i] = Uniform(labels)
			continue
		}
		batch = append(batch, t)
		positions = append(positions, i)
	}
	if len(batch) == 0 {
		return out, nil
	}

	logits, err := s.clf.Logits(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrSentiment, err)
	}
	if len(logits) != len(batch) {
		return nil, fmt.Errorf("%w: classifier returned %d rows for %d texts",
			types.ErrShapeMismatch, len(logits), len(batch))
	}

	for j, row := range logits {
		if len(row) != len(labels) {
			return nil, fmt.Errorf("%w: row %d has %d logits for %d labels",
				types.ErrShapeMismatch, j, len(row), len(labels))
		}
		probs, err := Softmax(row)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %w", types.ErrSentiment, j, err)
		}
		score := make(types.SentimentScore, len(labels))
		for k, l := range labels {
			score[l] = probs[k]
		}
		out[positions[j]] = score
	}

	s.log.WithField("texts", len(texts)).WithField("classified", len(batch)).Debug("scored")
	return out, nil
}

// Softmax converts logits to probabilities. The max logit is subtracted first so
// large logits cannot overflow.
func Softmax(logits []float64) ([]float64, error) {
	if len(logits) == 0 {
		return nil, fmt.Errorf("empty logit vector")
	}
	maxL := math.Inf(-1)
	for _, v := range logits {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("non-finite logit %v", v)
		}
		if v > maxL {
			maxL = v
		}
	}
	out := make([]float64, len(logits))
	sum := 0.0
	for i, v := range logits {
		out[i] = math.Exp(v - maxL)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out, nil
}

// Uniform is the distribution assigned to texts with nothing to classify.
func Uniform(labels []string) types.SentimentScore {
	out := make(types.SentimentScore, len(labels))
	p := 1.0 / float64(len(labels))
	for _, l := range labels {
		out[l] = p
	}
	return out
}
