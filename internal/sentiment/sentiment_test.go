package sentiment_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"call-analytics-go/internal/clients"
	"call-analytics-go/internal/sentiment"
	"call-analytics-go/internal/types"
	. "github.com/smartystreets/goconvey/convey"
)

type fixedClassifier struct {
	labels []string
	rows   [][]float64
	err    error
	seen   [][]string
}

func (f *fixedClassifier) Labels() []string { return f.labels }

func (f *fixedClassifier) Logits(_ context.Context, texts []string) ([][]float64, error) {
	f.seen = append(f.seen, texts)
	return f.rows, f.err
}

func sum(s types.SentimentScore) float64 {
	total := 0.0
	for _, p := range s {
		total += p
	}
	return total
}

func TestSoftmax(t *testing.T) {
	Convey("Given extreme logits", t, func() {
		probs, err := sentiment.Softmax([]float64{1000, 999, -1000})

		Convey("Then the result is finite and sums to one", func() {
			So(err, ShouldBeNil)
			total := 0.0
			for _, p := range probs {
				So(math.IsNaN(p), ShouldBeFalse)
				So(p, ShouldBeGreaterThanOrEqualTo, 0)
				total += p
			}
			So(total, ShouldAlmostEqual, 1.0, 1e-6)
			So(probs[0], ShouldBeGreaterThan, probs[1])
		})
	})

	Convey("Given a NaN logit", t, func() {
		_, err := sentiment.Softmax([]float64{0, math.NaN()})

		Convey("Then it is rejected", func() {
			So(err, ShouldNotBeNil)
		})
	})
}

func TestScorer(t *testing.T) {
	Convey("Given the lexicon classifier", t, func() {
		s := sentiment.New(sentiment.NewLexiconClassifier())
		texts := []string{
			"thank you so much, that was really helpful",
			"this is terrible, I was charged twice",
			"",
			"   ",
			"I am not happy with this",
			"my account number please",
		}
		scores, err := s.Score(context.Background(), texts)

		Convey("Then every utterance gets one distribution summing to one", func() {
			So(err, ShouldBeNil)
			So(len(scores), ShouldEqual, len(texts))
			for _, sc := range scores {
				So(sum(sc), ShouldAlmostEqual, 1.0, 1e-6)
				So(len(sc), ShouldEqual, 3)
			}
		})

		Convey("Then polar texts get the matching label", func() {
			So(scores[0].Dominant(), ShouldEqual, sentiment.Positive)
			So(scores[1].Dominant(), ShouldEqual, sentiment.Negative)
			So(scores[4].Dominant(), ShouldEqual, sentiment.Negative)
			So(scores[5].Dominant(), ShouldEqual, sentiment.Neutral)
		})

		Convey("Then empty texts get the uniform distribution", func() {
			for _, i := range []int{2, 3} {
				for _, p := range scores[i] {
					So(p, ShouldAlmostEqual, 1.0/3, 1e-9)
				}
			}
		})
	})

	Convey("Given a classifier that returns too few rows", t, func() {
		clf := &fixedClassifier{labels: []string{"a", "b"}, rows: [][]float64{{1, 2}}}
		_, err := sentiment.New(clf).Score(context.Background(), []string{"x", "y"})

		Convey("Then ErrShapeMismatch is returned", func() {
			So(errors.Is(err, types.ErrShapeMismatch), ShouldBeTrue)
		})
	})

	Convey("Given a classifier that returns the wrong width", t, func() {
		clf := &fixedClassifier{labels: []string{"a", "b"}, rows: [][]float64{{1, 2, 3}}}
		_, err := sentiment.New(clf).Score(context.Background(), []string{"x"})

		Convey("Then ErrShapeMismatch is returned", func() {
			So(errors.Is(err, types.ErrShapeMismatch), ShouldBeTrue)
		})
	})

	Convey("Given a failing classifier", t, func() {
		clf := &fixedClassifier{labels: []string{"a"}, err: errors.New("down")}
		_, err := sentiment.New(clf).Score(context.Background(), []string{"x"})

		Convey("Then ErrSentiment is returned", func() {
			So(errors.Is(err, types.ErrSentiment), ShouldBeTrue)
		})
	})

	Convey("Given only blank texts", t, func() {
		clf := &fixedClassifier{labels: []string{"a", "b"}}
		scores, err := sentiment.New(clf).Score(context.Background(), []string{"", " "})

		Convey("Then the classifier is never called", func() {
			So(err, ShouldBeNil)
			So(len(clf.seen), ShouldEqual, 0)
			So(scores[0]["a"], ShouldEqual, 0.5)
		})
	})
}

func TestHTTPClassifier(t *testing.T) {
	Convey("Given a classification service that fails once", t, func() {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/classify" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			if atomic.AddInt32(&calls, 1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			var req struct {
				Texts []string `json:"texts"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			rows := make([][]float64, len(req.Texts))
			for i := range rows {
				rows[i] = []float64{3, 0, -1}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"labels": []string{"positive", "neutral", "negative"},
				"logits": rows,
			})
		}))
		defer srv.Close()

		clf := sentiment.NewHTTPClassifier(srv.URL+"/",
			sentiment.WithRetry(clients.RetryPolicy{MaxAttempts: 3, Initial: time.Millisecond, Max: time.Millisecond}))
		scores, err := sentiment.New(clf).Score(context.Background(), []string{"great", ""})

		Convey("Then it retries and maps columns by label", func() {
			So(err, ShouldBeNil)
			So(atomic.LoadInt32(&calls), ShouldEqual, 2)
			So(scores[0].Dominant(), ShouldEqual, sentiment.Positive)
			So(sum(scores[0]), ShouldAlmostEqual, 1.0, 1e-6)
			So(scores[1][sentiment.Neutral], ShouldAlmostEqual, 1.0/3, 1e-9)
		})
	})

	Convey("Given a service that returns an unexpected label set", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"labels":["joy","anger"],"logits":[[1,2]]}`))
		}))
		defer srv.Close()

		_, err := sentiment.New(sentiment.NewHTTPClassifier(srv.URL)).Score(context.Background(), []string{"x"})

		Convey("Then ErrShapeMismatch is returned", func() {
			So(errors.Is(err, types.ErrShapeMismatch), ShouldBeTrue)
		})
	})
}
