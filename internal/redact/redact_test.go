package redact_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"call-analytics-go/internal/clients"
	"call-analytics-go/internal/redact"
	"call-analytics-go/internal/types"
	. "github.com/smartystreets/goconvey/convey"
)

type failingDetector struct{}

func (failingDetector) Detect(context.Context, string) ([]redact.Span, error) {
	return nil, errors.New("ner service unavailable")
}

// wordDetector flags every occurrence of its words, including inside placeholders.
type wordDetector map[string]string

func (w wordDetector) Detect(_ context.Context, text string) ([]redact.Span, error) {
	var out []redact.Span
	for word, class := range w {
		for i := 0; i+len(word) <= len(text); i++ {
			if text[i:i+len(word)] == word {
				out = append(out, redact.Span{Start: i, End: i + len(word), Class: class})
			}
		}
	}
	return out, nil
}

func TestPatternRedaction(t *testing.T) {
	ctx := context.Background()
	r := redact.New(redact.NewPatternDetector())

	Convey("Given text with structured identifiers and names", t, func() {
		text := "Hi, my name is John Smith. Reach me at john.smith@example.com or 555-123-4567. " +
			"Card 4111 1111 1111 1111, SSN 123-45-6789, from 10.0.0.12. Ask for Dr. Adams."
		out, err := r.Redact(ctx, text)

		Convey("Then each is replaced with its class placeholder", func() {
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "my name is [NAME].")
			So(out, ShouldContainSubstring, "[EMAIL]")
			So(out, ShouldContainSubstring, "[PHONE_NUMBER]")
			So(out, ShouldContainSubstring, "Card [CARD_NUMBER],")
			So(out, ShouldContainSubstring, "SSN [SSN]")
			So(out, ShouldContainSubstring, "[IP_ADDRESS]")
			So(out, ShouldContainSubstring, "Dr. [NAME].")
			So(out, ShouldNotContainSubstring, "John")
			So(out, ShouldNotContainSubstring, "4111")
		})

		Convey("Then redacting again is a no-op", func() {
			again, err := r.Redact(ctx, out)
			So(err, ShouldBeNil)
			So(again, ShouldEqual, out)
		})
	})

	Convey("Given text with nothing to redact", t, func() {
		out, err := r.Redact(ctx, "the router keeps dropping the connection")

		Convey("Then it is unchanged", func() {
			So(err, ShouldBeNil)
			So(out, ShouldEqual, "the router keeps dropping the connection")
		})
	})
}

func TestApply(t *testing.T) {
	Convey("Given overlapping and out-of-range spans", t, func() {
		out, applied := redact.Apply("call Anna Berg now", []redact.Span{
			{Start: 5, End: 9, Class: "PERSON"},
			{Start: 7, End: 14, Class: "PER"},
			{Start: 16, End: 99, Class: "misc"},
		})

		Convey("Then spans are merged, clipped and classes normalized", func() {
			So(out, ShouldEqual, "call [NAME] n[MISC]")
			So(len(applied), ShouldEqual, 2)
		})
	})

	Convey("Given a detector that flags text inside placeholders", t, func() {
		r := redact.New(wordDetector{"Anna": "PERSON", "NAME": "ORG"})
		first, _ := r.Redact(context.Background(), "this is Anna")
		second, _ := r.Redact(context.Background(), first)

		Convey("Then the placeholder is left alone", func() {
			So(first, ShouldEqual, "this is [NAME]")
			So(second, ShouldEqual, first)
		})
	})

	Convey("Given spans that start at or past the end of the text", t, func() {
		out, applied := redact.Apply("hello", []redact.Span{
			{Start: 5, End: 9, Class: "PERSON"},
			{Start: 12, End: 20, Class: "PERSON"},
			{Start: -4, End: -1, Class: "PERSON"},
		})

		Convey("Then they are dropped without touching the text", func() {
			So(out, ShouldEqual, "hello")
			So(applied, ShouldBeEmpty)
		})
	})

	Convey("Given PII directly next to a transcript marker", t, func() {
		r := redact.New(redact.NewPatternDetector())
		phone, err := r.Redact(context.Background(), "[CROSSTALK]555-123-4567")
		So(err, ShouldBeNil)
		email, err := r.Redact(context.Background(), "reach me at bob@example.com[INAUDIBLE]")
		So(err, ShouldBeNil)

		Convey("Then the PII is redacted and the marker kept", func() {
			So(phone, ShouldEqual, "[CROSSTALK][PHONE_NUMBER]")
			So(email, ShouldEqual, "reach me at [EMAIL][INAUDIBLE]")
		})

		Convey("Then redacting again changes nothing", func() {
			again, _ := r.Redact(context.Background(), phone)
			So(again, ShouldEqual, phone)
		})
	})

	Convey("Given a span covering a marker and the PII around it", t, func() {
		out, applied := redact.Apply("Anna [INAUDIBLE] Berg", []redact.Span{{Start: 0, End: 21, Class: "PERSON"}})

		Convey("Then only the text outside the marker is replaced", func() {
			So(out, ShouldEqual, "[NAME][INAUDIBLE][NAME]")
			So(len(applied), ShouldEqual, 2)
		})
	})

	Convey("Given a span that splits a multi-byte rune", t, func() {
		out, _ := redact.Apply("née Zoë here", []redact.Span{{Start: 5, End: 8, Class: "name"}})

		Convey("Then it widens to rune boundaries", func() {
			So(out, ShouldEqual, "née [NAME] here")
		})
	})

	Convey("Given assorted detector labels", t, func() {
		So(redact.NormalizeClass("GPE"), ShouldEqual, "LOCATION")
		So(redact.NormalizeClass("org"), ShouldEqual, "ORGANIZATION")
		So(redact.NormalizeClass("credit card"), ShouldEqual, "CARD_NUMBER")
		So(redact.NormalizeClass("account id"), ShouldEqual, "ACCOUNT_ID")
		So(redact.NormalizeClass("!!"), ShouldEqual, "PII")
	})
}

func TestFailurePolicy(t *testing.T) {
	ctx := context.Background()

	Convey("Given a failing detector", t, func() {
		Convey("When the redactor is fail-closed", func() {
			_, err := redact.New(failingDetector{}).Redact(ctx, "Mr. Jones called")

			Convey("Then ErrRedaction is returned", func() {
				So(errors.Is(err, types.ErrRedaction), ShouldBeTrue)
			})
		})

		Convey("When the redactor is fail-open", func() {
			out, err := redact.New(failingDetector{}, redact.WithFailOpen(true)).Redact(ctx, "Mr. Jones called")

			Convey("Then the text passes through", func() {
				So(err, ShouldBeNil)
				So(out, ShouldEqual, "Mr. Jones called")
			})
		})

		Convey("When it is chained with a working detector", func() {
			chain := redact.ChainDetector{redact.NewPatternDetector(), failingDetector{}}
			_, err := redact.New(chain).Redact(ctx, "Mr. Jones called")

			Convey("Then the chain fails closed", func() {
				So(errors.Is(err, types.ErrRedaction), ShouldBeTrue)
			})
		})
	})
}

func TestUtterances(t *testing.T) {
	Convey("Given a call's utterances", t, func() {
		utts := []types.Utterance{
			{SpeakerID: "AGENT", Text: "this is Maria, how can I help?", SequenceIndex: 0},
			{SpeakerID: "CUSTOMER", Text: "", SequenceIndex: 1},
			{SpeakerID: "CUSTOMER", Text: "my number is 555-123-4567", SequenceIndex: 2},
		}
		texts, err := redact.New(redact.NewPatternDetector()).RedactUtterances(context.Background(), utts)

		Convey("Then each text is redacted independently and joined in order", func() {
			So(err, ShouldBeNil)
			So(redact.JoinText(utts, texts), ShouldEqual,
				"AGENT: this is [NAME], how can I help?\nCUSTOMER: \nCUSTOMER: my number is [PHONE_NUMBER]")
		})
	})
}

func TestHTTPDetector(t *testing.T) {
	Convey("Given an entity service reporting character offsets", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Text string `json:"text"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			_ = json.NewEncoder(w).Encode(map[string]any{"entities": []map[string]any{
				{"start": 4, "end": 7, "label": "PERSON", "score": 0.98},
				{"start": 14, "end": 20, "label": "GPE", "score": 0.97},
				{"start": 0, "end": 3, "label": "ORG", "score": 0.1},
			}})
		}))
		defer srv.Close()

		det := redact.NewHTTPDetector(srv.URL, redact.WithMinScore(0.5))
		out, err := redact.New(det).Redact(context.Background(), "Hé, Zoë from Québec here")

		Convey("Then entities are replaced at the right bytes", func() {
			So(err, ShouldBeNil)
			So(out, ShouldEqual, "Hé, [NAME] from [LOCATION] here")
		})
	})

	Convey("Given an entity service reporting offsets past the end of the text", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"entities": []map[string]any{
				{"start": 10, "end": 14, "label": "PERSON", "score": 0.9},
				{"start": 3, "end": 40, "label": "PERSON", "score": 0.9},
			}})
		}))
		defer srv.Close()

		out, err := redact.New(redact.NewHTTPDetector(srv.URL)).Redact(context.Background(), "hi Bob")

		Convey("Then the spans are clipped to the text", func() {
			So(err, ShouldBeNil)
			So(out, ShouldEqual, "hi [NAME]")
		})
	})

	Convey("Given an entity service that is down", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		det := redact.NewHTTPDetector(srv.URL,
			redact.WithRetry(clients.RetryPolicy{MaxAttempts: 2, Initial: time.Millisecond, Max: time.Millisecond}))
		_, err := redact.New(det).Redact(context.Background(), "Zoë")

		Convey("Then the call fails closed", func() {
			So(errors.Is(err, types.ErrRedaction), ShouldBeTrue)
		})
	})
}
