package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"call-analytics-go/internal/config"
	"call-analytics-go/internal/logger"
	"call-analytics-go/internal/pipeline"
	"call-analytics-go/internal/processor"
	"call-analytics-go/internal/sink"
	"call-analytics-go/internal/types"
	. "github.com/smartystreets/goconvey/convey"
)

const lensPayload = `{
  "CustomerMetadata": {"ContactId": "c-5"},
  "Transcript": [
    {"ParticipantId": "AGENT", "Content": "Hello, thanks for calling", "BeginOffsetMillis": 0, "EndOffsetMillis": 1500},
    {"ParticipantId": "CUSTOMER", "Content": "My email is a@b.io", "BeginOffsetMillis": 2000, "EndOffsetMillis": 4000}
  ]
}`

func newTestServer(t *testing.T) (*httptest.Server, *sink.Memory) {
	t.Helper()
	cfg := config.New()
	cfg.Sink = "memory"
	cfg.SourceDir = t.TempDir()
	cfg.WorkerCount = 2
	cfg.CallTimeout = 5 * time.Second

	c, err := build(cfg, logger.Discard())
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(newMux(c.runner, logger.Discard()))
	t.Cleanup(srv.Close)
	return srv, c.sink.(*sink.Memory)
}

func TestServe(t *testing.T) {
	Convey("Given the HTTP surface over a memory sink", t, func() {
		srv, mem := newTestServer(t)

		Convey("When health is checked", func() {
			resp, err := http.Get(srv.URL + "/healthz")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then it answers ok", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
			})
		})

		Convey("When a call without contact_id is posted", func() {
			resp, err := http.Post(srv.URL+"/process", "application/json", strings.NewReader(lensPayload))
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			var res processor.Result
			So(json.NewDecoder(resp.Body).Decode(&res), ShouldBeNil)

			Convey("Then the payload contact id is used and the call is persisted", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(res.Inter.ContactID, ShouldEqual, "c-5")
				So(res.Inter.RedactedText, ShouldContainSubstring, "[EMAIL]")
				So(len(mem.Inter()), ShouldEqual, 1)
			})
		})

		Convey("When a malformed call is posted", func() {
			resp, err := http.Post(srv.URL+"/process?contact_id=c-6", "application/json", strings.NewReader(`{"x":1}`))
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			var f pipeline.Failure
			So(json.NewDecoder(resp.Body).Decode(&f), ShouldBeNil)

			Convey("Then it is rejected with its failure kind", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusUnprocessableEntity)
				So(f.Kind, ShouldEqual, types.KindMalformedTranscript)
				So(len(mem.Inter()), ShouldEqual, 0)
			})
		})

		Convey("When an empty batch is run", func() {
			resp, err := http.Post(srv.URL+"/batch", "application/json", nil)
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			var rep pipeline.Report
			So(json.NewDecoder(resp.Body).Decode(&rep), ShouldBeNil)

			Convey("Then a report with no calls comes back", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(rep.BatchID, ShouldNotBeEmpty)
				So(rep.Listed, ShouldEqual, 0)
			})
		})
	})
}
