package clients_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"call-analytics-go/internal/clients"
	. "github.com/smartystreets/goconvey/convey"
)

func TestPostJSON(t *testing.T) {
	Convey("Given a JSON echo service", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer k" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"no key"}`))
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"ok":true}`))
		}))
		defer srv.Close()
		h := clients.NewHTTP(time.Second)

		Convey("When the request is authorized", func() {
			var out struct {
				OK bool `json:"ok"`
			}
			err := h.PostJSON(context.Background(), srv.URL, map[string]string{"Authorization": "Bearer k"}, map[string]string{"a": "b"}, &out)

			Convey("Then the body is decoded", func() {
				So(err, ShouldBeNil)
				So(out.OK, ShouldBeTrue)
			})
		})

		Convey("When the service rejects the request", func() {
			err := h.PostJSON(context.Background(), srv.URL, nil, map[string]string{}, nil)

			Convey("Then a non-retryable StatusError is returned", func() {
				var se *clients.StatusError
				So(errors.As(err, &se), ShouldBeTrue)
				So(se.Code, ShouldEqual, http.StatusUnauthorized)
				So(clients.Retryable(err), ShouldBeFalse)
			})
		})
	})
}

func TestRetryPolicy(t *testing.T) {
	policy := clients.RetryPolicy{MaxAttempts: 3, Initial: time.Millisecond, Max: 2 * time.Millisecond}

	Convey("Given an operation that always fails transiently", t, func() {
		var calls int32
		op := func(context.Context) error {
			atomic.AddInt32(&calls, 1)
			return &clients.StatusError{Code: http.StatusServiceUnavailable}
		}
		err := policy.Do(context.Background(), op, nil)

		Convey("Then it is attempted MaxAttempts times", func() {
			So(err, ShouldNotBeNil)
			So(atomic.LoadInt32(&calls), ShouldEqual, 3)
		})
	})

	Convey("Given an operation that succeeds on the second attempt", t, func() {
		var calls int32
		op := func(context.Context) error {
			if atomic.AddInt32(&calls, 1) < 2 {
				return &clients.StatusError{Code: http.StatusTooManyRequests}
			}
			return nil
		}
		notified := 0
		err := policy.Do(context.Background(), op, func(error, time.Duration) { notified++ })

		Convey("Then it succeeds after one notification", func() {
			So(err, ShouldBeNil)
			So(notified, ShouldEqual, 1)
		})
	})

	Convey("Given a permanent failure", t, func() {
		var calls int32
		sentinel := errors.New("bad prompt")
		op := func(context.Context) error {
			atomic.AddInt32(&calls, 1)
			return clients.Permanent(sentinel)
		}
		err := policy.Do(context.Background(), op, nil)

		Convey("Then it stops immediately and keeps the cause", func() {
			So(atomic.LoadInt32(&calls), ShouldEqual, 1)
			So(errors.Is(err, sentinel), ShouldBeTrue)
		})
	})

	Convey("Given a canceled context", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := policy.Do(ctx, func(ctx context.Context) error { return ctx.Err() }, nil)

		Convey("Then cancellation is returned", func() {
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}
