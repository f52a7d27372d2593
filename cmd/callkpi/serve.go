package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"call-analytics-go/internal/dataset"
	"call-analytics-go/internal/logger"
	"call-analytics-go/internal/metrics"
	"call-analytics-go/internal/pipeline"
	"call-analytics-go/internal/processor"
	"call-analytics-go/internal/transcription"
	"call-analytics-go/internal/types"
)

const maxPayloadBytes = 16 << 20

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve health, metrics and on-demand processing over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := build(a.cfg, a.log)
			if err != nil {
				a.log.WithError(err).Error("build pipeline")
				return err
			}
			defer c.sink.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := &http.Server{
				Addr:         a.cfg.Addr,
				Handler:      newMux(c.runner, a.log),
				ReadTimeout:  15 * time.Second,
				WriteTimeout: a.cfg.CallTimeout + 30*time.Second,
				IdleTimeout:  120 * time.Second,
			}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			a.log.WithField("addr", a.cfg.Addr).Info("listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.WithError(err).Error("server terminated")
				return err
			}
			return nil
		},
	}
}

func newMux(runner *pipeline.Runner, log *logger.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	var batchMu sync.Mutex

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		log.WithRequest(r).Debug("health check")
		fmt.Fprint(w, "ok")
	})
	mux.Handle("GET /metrics", metrics.Handler())

	// POST /process?contact_id=<id> with the raw transcript payload as the body.
	mux.HandleFunc("POST /process", func(w http.ResponseWriter, r *http.Request) {
		reqLog := log.WithRequest(r).WithField("handler", "process")

		contactID := r.URL.Query().Get("contact_id")
		payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}
		if contactID == "" {
			contactID = transcription.PayloadContactID(payload)
		}
		if !dataset.ValidContactID(contactID) {
			http.Error(w, "invalid contact_id", http.StatusBadRequest)
			return
		}
		reqLog = reqLog.WithField("contact_id", contactID)

		res, err := runner.Handle(r.Context(), processor.Call{
			Meta:    types.CallMetadata{ContactID: contactID, LastModifiedDate: time.Now().UTC()},
			Payload: payload,
		})
		if err != nil {
			kind := types.KindOf(err)
			reqLog.WithError(err).WithField("kind", kind).Warn("call failed")
			writeJSON(w, statusFor(kind), pipeline.Failure{ContactID: contactID, Kind: kind, Error: err.Error()}, reqLog)
			return
		}
		writeJSON(w, http.StatusOK, res, reqLog)
	})

	// POST /batch runs one batch over the configured source. Batches never overlap.
	mux.HandleFunc("POST /batch", func(w http.ResponseWriter, r *http.Request) {
		reqLog := log.WithRequest(r).WithField("handler", "batch")
		if !batchMu.TryLock() {
			http.Error(w, "batch already running", http.StatusConflict)
			return
		}
		defer batchMu.Unlock()

		rep, err := runner.Run(r.Context())
		if err != nil {
			reqLog.WithError(err).Warn("batch ended early")
			if len(rep.Results)+len(rep.Failures) == 0 {
				http.Error(w, err.Error(), http.StatusBadGateway)
				return
			}
		}
		rep.Results = nil
		writeJSON(w, http.StatusOK, rep, reqLog)
	})
	return mux
}

func statusFor(kind string) int {
	switch kind {
	case types.KindMalformedTranscript, types.KindMissingMetadata:
		return http.StatusUnprocessableEntity
	case types.KindCanceled:
		return http.StatusGatewayTimeout
	case types.KindSink, types.KindUnknown, types.KindShapeMismatch:
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any, log *logrus.Entry) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.WithError(err).Error("failed to write response")
	}
}
