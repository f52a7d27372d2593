package types

import (
	"context"
	"errors"
)

// Sentinel error kinds for a single call's pipeline. Stages wrap these with
// fmt.Errorf("...: %w") so callers can classify with errors.Is.
var (
	ErrMalformedTranscript = errors.New("malformed transcript")
	ErrShapeMismatch       = errors.New("stage output shape mismatch")
	ErrKPIExtraction       = errors.New("kpi extraction failed")
	ErrRedaction           = errors.New("pii redaction failed")
	ErrMissingMetadata     = errors.New("missing call metadata")
	ErrSentiment           = errors.New("sentiment scoring failed")
	ErrSource              = errors.New("transcript source failed")
	ErrSink                = errors.New("persistence sink failed")
)

// Failure kinds reported per contact.
const (
	KindMalformedTranscript = "malformed_transcript"
	KindShapeMismatch       = "shape_mismatch"
	KindKPIExtraction       = "kpi_extraction"
	KindRedaction           = "redaction"
	KindMissingMetadata     = "missing_metadata"
	KindSentiment           = "sentiment"
	KindSource              = "source"
	KindSink                = "sink"
	KindCanceled            = "canceled"
	KindUnknown             = "unknown"
)

var kinds = []struct {
	err  error
	kind string
}{
	{ErrShapeMismatch, KindShapeMismatch},
	{ErrMalformedTranscript, KindMalformedTranscript},
	{ErrMissingMetadata, KindMissingMetadata},
	{ErrRedaction, KindRedaction},
	{ErrKPIExtraction, KindKPIExtraction},
	{ErrSentiment, KindSentiment},
	{ErrSource, KindSource},
	{ErrSink, KindSink},
}

// KindOf classifies err into one of the failure kinds.
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCanceled
	}
	return KindUnknown
}
