// Package transcription turns raw diarized transcript payloads into ordered utterances.
package transcription

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"call-analytics-go/internal/types"
)

// Normalize parses a raw transcript payload for one call. The result is ordered by
// start time (stable, so equal start times keep payload order) and indexed 0..n-1.
// Any missing field or a segment ending before it starts fails the whole call with
// types.ErrMalformedTranscript.
func Normalize(contactID string, payload []byte) ([]types.Utterance, error) {
	segs, err := decodeSegments(payload)
	if err != nil {
		return nil, fmt.Errorf("contact %s: %w", contactID, err)
	}
	for i, s := range segs {
		if !validTime(s.start) || !validTime(s.end) {
			return nil, fmt.Errorf("contact %s: %w: segment %d has a negative or non-finite time",
				contactID, types.ErrMalformedTranscript, i)
		}
		if s.end < s.start {
			return nil, fmt.Errorf("contact %s: %w: segment %d ends at %.3f before it starts at %.3f",
				contactID, types.ErrMalformedTranscript, i, s.end, s.start)
		}
	}

	sort.SliceStable(segs, func(i, j int) bool { return segs[i].start < segs[j].start })

	out := make([]types.Utterance, len(segs))
	for i, s := range segs {
		out[i] = types.Utterance{
			SpeakerID:     s.speaker,
			Text:          s.text,
			StartTime:     s.start,
			EndTime:       s.end,
			SequenceIndex: i,
		}
	}
	return out, nil
}

func validTime(t float64) bool {
	return t >= 0 && !math.IsInf(t, 0) && !math.IsNaN(t)
}

// PayloadContactID returns the contact id embedded in a Contact-Lens payload, if any.
func PayloadContactID(payload []byte) string {
	var p contactLensPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return ""
	}
	return strings.TrimSpace(p.CustomerMetadata.ContactID)
}
