package transcription

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"call-analytics-go/internal/types"
)

// Contact-Lens style analysis output: offsets in milliseconds.
type contactLensPayload struct {
	Transcript       []contactLensTurn `json:"Transcript"`
	CustomerMetadata struct {
		ContactID string `json:"ContactId"`
	} `json:"CustomerMetadata"`
}

type contactLensTurn struct {
	ParticipantID     *string  `json:"ParticipantId"`
	Content           *string  `json:"Content"`
	BeginOffsetMillis *float64 `json:"BeginOffsetMillis"`
	EndOffsetMillis   *float64 `json:"EndOffsetMillis"`
}

// Diarized speech-to-text output: seconds as numbers or HH:MM:SS.mmm strings.
type diarizedSegment struct {
	Speaker   *string         `json:"speaker"`
	Text      *string         `json:"text"`
	StartTime json.RawMessage `json:"start_time"`
	EndTime   json.RawMessage `json:"end_time"`
}

// segment is the shape-independent intermediate form.
type segment struct {
	speaker string
	text    string
	start   float64
	end     float64
}

func decodeSegments(payload []byte) ([]segment, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty payload", types.ErrMalformedTranscript)
	}
	switch trimmed[0] {
	case '[':
		var segs []diarizedSegment
		if err := json.Unmarshal(trimmed, &segs); err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrMalformedTranscript, err)
		}
		return fromDiarized(segs)
	case '{':
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &probe); err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrMalformedTranscript, err)
		}
		if _, ok := probe["Transcript"]; ok {
			var p contactLensPayload
			if err := json.Unmarshal(trimmed, &p); err != nil {
				return nil, fmt.Errorf("%w: %v", types.ErrMalformedTranscript, err)
			}
			return fromContactLens(p.Transcript)
		}
		if raw, ok := probe["segments"]; ok {
			var segs []diarizedSegment
			if err := json.Unmarshal(raw, &segs); err != nil {
				return nil, fmt.Errorf("%w: %v", types.ErrMalformedTranscript, err)
			}
			return fromDiarized(segs)
		}
	}
	return nil, fmt.Errorf("%w: unrecognized transcript shape", types.ErrMalformedTranscript)
}

func fromContactLens(turns []contactLensTurn) ([]segment, error) {
	out := make([]segment, 0, len(turns))
	for i, t := range turns {
		switch {
		case t.ParticipantID == nil || strings.TrimSpace(*t.ParticipantID) == "":
			return nil, fmt.Errorf("%w: segment %d: missing speaker", types.ErrMalformedTranscript, i)
		case t.Content == nil:
			return nil, fmt.Errorf("%w: segment %d: missing text", types.ErrMalformedTranscript, i)
		case t.BeginOffsetMillis == nil || t.EndOffsetMillis == nil:
			return nil, fmt.Errorf("%w: segment %d: missing timestamp", types.ErrMalformedTranscript, i)
		}
		out = append(out, segment{
			speaker: strings.TrimSpace(*t.ParticipantID),
			text:    *t.Content,
			start:   *t.BeginOffsetMillis / 1000,
			end:     *t.EndOffsetMillis / 1000,
		})
	}
	return out, nil
}

func fromDiarized(segs []diarizedSegment) ([]segment, error) {
	out := make([]segment, 0, len(segs))
	for i, s := range segs {
		switch {
		case s.Speaker == nil || strings.TrimSpace(*s.Speaker) == "":
			return nil, fmt.Errorf("%w: segment %d: missing speaker", types.ErrMalformedTranscript, i)
		case s.Text == nil:
			return nil, fmt.Errorf("%w: segment %d: missing text", types.ErrMalformedTranscript, i)
		}
		start, err := parseSeconds(s.StartTime)
		if err != nil {
			return nil, fmt.Errorf("%w: segment %d: start_time: %v", types.ErrMalformedTranscript, i, err)
		}
		end, err := parseSeconds(s.EndTime)
		if err != nil {
			return nil, fmt.Errorf("%w: segment %d: end_time: %v", types.ErrMalformedTranscript, i, err)
		}
		out = append(out, segment{speaker: strings.TrimSpace(*s.Speaker), text: *s.Text, start: start, end: end})
	}
	return out, nil
}

// parseSeconds accepts 12.5, "12.5", "00:00:12.500" or "00:12.5".
func parseSeconds(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, fmt.Errorf("missing")
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("not a number or string")
	}
	return parseClock(strings.TrimSpace(s))
}

func parseClock(s string) (float64, error) {
	if s == "" {
		return 0, fmt.Errorf("missing")
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, nil
	}
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("bad clock %q", s)
	}
	total := 0.0
	for _, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("bad clock %q", s)
		}
		total = total*60 + v
	}
	return total, nil
}
