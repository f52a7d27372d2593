package types

import (
	"sort"
	"time"
)

// Utterance is one speaker turn. Times are seconds from the start of the call.
type Utterance struct {
	SpeakerID     string  `json:"speaker_id"`
	Text          string  `json:"text"`
	StartTime     float64 `json:"start_time"`
	EndTime       float64 `json:"end_time"`
	SequenceIndex int     `json:"sequence_index"`
}

func (u Utterance) Duration() float64 {
	return u.EndTime - u.StartTime
}

// SentimentScore maps a sentiment label to its probability.
type SentimentScore map[string]float64

// Dominant returns the most probable label. Ties resolve to the lexically smaller label.
func (s SentimentScore) Dominant() string {
	labels := make([]string, 0, len(s))
	for l := range s {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	best := ""
	bestP := -1.0
	for _, l := range labels {
		if s[l] > bestP {
			best, bestP = l, s[l]
		}
	}
	return best
}

// TimingSegment holds the per-utterance timing features.
type TimingSegment struct {
	GapBefore                 float64 `json:"gap_before"`
	OverlapWithNext           float64 `json:"overlap_with_next"`
	CumulativeSpeakerTalkTime float64 `json:"cumulative_speaker_talk_time"`
}

// CallTiming holds the call-level timing aggregates.
type CallTiming struct {
	CallDuration      float64            `json:"call_duration"`
	TotalTalkTime     float64            `json:"total_talk_time"`
	TotalSilence      float64            `json:"total_silence"`
	TotalOverlap      float64            `json:"total_overlap"`
	SpeakerTalkTime   map[string]float64 `json:"speaker_talk_time"`
	InterruptionCount int                `json:"interruption_count"`
	UtteranceCount    int                `json:"utterance_count"`
}

// CallMetadata identifies a call and where its transcript came from.
type CallMetadata struct {
	ContactID        string    `json:"contact_id"`
	LastModifiedDate time.Time `json:"last_modified_date"`
	ObjectKey        string    `json:"object_key,omitempty"`
}

// IntraCallRecord is one row of the per-utterance table.
type IntraCallRecord struct {
	ContactID string `json:"contact_id"`
	Utterance
	Sentiment      SentimentScore `json:"sentiment"`
	SentimentLabel string         `json:"sentiment_label"`
	TimingSegment
}

// InterCallRecord is the single per-call row.
type InterCallRecord struct {
	ContactID         string             `json:"contact_id"`
	LastModifiedDate  time.Time          `json:"last_modified_date"`
	CallDuration      float64            `json:"call_duration"`
	TotalTalkTime     float64            `json:"total_talk_time"`
	TotalSilence      float64            `json:"total_silence"`
	TotalOverlap      float64            `json:"total_overlap"`
	InterruptionCount int                `json:"interruption_count"`
	UtteranceCount    int                `json:"utterance_count"`
	SpeakerTalkTime   map[string]float64 `json:"speaker_talk_time"`
	AverageSentiment  SentimentScore     `json:"average_sentiment"`
	EndingSentiment   string             `json:"ending_sentiment"`
	KPIs              KPISet             `json:"kpis"`
	RedactedText      string             `json:"redacted_text"`
}
