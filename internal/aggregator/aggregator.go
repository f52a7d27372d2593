// Package aggregator merges per-stage outputs into the intra-call and inter-call records.
package aggregator

import (
	"fmt"
	"strings"

	"call-analytics-go/internal/types"
)

// AssembleIntra zips utterances with their sentiment and timing, position by position.
func AssembleIntra(contactID string, utts []types.Utterance, scores []types.SentimentScore, segs []types.TimingSegment) ([]types.IntraCallRecord, error) {
	if len(scores) != len(utts) {
		return nil, fmt.Errorf("%w: %d sentiment scores for %d utterances", types.ErrShapeMismatch, len(scores), len(utts))
	}
	if len(segs) != len(utts) {
		return nil, fmt.Errorf("%w: %d timing segments for %d utterances", types.ErrShapeMismatch, len(segs), len(utts))
	}

	out := make([]types.IntraCallRecord, len(utts))
	for i, u := range utts {
		if u.SequenceIndex != i {
			return nil, fmt.Errorf("%w: utterance at position %d has sequence index %d", types.ErrShapeMismatch, i, u.SequenceIndex)
		}
		out[i] = types.IntraCallRecord{
			ContactID:      contactID,
			Utterance:      u,
			Sentiment:      scores[i],
			SentimentLabel: scores[i].Dominant(),
			TimingSegment:  segs[i],
		}
	}
	return out, nil
}

// AssembleInter builds the single per-call row.
func AssembleInter(meta types.CallMetadata, call types.CallTiming, intra []types.IntraCallRecord, kpis types.KPISet, redacted string) (types.InterCallRecord, error) {
	if err := ValidateMetadata(meta); err != nil {
		return types.InterCallRecord{}, err
	}

	rec := types.InterCallRecord{
		ContactID:         meta.ContactID,
		LastModifiedDate:  meta.LastModifiedDate,
		CallDuration:      call.CallDuration,
		TotalTalkTime:     call.TotalTalkTime,
		TotalSilence:      call.TotalSilence,
		TotalOverlap:      call.TotalOverlap,
		InterruptionCount: call.InterruptionCount,
		UtteranceCount:    call.UtteranceCount,
		SpeakerTalkTime:   copyMap(call.SpeakerTalkTime),
		AverageSentiment:  AverageSentiment(intra),
		KPIs:              kpis,
		RedactedText:      redacted,
	}
	if n := len(intra); n > 0 {
		rec.EndingSentiment = intra[n-1].SentimentLabel
	}
	return rec, nil
}

// ValidateMetadata checks the fields every inter-call row requires.
func ValidateMetadata(meta types.CallMetadata) error {
	if strings.TrimSpace(meta.ContactID) == "" {
		return fmt.Errorf("%w: contact_id is empty", types.ErrMissingMetadata)
	}
	if meta.LastModifiedDate.IsZero() {
		return fmt.Errorf("%w: last_modified_date is unset for %s", types.ErrMissingMetadata, meta.ContactID)
	}
	return nil
}

// AverageSentiment is the label-wise mean of the utterance distributions.
// It is empty for a call with no utterances.
func AverageSentiment(intra []types.IntraCallRecord) types.SentimentScore {
	out := types.SentimentScore{}
	if len(intra) == 0 {
		return out
	}
	for _, r := range intra {
		for l, p := range r.Sentiment {
			out[l] += p
		}
	}
	n := float64(len(intra))
	for l := range out {
		out[l] /= n
	}
	return out
}

// Insight summarizes a batch of inter-call records.
type Insight struct {
	Calls                int                `json:"calls"`
	AverageDuration      float64            `json:"average_duration"`
	EndingSentimentShare map[string]float64 `json:"ending_sentiment_share"`
	CategoryCounts       map[string]int     `json:"category_counts"`
	EscalationRate       float64            `json:"escalation_rate"`
}

// Summarize aggregates a batch. Categories come from the "category" KPI and
// escalations from "escalation_requested"; absent values are skipped.
func Summarize(records []types.InterCallRecord) Insight {
	ins := Insight{
		Calls:                len(records),
		EndingSentimentShare: map[string]float64{},
		CategoryCounts:       map[string]int{},
	}
	if len(records) == 0 {
		return ins
	}
	escalated, answered := 0, 0
	for _, r := range records {
		ins.AverageDuration += r.CallDuration
		if r.EndingSentiment != "" {
			ins.EndingSentimentShare[r.EndingSentiment]++
		}
		if c := r.KPIs["category"]; c.Kind == types.KPIString && c.Str != "" {
			ins.CategoryCounts[c.Str]++
		}
		if e := r.KPIs["escalation_requested"]; e.Kind == types.KPIBool {
			answered++
			if e.Bool {
				escalated++
			}
		}
	}
	n := float64(len(records))
	ins.AverageDuration /= n
	for l := range ins.EndingSentimentShare {
		ins.EndingSentimentShare[l] /= n
	}
	if answered > 0 {
		ins.EscalationRate = float64(escalated) / float64(answered)
	}
	return ins
}

func copyMap(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
