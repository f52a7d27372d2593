// Package timing derives talk, silence and overlap features from ordered utterances.
package timing

import (
	"math"

	"call-analytics-go/internal/types"
)

// Analyze computes one TimingSegment per utterance plus the call aggregates.
// utts must already be in normalized order; it is never reordered here, so a
// negative gap shows up as overlap on the previous utterance instead.
func Analyze(utts []types.Utterance) ([]types.TimingSegment, types.CallTiming) {
	segs := make([]types.TimingSegment, len(utts))
	call := types.CallTiming{
		SpeakerTalkTime: map[string]float64{},
		UtteranceCount:  len(utts),
	}
	if len(utts) == 0 {
		return segs, call
	}

	minStart, maxEnd := math.Inf(1), math.Inf(-1)
	for i, u := range utts {
		if i > 0 {
			if gap := u.StartTime - utts[i-1].EndTime; gap > 0 {
				segs[i].GapBefore = gap
				call.TotalSilence += gap
			}
		}
		if i+1 < len(utts) {
			if ov := u.EndTime - utts[i+1].StartTime; ov > 0 {
				segs[i].OverlapWithNext = ov
				call.TotalOverlap += ov
				call.InterruptionCount++
			}
		}

		d := u.Duration()
		call.TotalTalkTime += d
		call.SpeakerTalkTime[u.SpeakerID] += d
		segs[i].CumulativeSpeakerTalkTime = call.SpeakerTalkTime[u.SpeakerID]

		minStart = math.Min(minStart, u.StartTime)
		maxEnd = math.Max(maxEnd, u.EndTime)
	}
	call.CallDuration = maxEnd - minStart
	return segs, call
}

// TalkShare returns each speaker's fraction of total talk time.
func TalkShare(call types.CallTiming) map[string]float64 {
	out := make(map[string]float64, len(call.SpeakerTalkTime))
	for s, t := range call.SpeakerTalkTime {
		if call.TotalTalkTime > 0 {
			out[s] = t / call.TotalTalkTime
		} else {
			out[s] = 0
		}
	}
	return out
}
