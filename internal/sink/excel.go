package sink

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/xuri/excelize/v2"

	"call-analytics-go/internal/types"
)

const (
	intraSheet = "intra_call"
	interSheet = "inter_call"
)

var intraHeader = []any{
	"contact_id", "sequence_index", "speaker_id", "text", "start_time", "end_time",
	"sentiment_label", "gap_before", "overlap_with_next", "cumulative_speaker_talk_time",
}

var interHeader = []any{
	"contact_id", "last_modified_date", "call_duration", "total_talk_time", "total_silence",
	"total_overlap", "interruption_count", "utterance_count", "ending_sentiment", "redacted_text",
}

// Excel buffers rows and writes a two-sheet workbook on Close.
// KPI columns are the given names, or the union of names seen when none are given.
type Excel struct {
	path     string
	kpiNames []string

	mu    sync.Mutex
	intra []types.IntraCallRecord
	inter []types.InterCallRecord
}

func NewExcel(path string, kpiNames []string) *Excel {
	return &Excel{path: path, kpiNames: kpiNames}
}

func (e *Excel) WriteIntra(_ context.Context, rows []types.IntraCallRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.intra = append(e.intra, rows...)
	return nil
}

func (e *Excel) WriteInter(_ context.Context, rec types.InterCallRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inter = append(e.inter, rec)
	return nil
}

func (e *Excel) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", intraSheet); err != nil {
		return fmt.Errorf("%w: rename sheet: %w", types.ErrSink, err)
	}
	if _, err := f.NewSheet(interSheet); err != nil {
		return fmt.Errorf("%w: add sheet: %w", types.ErrSink, err)
	}

	labels := e.sentimentLabels()
	header := append(append([]any{}, intraHeader...), prefixed("sentiment_", labels)...)
	if err := setRow(f, intraSheet, 1, header); err != nil {
		return err
	}
	for i, r := range e.intra {
		row := []any{
			r.ContactID, r.SequenceIndex, r.SpeakerID, r.Text, r.StartTime, r.EndTime,
			r.SentimentLabel, r.GapBefore, r.OverlapWithNext, r.CumulativeSpeakerTalkTime,
		}
		for _, l := range labels {
			row = append(row, r.Sentiment[l])
		}
		if err := setRow(f, intraSheet, i+2, row); err != nil {
			return err
		}
	}

	kpis := e.kpiColumns()
	header = append(append([]any{}, interHeader...), prefixed("kpi_", kpis)...)
	if err := setRow(f, interSheet, 1, header); err != nil {
		return err
	}
	for i, r := range e.inter {
		row := []any{
			r.ContactID, r.LastModifiedDate.UTC().Format("2006-01-02T15:04:05Z"), r.CallDuration,
			r.TotalTalkTime, r.TotalSilence, r.TotalOverlap, r.InterruptionCount, r.UtteranceCount,
			r.EndingSentiment, r.RedactedText,
		}
		for _, k := range kpis {
			row = append(row, r.KPIs[k].Text())
		}
		if err := setRow(f, interSheet, i+2, row); err != nil {
			return err
		}
	}

	if err := f.SaveAs(e.path); err != nil {
		return fmt.Errorf("%w: save %s: %w", types.ErrSink, e.path, err)
	}
	return nil
}

func (e *Excel) sentimentLabels() []string {
	seen := map[string]bool{}
	for _, r := range e.intra {
		for l := range r.Sentiment {
			seen[l] = true
		}
	}
	return sortedKeys(seen)
}

func (e *Excel) kpiColumns() []string {
	if len(e.kpiNames) > 0 {
		return e.kpiNames
	}
	seen := map[string]bool{}
	for _, r := range e.inter {
		for k := range r.KPIs {
			seen[k] = true
		}
	}
	return sortedKeys(seen)
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrSink, err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("%w: write %s row %d: %w", types.ErrSink, sheet, row, err)
	}
	return nil
}

func prefixed(prefix string, names []string) []any {
	out := make([]any, len(names))
	for i, n := range names {
		out[i] = prefix + n
	}
	return out
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
