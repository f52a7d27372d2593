// Package sink persists intra-call and inter-call records.
package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"call-analytics-go/internal/types"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS intra_call (
	contact_id                   TEXT NOT NULL,
	sequence_index               INTEGER NOT NULL,
	speaker_id                   TEXT NOT NULL,
	text                         TEXT NOT NULL,
	start_time                   REAL NOT NULL,
	end_time                     REAL NOT NULL,
	sentiment                    TEXT NOT NULL,
	sentiment_label              TEXT NOT NULL,
	gap_before                   REAL NOT NULL,
	overlap_with_next            REAL NOT NULL,
	cumulative_speaker_talk_time REAL NOT NULL,
	PRIMARY KEY (contact_id, sequence_index)
);

CREATE TABLE IF NOT EXISTS inter_call (
	contact_id         TEXT PRIMARY KEY,
	last_modified_date DATETIME NOT NULL,
	call_duration      REAL NOT NULL,
	total_talk_time    REAL NOT NULL,
	total_silence      REAL NOT NULL,
	total_overlap      REAL NOT NULL,
	interruption_count INTEGER NOT NULL,
	utterance_count    INTEGER NOT NULL,
	speaker_talk_time  TEXT NOT NULL,
	average_sentiment  TEXT NOT NULL,
	ending_sentiment   TEXT NOT NULL,
	kpis               TEXT NOT NULL,
	redacted_text      TEXT NOT NULL,
	written_at         DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_inter_call_modified ON inter_call(last_modified_date);
`

// SQLite writes both tables to a SQLite database. Re-processing a call replaces its rows.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %w", types.ErrSink, err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: create schema: %w", types.ErrSink, err)
	}
	return &SQLite{db: db}, nil
}

// WriteIntra replaces a call's utterance rows. An empty slice carries no
// contact id and is a no-op; use WriteCall to clear a call.
func (s *SQLite) WriteIntra(ctx context.Context, rows []types.IntraCallRecord) error {
	if len(rows) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return writeIntra(ctx, tx, rows[0].ContactID, rows)
	})
}

func (s *SQLite) WriteInter(ctx context.Context, rec types.InterCallRecord) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return writeInter(ctx, tx, rec)
	})
}

// WriteCall replaces both tables' rows for one call in a single transaction,
// so a failed call never leaves partial rows behind.
func (s *SQLite) WriteCall(ctx context.Context, rows []types.IntraCallRecord, rec types.InterCallRecord) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := writeIntra(ctx, tx, rec.ContactID, rows); err != nil {
			return err
		}
		return writeInter(ctx, tx, rec)
	})
}

func (s *SQLite) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", types.ErrSink, err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", types.ErrSink, err)
	}
	return nil
}

func writeIntra(ctx context.Context, tx *sql.Tx, contactID string, rows []types.IntraCallRecord) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM intra_call WHERE contact_id = ?`, contactID); err != nil {
		return fmt.Errorf("%w: clear intra rows: %w", types.ErrSink, err)
	}
	if len(rows) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO intra_call (contact_id, sequence_index, speaker_id, text, start_time, end_time,
		 sentiment, sentiment_label, gap_before, overlap_with_next, cumulative_speaker_talk_time)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("%w: prepare: %w", types.ErrSink, err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if r.ContactID != contactID {
			return fmt.Errorf("%w: row %d belongs to %s, not %s", types.ErrSink, r.SequenceIndex, r.ContactID, contactID)
		}
		sent, err := json.Marshal(r.Sentiment)
		if err != nil {
			return fmt.Errorf("%w: encode sentiment: %w", types.ErrSink, err)
		}
		if _, err := stmt.ExecContext(ctx,
			r.ContactID, r.SequenceIndex, r.SpeakerID, r.Text, r.StartTime, r.EndTime,
			string(sent), r.SentimentLabel, r.GapBefore, r.OverlapWithNext, r.CumulativeSpeakerTalkTime,
		); err != nil {
			return fmt.Errorf("%w: insert intra row %d: %w", types.ErrSink, r.SequenceIndex, err)
		}
	}
	return nil
}

func writeInter(ctx context.Context, tx *sql.Tx, rec types.InterCallRecord) error {
	talk, err := json.Marshal(rec.SpeakerTalkTime)
	if err != nil {
		return fmt.Errorf("%w: encode talk time: %w", types.ErrSink, err)
	}
	avg, err := json.Marshal(rec.AverageSentiment)
	if err != nil {
		return fmt.Errorf("%w: encode sentiment: %w", types.ErrSink, err)
	}
	kpis, err := json.Marshal(rec.KPIs)
	if err != nil {
		return fmt.Errorf("%w: encode kpis: %w", types.ErrSink, err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO inter_call (contact_id, last_modified_date, call_duration, total_talk_time,
		 total_silence, total_overlap, interruption_count, utterance_count, speaker_talk_time,
		 average_sentiment, ending_sentiment, kpis, redacted_text)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ContactID, rec.LastModifiedDate.UTC(), rec.CallDuration, rec.TotalTalkTime,
		rec.TotalSilence, rec.TotalOverlap, rec.InterruptionCount, rec.UtteranceCount, string(talk),
		string(avg), rec.EndingSentiment, string(kpis), rec.RedactedText,
	)
	if err != nil {
		return fmt.Errorf("%w: insert inter row: %w", types.ErrSink, err)
	}
	return nil
}

// LoadInter reads back one call row.
func (s *SQLite) LoadInter(ctx context.Context, contactID string) (types.InterCallRecord, error) {
	var (
		rec             types.InterCallRecord
		modified        time.Time
		talk, avg, kpis string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT contact_id, last_modified_date, call_duration, total_talk_time, total_silence, total_overlap,
		 interruption_count, utterance_count, speaker_talk_time, average_sentiment, ending_sentiment, kpis, redacted_text
		 FROM inter_call WHERE contact_id = ?`, contactID,
	).Scan(&rec.ContactID, &modified, &rec.CallDuration, &rec.TotalTalkTime, &rec.TotalSilence, &rec.TotalOverlap,
		&rec.InterruptionCount, &rec.UtteranceCount, &talk, &avg, &rec.EndingSentiment, &kpis, &rec.RedactedText)
	if err != nil {
		return types.InterCallRecord{}, fmt.Errorf("%w: load %s: %w", types.ErrSink, contactID, err)
	}
	rec.LastModifiedDate = modified.UTC()
	if err := json.Unmarshal([]byte(talk), &rec.SpeakerTalkTime); err != nil {
		return types.InterCallRecord{}, fmt.Errorf("%w: decode talk time: %w", types.ErrSink, err)
	}
	if err := json.Unmarshal([]byte(avg), &rec.AverageSentiment); err != nil {
		return types.InterCallRecord{}, fmt.Errorf("%w: decode sentiment: %w", types.ErrSink, err)
	}
	if err := json.Unmarshal([]byte(kpis), &rec.KPIs); err != nil {
		return types.InterCallRecord{}, fmt.Errorf("%w: decode kpis: %w", types.ErrSink, err)
	}
	return rec, nil
}

// CountIntra returns the number of stored utterance rows for a call.
func (s *SQLite) CountIntra(ctx context.Context, contactID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM intra_call WHERE contact_id = ?`, contactID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: count intra rows: %w", types.ErrSink, err)
	}
	return n, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
