package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/formwalk/formwalk/internal/schema"
)

// SQLiteStore persists answer records in a local sqlite database. One row
// per (tag, respondent); re-submission overwrites the previous record.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}
	const ddl = `CREATE TABLE IF NOT EXISTS answers (
		tag          TEXT NOT NULL,
		respondent   TEXT NOT NULL,
		payload      TEXT NOT NULL,
		receipt_id   TEXT NOT NULL,
		submitted_at TIMESTAMP NOT NULL,
		PRIMARY KEY (tag, respondent)
	)`
	if _, err := db.Exec(ddl); err != nil {
		return nil, fmt.Errorf("ensure answers table: %w", err)
	}
	return &SQLiteStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *SQLiteStore) SaveAnswers(ctx context.Context, tag, respondent string, rec schema.AnswerRecord) (*Receipt, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode answers: %w", err)
	}
	receipt := &Receipt{ID: newReceiptID(), StoredAt: s.now()}
	const q = `INSERT INTO answers (tag, respondent, payload, receipt_id, submitted_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(tag, respondent) DO UPDATE SET
			payload = excluded.payload,
			receipt_id = excluded.receipt_id,
			submitted_at = excluded.submitted_at`
	if _, err := s.db.ExecContext(ctx, q, tag, respondent, string(payload), receipt.ID, receipt.StoredAt); err != nil {
		return nil, fmt.Errorf("save answers: %w", err)
	}
	return receipt, nil
}

func (s *SQLiteStore) LoadAnswers(ctx context.Context, tag, respondent string) (schema.AnswerRecord, error) {
	const q = `SELECT payload FROM answers WHERE tag = ? AND respondent = ?`
	var payload string
	err := s.db.QueryRowContext(ctx, q, tag, respondent).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load answers: %w", err)
	}
	var rec schema.AnswerRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, fmt.Errorf("decode answers: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStore) ListAnswers(ctx context.Context, tag string) ([]StoredAnswers, error) {
	const q = `SELECT respondent, payload, submitted_at FROM answers WHERE tag = ? ORDER BY respondent`
	rows, err := s.db.QueryContext(ctx, q, tag)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()
	var out []StoredAnswers
	for rows.Next() {
		var (
			stored  StoredAnswers
			payload string
		)
		if err := rows.Scan(&stored.Respondent, &payload, &stored.SubmittedAt); err != nil {
			return nil, fmt.Errorf("scan answers row: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &stored.Answers); err != nil {
			return nil, fmt.Errorf("decode answers for %s: %w", stored.Respondent, err)
		}
		out = append(out, stored)
	}
	return out, rows.Err()
}
