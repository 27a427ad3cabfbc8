// Package services holds workflows layered on top of the engine, kept
// free of HTTP concerns.
package services

import (
	"bytes"
	"encoding/csv"
	"sort"
	"time"

	"github.com/formwalk/formwalk/internal/engine"
	"github.com/formwalk/formwalk/internal/schema"
	"github.com/formwalk/formwalk/internal/storage"
)

// answerKeys returns the storage keys of one question in definition
// order, matching the codec's key derivation.
func answerKeys(q *schema.QuestionDef) []string {
	switch q.Type {
	case schema.TypeCompound:
		keys := make([]string, 0, len(q.Subquestions))
		for _, sub := range q.Subquestions {
			keys = append(keys, engine.StorageKey(q.ID, sub.Key))
		}
		return keys
	case schema.TypeMatrix:
		keys := make([]string, 0, len(q.Rows))
		for _, row := range q.Rows {
			keys = append(keys, engine.StorageKey(q.ID, row.Key))
		}
		return keys
	default:
		return []string{engine.StorageKey(q.ID, "")}
	}
}

// ExportWideCSV renders one row per respondent with a column per storage
// key, ordered by question definition so the sheet reads like the
// questionnaire regardless of any per-session shuffle.
func ExportWideCSV(cfg *schema.Config, stored []storage.StoredAnswers) ([]byte, error) {
	var keys []string
	for _, q := range cfg.AllQuestions() {
		keys = append(keys, answerKeys(q)...)
	}

	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	header := append([]string{"respondent", "submitted_at"}, keys...)
	_ = w.Write(header)
	for _, s := range stored {
		row := make([]string, 0, len(header))
		row = append(row, s.Respondent, s.SubmittedAt.Format(time.RFC3339))
		for _, key := range keys {
			row = append(row, s.Answers[key])
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// ExportLongCSV renders one row per stored key/value pair.
func ExportLongCSV(stored []storage.StoredAnswers) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	_ = w.Write([]string{"respondent", "key", "value", "submitted_at"})
	for _, s := range stored {
		keys := make([]string, 0, len(s.Answers))
		for k := range s.Answers {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		at := s.SubmittedAt.Format(time.RFC3339)
		for _, k := range keys {
			if err := w.Write([]string{s.Respondent, k, s.Answers[k], at}); err != nil {
				return nil, err
			}
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
