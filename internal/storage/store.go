// Package storage persists submitted answer records. The engine treats
// every implementation as fallible: a failed save surfaces to the caller
// and the session stays un-submitted for a retry.
package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/formwalk/formwalk/internal/schema"
)

// ErrNotFound is returned by LoadAnswers when the respondent has no
// stored record under the tag.
var ErrNotFound = errors.New("answers not found")

// Receipt confirms one stored submission.
type Receipt struct {
	ID       string    `json:"id"`
	StoredAt time.Time `json:"stored_at"`
}

// StoredAnswers is the persisted envelope around one respondent's record.
type StoredAnswers struct {
	Respondent  string              `json:"respondent"`
	SubmittedAt time.Time           `json:"submitted_at"`
	Answers     schema.AnswerRecord `json:"answers"`
}

// AnswerStore is the storage collaborator the engine submits through.
// tag groups every submission of one questionnaire version (the
// cross-session join key); respondent identifies one answer set within it.
type AnswerStore interface {
	SaveAnswers(ctx context.Context, tag, respondent string, rec schema.AnswerRecord) (*Receipt, error)
	LoadAnswers(ctx context.Context, tag, respondent string) (schema.AnswerRecord, error)
}

// AnswerLister enumerates all submissions under a tag, for export.
type AnswerLister interface {
	ListAnswers(ctx context.Context, tag string) ([]StoredAnswers, error)
}

func newReceiptID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
