package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/formwalk/formwalk/internal/schema"
)

// MemoryStore keeps answer records in process memory. Used for tests and
// for running without any persistence configured.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]map[string]*StoredAnswers // tag -> respondent -> envelope
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: map[string]map[string]*StoredAnswers{},
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) SaveAnswers(_ context.Context, tag, respondent string, rec schema.AnswerRecord) (*Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.records[tag] == nil {
		s.records[tag] = map[string]*StoredAnswers{}
	}
	stored := &StoredAnswers{Respondent: respondent, SubmittedAt: s.now(), Answers: rec.Clone()}
	s.records[tag][respondent] = stored
	return &Receipt{ID: newReceiptID(), StoredAt: stored.SubmittedAt}, nil
}

func (s *MemoryStore) LoadAnswers(_ context.Context, tag, respondent string) (schema.AnswerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.records[tag][respondent]
	if !ok {
		return nil, ErrNotFound
	}
	return stored.Answers.Clone(), nil
}

func (s *MemoryStore) ListAnswers(_ context.Context, tag string) ([]StoredAnswers, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]StoredAnswers, 0, len(s.records[tag]))
	for _, stored := range s.records[tag] {
		out = append(out, StoredAnswers{
			Respondent:  stored.Respondent,
			SubmittedAt: stored.SubmittedAt,
			Answers:     stored.Answers.Clone(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Respondent < out[j].Respondent })
	return out, nil
}
