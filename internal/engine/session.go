package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/formwalk/formwalk/internal/schema"
	"github.com/formwalk/formwalk/internal/storage"
)

// State is the session lifecycle state.
type State string

const (
	StateNotStarted State = "not_started"
	StateInProgress State = "in_progress"
	StateSubmitted  State = "submitted"
)

// CapabilityError rejects a transition the settings forbid, e.g. Previous
// with back-navigation disabled. Recoverable; the session is unchanged.
type CapabilityError struct {
	Op     string
	Reason string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s not allowed: %s", e.Op, e.Reason)
}

// ValidationError rejects a transition because required answers are
// missing. Recoverable; surfaced as "please complete these questions".
type ValidationError struct {
	QuestionIDs []int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%d question(s) still need an answer", len(e.QuestionIDs))
}

// AutoAdvanceHint asks the host to schedule a deferred Next. Version pins
// the answer state the hint belongs to: if any transition happens before
// the delay elapses, FireAutoAdvance sees a newer version and no-ops.
type AutoAdvanceHint struct {
	Delay   time.Duration
	Version int
}

// Session tracks one respondent walking through the questionnaire.
// Transitions are synchronous and non-reentrant; callers serialize access
// (single-writer discipline). The config is shared and read-only; the
// session owns its answer map exclusively until submission.
type Session struct {
	id         string
	cfg        *schema.Config
	plan       *Plan
	answers    schema.AnswerRecord
	cursor     int
	state      State
	version    int
	respondent string
	receipt    *storage.Receipt
}

// NewSession derives the presentation plan once from the session seed and
// starts in NotStarted. A fresh session gets a fresh seed (and so a fresh
// shuffle); within the session the plan never changes.
func NewSession(cfg *schema.Config, seed int64, respondent string) *Session {
	if respondent == "" {
		respondent = storage.AnonymousRespondent
	}
	return &Session{
		id:         strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
		cfg:        cfg,
		plan:       BuildPlan(cfg, seed),
		answers:    schema.AnswerRecord{},
		state:      StateNotStarted,
		respondent: respondent,
	}
}

func (s *Session) ID() string             { return s.id }
func (s *Session) Config() *schema.Config { return s.cfg }
func (s *Session) Plan() *Plan            { return s.plan }
func (s *Session) State() State           { return s.state }
func (s *Session) Respondent() string     { return s.respondent }

// Version is the answer-version counter; every transition bumps it.
func (s *Session) Version() int { return s.version }

// Answers returns a copy of the collected record.
func (s *Session) Answers() schema.AnswerRecord { return s.answers.Clone() }

// Cursor returns the current presentation index (wizard mode).
func (s *Session) Cursor() int { return s.cursor }

// Progress returns the 1-based step and total for the progress bar.
func (s *Session) Progress() (step, total int) {
	return s.cursor + 1, s.plan.Len()
}

// Current returns the question under the cursor.
func (s *Session) Current() *PlannedQuestion {
	if s.plan.Len() == 0 {
		return nil
	}
	return &s.plan.Questions[s.cursor]
}

func (s *Session) wizard() bool {
	return s.cfg.Settings.DisplayMode == schema.ModeWizard
}

func (s *Session) lastIndex() int { return s.plan.Len() - 1 }

// Start moves NotStarted to InProgress at the first question. Calling it
// again is a no-op.
func (s *Session) Start() {
	if s.state == StateNotStarted {
		s.state = StateInProgress
		s.cursor = 0
		s.version++
	}
}

// Restore pre-fills answers from a previously stored record, question by
// question through the codec so stale labels are tolerated. Used when a
// returning respondent resumes.
func (s *Session) Restore(rec schema.AnswerRecord) {
	if len(rec) == 0 {
		return
	}
	for i := range s.plan.Questions {
		pq := &s.plan.Questions[i]
		ans, ok := Decode(pq.Def, rec)
		if !ok {
			continue
		}
		// re-encode against the current definition; errors mean the old
		// value no longer fits and is skipped
		_ = Encode(pq.Def, pq.Options, ans, s.answers)
	}
	s.version++
}

// Next advances the cursor. With require_all_answers on, the current
// question must be complete (or be a type that always carries a value).
func (s *Session) Next() error {
	if err := s.requireCursorMode("next"); err != nil {
		return err
	}
	if s.cursor >= s.lastIndex() {
		return &CapabilityError{Op: "next", Reason: "already at the last question"}
	}
	cur := s.Current()
	if s.cfg.Settings.RequireAllAnswers &&
		!IsComplete(cur.Def, s.answers, s.cfg.Settings.CountDefaultsAsAnswered) {
		return &ValidationError{QuestionIDs: []int{cur.Def.ID}}
	}
	s.cursor++
	s.version++
	return nil
}

// Previous moves back one question when back-navigation is enabled.
func (s *Session) Previous() error {
	if err := s.requireCursorMode("previous"); err != nil {
		return err
	}
	if !s.cfg.Settings.AllowBackNavigation {
		return &CapabilityError{Op: "previous", Reason: "back navigation is disabled"}
	}
	if s.cursor == 0 {
		return &CapabilityError{Op: "previous", Reason: "already at the first question"}
	}
	s.cursor--
	s.version++
	return nil
}

// JumpTo moves the cursor to an explicit index, used by auto-advance and
// when resuming a saved session.
func (s *Session) JumpTo(k int) error {
	if err := s.requireCursorMode("jump"); err != nil {
		return err
	}
	if k < 0 || k > s.lastIndex() {
		return &CapabilityError{Op: "jump", Reason: fmt.Sprintf("index %d out of range 0..%d", k, s.lastIndex())}
	}
	s.cursor = k
	s.version++
	return nil
}

func (s *Session) requireCursorMode(op string) error {
	switch s.state {
	case StateNotStarted:
		return &CapabilityError{Op: op, Reason: "session not started"}
	case StateSubmitted:
		return &CapabilityError{Op: op, Reason: "session already submitted"}
	}
	if !s.wizard() {
		return &CapabilityError{Op: op, Reason: "single-page mode has no cursor"}
	}
	return nil
}

// RecordAnswer encodes a UI value for any planned question. A rejected
// value leaves the answer map untouched. The returned hint is non-nil
// when the host should schedule a deferred Next (auto-advance).
func (s *Session) RecordAnswer(questionID int, ans Answer) (*AutoAdvanceHint, error) {
	if s.state == StateSubmitted {
		return nil, &CapabilityError{Op: "answer", Reason: "session already submitted"}
	}
	s.Start()
	pq := s.plan.Find(questionID)
	if pq == nil {
		return nil, codecErr(questionID, "unknown question id")
	}
	if err := Encode(pq.Def, pq.Options, ans, s.answers); err != nil {
		return nil, err
	}
	s.version++

	if s.cfg.Settings.AutoAdvance && s.wizard() &&
		pq.Def.Type.SingleAnswer() &&
		s.Current() != nil && s.Current().Def.ID == questionID &&
		s.cursor < s.lastIndex() {
		return &AutoAdvanceHint{
			Delay:   time.Duration(s.cfg.Settings.AutoAdvanceDelayMs) * time.Millisecond,
			Version: s.version,
		}, nil
	}
	return nil, nil
}

// FireAutoAdvance performs the deferred Next scheduled for the given
// version. A stale version (any transition happened in between) no-ops:
// last write wins and the dropped transition is never queued.
func (s *Session) FireAutoAdvance(version int) bool {
	if s.state != StateInProgress || s.version != version {
		return false
	}
	return s.Next() == nil
}

// Submit validates the answer set and hands it to the storage
// collaborator. The session only becomes Submitted after the write
// succeeds; a storage failure leaves it in its pre-submit state for a
// retry. Submitting an already-submitted session returns the original
// receipt and performs no second write.
func (s *Session) Submit(ctx context.Context, store storage.AnswerStore) (*storage.Receipt, error) {
	if s.state == StateSubmitted {
		return s.receipt, nil
	}
	if s.state == StateNotStarted {
		return nil, &CapabilityError{Op: "submit", Reason: "session not started"}
	}
	if s.wizard() && s.cursor != s.lastIndex() {
		return nil, &CapabilityError{Op: "submit", Reason: "submit is only available from the last question"}
	}
	if ok, incomplete := CanSubmit(s.cfg, s.answers); !ok {
		return nil, &ValidationError{QuestionIDs: incomplete}
	}
	receipt, err := store.SaveAnswers(ctx, s.cfg.Settings.Tag(), s.respondent, s.answers.Clone())
	if err != nil {
		return nil, fmt.Errorf("save answers: %w", err)
	}
	s.state = StateSubmitted
	s.receipt = receipt
	s.version++
	return receipt, nil
}
