package engine

import (
	"sort"
	"strings"

	"github.com/formwalk/formwalk/internal/schema"
)

// IsComplete reports whether the record holds a usable answer for the
// question under require_all_answers semantics. countDefaults mirrors the
// count_defaults_as_answered policy: when set, widget types that always
// carry a value (slider, rating, nps, linear_scale, number) count as
// answered even if untouched.
func IsComplete(def *schema.QuestionDef, rec schema.AnswerRecord, countDefaults bool) bool {
	if def.Type.AlwaysHasValue() && countDefaults {
		return true
	}

	switch def.Type {
	case schema.TypeCompound:
		for _, sub := range def.Subquestions {
			if strings.TrimSpace(rec[StorageKey(def.ID, sub.Key)]) == "" {
				return false
			}
		}
		return true

	case schema.TypeMatrix:
		for _, row := range def.Rows {
			if strings.TrimSpace(rec[StorageKey(def.ID, row.Key)]) == "" {
				return false
			}
		}
		return true

	default:
		return strings.TrimSpace(rec[StorageKey(def.ID, "")]) != ""
	}
}

// CanSubmit decides whether the answer set is acceptable. With
// require_all_answers off it always is; otherwise it returns the exact
// ascending list of unanswered required question ids.
func CanSubmit(cfg *schema.Config, rec schema.AnswerRecord) (bool, []int) {
	if !cfg.Settings.RequireAllAnswers {
		return true, nil
	}
	var incomplete []int
	for _, q := range cfg.AllQuestions() {
		if !IsComplete(q, rec, cfg.Settings.CountDefaultsAsAnswered) {
			incomplete = append(incomplete, q.ID)
		}
	}
	sort.Ints(incomplete)
	return len(incomplete) == 0, incomplete
}
