package engine

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/formwalk/formwalk/internal/schema"
)

// Answer is the UI-shaped value for one question. Exactly one field is
// meaningful per question type: Text for scalar types, Parts for compound
// sub-answers and matrix rows, List for checkbox selections and ranking
// order.
type Answer struct {
	Text  string            `json:"text,omitempty"`
	Parts map[string]string `json:"parts,omitempty"`
	List  []string          `json:"list,omitempty"`
}

// StorageKey derives the stable storage key for a question id and an
// optional sub-key (compound part or matrix row). Keys never depend on
// presentation position.
func StorageKey(id int, sub string) string {
	if sub != "" {
		return fmt.Sprintf("q%d_%s", id, sub)
	}
	return fmt.Sprintf("q%d", id)
}

// CodecError reports an answer value the codec refuses to encode. The
// target record is left untouched.
type CodecError struct {
	QuestionID int
	Message    string
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("answer for question %d: %s", e.QuestionID, e.Message)
}

func codecErr(id int, format string, args ...any) error {
	return &CodecError{QuestionID: id, Message: fmt.Sprintf(format, args...)}
}

// Encode maps a UI value into record fragments under the question's
// storage keys. presented is the session's presentation-order option list
// (checkbox values are stored in that order); nil falls back to document
// order. The record is only written after the whole value validates, so a
// rejected answer never corrupts it.
func Encode(def *schema.QuestionDef, presented []string, ans Answer, rec schema.AnswerRecord) error {
	fragment := map[string]string{}

	switch def.Type {
	case schema.TypeTextInput, schema.TypeTextArea, schema.TypeDate, schema.TypeTime:
		fragment[StorageKey(def.ID, "")] = ans.Text

	case schema.TypeYesNo:
		fragment[StorageKey(def.ID, "")] = ans.Text

	case schema.TypeRadio, schema.TypeSelect:
		if ans.Text != "" && !contains(def.Options, ans.Text) {
			return codecErr(def.ID, "%q is not one of the configured options", ans.Text)
		}
		fragment[StorageKey(def.ID, "")] = ans.Text

	case schema.TypeLinearScale, schema.TypeRating, schema.TypeNPS,
		schema.TypeSlider, schema.TypeNumber:
		if ans.Text != "" {
			n, err := strconv.Atoi(strings.TrimSpace(ans.Text))
			if err != nil {
				return codecErr(def.ID, "%q is not a number", ans.Text)
			}
			min, max, _ := def.Bounds()
			if n < min || n > max {
				return codecErr(def.ID, "%d is outside the range %d..%d", n, min, max)
			}
			fragment[StorageKey(def.ID, "")] = strconv.Itoa(n)
		} else {
			fragment[StorageKey(def.ID, "")] = ""
		}

	case schema.TypeCompound:
		for _, sub := range def.Subquestions {
			if v, ok := ans.Parts[sub.Key]; ok {
				fragment[StorageKey(def.ID, sub.Key)] = v
			}
		}

	case schema.TypeMatrix:
		for _, row := range def.Rows {
			v, ok := ans.Parts[row.Key]
			if !ok {
				continue
			}
			if v != "" && !contains(def.Columns, v) {
				return codecErr(def.ID, "row %q: %q is not a configured column", row.Key, v)
			}
			fragment[StorageKey(def.ID, row.Key)] = v
		}

	case schema.TypeCheckbox:
		for _, sel := range ans.List {
			if !contains(def.Options, sel) {
				return codecErr(def.ID, "%q is not one of the configured options", sel)
			}
		}
		// Stored order follows presentation order at answer time, not the
		// order the respondent clicked in. Commas inside labels are ruled
		// out at config load, so the join is unambiguous.
		order := presented
		if order == nil {
			order = def.Options
		}
		selected := make([]string, 0, len(ans.List))
		for _, opt := range order {
			if contains(ans.List, opt) {
				selected = append(selected, opt)
			}
		}
		fragment[StorageKey(def.ID, "")] = strings.Join(selected, ",")

	case schema.TypeRanking:
		if len(ans.List) != len(def.Options) {
			return codecErr(def.ID, "ranking must order all %d options, got %d", len(def.Options), len(ans.List))
		}
		for _, label := range ans.List {
			if !contains(def.Options, label) {
				return codecErr(def.ID, "%q is not one of the configured options", label)
			}
		}
		b, err := json.Marshal(ans.List)
		if err != nil {
			return codecErr(def.ID, "encode ranking: %v", err)
		}
		fragment[StorageKey(def.ID, "")] = string(b)

	default:
		return codecErr(def.ID, "unsupported question type %q", def.Type)
	}

	for k, v := range fragment {
		rec[k] = v
	}
	return nil
}

// Decode reconstructs the UI value from a stored record, used to pre-fill
// on back-navigation or resume. Matching is by label text, never by
// position, so answers recorded under a different option shuffle (or
// before a config reorder) survive. It reports false when the record holds
// nothing for the question.
func Decode(def *schema.QuestionDef, rec schema.AnswerRecord) (Answer, bool) {
	switch def.Type {
	case schema.TypeCompound:
		parts := map[string]string{}
		for _, sub := range def.Subquestions {
			if v, ok := rec[StorageKey(def.ID, sub.Key)]; ok {
				parts[sub.Key] = v
			}
		}
		return Answer{Parts: parts}, len(parts) > 0

	case schema.TypeMatrix:
		parts := map[string]string{}
		for _, row := range def.Rows {
			v, ok := rec[StorageKey(def.ID, row.Key)]
			if !ok {
				continue
			}
			if v == "" || contains(def.Columns, v) {
				parts[row.Key] = v
			}
		}
		return Answer{Parts: parts}, len(parts) > 0

	case schema.TypeCheckbox:
		raw, ok := rec[StorageKey(def.ID, "")]
		if !ok {
			return Answer{}, false
		}
		var list []string
		if raw != "" {
			for _, label := range strings.Split(raw, ",") {
				if contains(def.Options, label) {
					list = append(list, label)
				}
			}
		}
		return Answer{List: list}, true

	case schema.TypeRanking:
		raw, ok := rec[StorageKey(def.ID, "")]
		if !ok {
			return Answer{}, false
		}
		var stored []string
		if err := json.Unmarshal([]byte(raw), &stored); err != nil {
			return Answer{}, false
		}
		list := make([]string, 0, len(stored))
		for _, label := range stored {
			if contains(def.Options, label) {
				list = append(list, label)
			}
		}
		return Answer{List: list}, true

	default:
		v, ok := rec[StorageKey(def.ID, "")]
		if !ok {
			return Answer{}, false
		}
		if def.Type.HasOptions() && v != "" && !contains(def.Options, v) {
			// label vanished in a config edit; nothing to pre-fill
			return Answer{}, false
		}
		return Answer{Text: v}, true
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
