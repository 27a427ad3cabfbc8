package schema

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ConfigCode classifies configuration failures.
type ConfigCode string

const (
	CodeParse             ConfigCode = "parse_error"
	CodeMissingSetting    ConfigCode = "missing_setting"
	CodeInvalidSetting    ConfigCode = "invalid_setting"
	CodeInvalidIdentifier ConfigCode = "invalid_identifier"
	CodeMissingField      ConfigCode = "missing_field"
	CodeInvalidField      ConfigCode = "invalid_field"
	CodeDuplicateID       ConfigCode = "duplicate_id"
	CodeNonSequentialID   ConfigCode = "non_sequential_id"
	CodeDuplicateSubkey   ConfigCode = "duplicate_subkey"
)

// ConfigError points at the exact question or settings key that failed.
// Configuration errors are fatal at load; a broken document is never
// partially applied.
type ConfigError struct {
	Code       ConfigCode
	QuestionID int    // 0 when the failure is not question-scoped
	Field      string // offending field or settings key
	Message    string
}

func (e *ConfigError) Error() string {
	if e.QuestionID > 0 {
		return fmt.Sprintf("config: question %d: %s", e.QuestionID, e.Message)
	}
	if e.Field != "" {
		return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
	}
	return "config: " + e.Message
}

// AsConfigError unwraps err into a *ConfigError when possible.
func AsConfigError(err error) (*ConfigError, bool) {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

func settingErr(code ConfigCode, key, msg string) error {
	return &ConfigError{Code: code, Field: key, Message: msg}
}

func questionErr(code ConfigCode, id int, field, msg string) error {
	return &ConfigError{Code: code, QuestionID: id, Field: field, Message: msg}
}

var identifierRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Validate checks structural correctness of the whole document.
// Order: required settings, per-question shape, id sequence, sub-keys.
func Validate(c *Config) error {
	if err := validateSettings(c.Settings); err != nil {
		return err
	}
	for _, q := range c.AllQuestions() {
		if err := validateQuestion(q); err != nil {
			return err
		}
	}
	return validateIDs(c)
}

func validateSettings(s Settings) error {
	if strings.TrimSpace(s.QuestionnaireID) == "" {
		return settingErr(CodeMissingSetting, "questionnaire_id", "required setting is empty")
	}
	if !identifierRe.MatchString(s.QuestionnaireID) {
		return settingErr(CodeInvalidIdentifier, "questionnaire_id",
			fmt.Sprintf("%q must contain only letters, digits and underscores", s.QuestionnaireID))
	}
	if strings.TrimSpace(s.Version) == "" {
		return settingErr(CodeMissingSetting, "version", "required setting is empty")
	}
	if strings.TrimSpace(s.Title) == "" {
		return settingErr(CodeMissingSetting, "title", "required setting is empty")
	}
	if s.DisplayMode != ModeWizard && s.DisplayMode != ModeSinglePage {
		return settingErr(CodeInvalidSetting, "display_mode",
			fmt.Sprintf("%q is not one of %q, %q", s.DisplayMode, ModeWizard, ModeSinglePage))
	}
	if s.AutoAdvanceDelayMs < 0 {
		return settingErr(CodeInvalidSetting, "auto_advance_delay", "must be non-negative")
	}
	return nil
}

var subKeyRe = regexp.MustCompile(`^[a-z]$`)

func validateQuestion(q *QuestionDef) error {
	if q.ID <= 0 {
		return questionErr(CodeInvalidField, q.ID, "id", "id must be a positive integer")
	}
	if strings.TrimSpace(q.Title) == "" {
		return questionErr(CodeMissingField, q.ID, "title", "missing field title")
	}
	if !q.Type.Known() {
		return questionErr(CodeInvalidField, q.ID, "type", fmt.Sprintf("unknown question type %q", q.Type))
	}

	if q.Type.HasOptions() {
		if len(q.Options) == 0 {
			return questionErr(CodeMissingField, q.ID, "options", "missing field options")
		}
		if len(q.Options) < 2 {
			return questionErr(CodeInvalidField, q.ID, "options", "at least 2 options required")
		}
		seen := map[string]bool{}
		for _, opt := range q.Options {
			if strings.TrimSpace(opt) == "" {
				return questionErr(CodeInvalidField, q.ID, "options", "empty option label")
			}
			if seen[opt] {
				return questionErr(CodeInvalidField, q.ID, "options", fmt.Sprintf("duplicate option %q", opt))
			}
			seen[opt] = true
			// Checkbox answers are stored comma-joined; a comma inside a
			// label would make the stored value ambiguous, so the document
			// is rejected rather than escaped.
			if q.Type == TypeCheckbox && strings.Contains(opt, ",") {
				return questionErr(CodeInvalidField, q.ID, "options",
					fmt.Sprintf("checkbox option %q must not contain a comma", opt))
			}
		}
	}

	switch q.Type {
	case TypeCompound:
		if len(q.Subquestions) == 0 {
			return questionErr(CodeMissingField, q.ID, "subquestions", "missing field subquestions")
		}
		seen := map[string]bool{}
		for _, sub := range q.Subquestions {
			if !subKeyRe.MatchString(sub.Key) {
				return questionErr(CodeInvalidField, q.ID, "subquestions",
					fmt.Sprintf("sub-key %q must be a single lowercase letter", sub.Key))
			}
			if strings.TrimSpace(sub.Label) == "" {
				return questionErr(CodeInvalidField, q.ID, "subquestions", "empty sub-question label")
			}
			if seen[sub.Key] {
				return questionErr(CodeDuplicateSubkey, q.ID, "subquestions",
					fmt.Sprintf("duplicate sub-key %q", sub.Key))
			}
			seen[sub.Key] = true
		}
	case TypeMatrix:
		if len(q.Rows) == 0 {
			return questionErr(CodeMissingField, q.ID, "rows", "missing field rows")
		}
		if len(q.Columns) == 0 {
			return questionErr(CodeMissingField, q.ID, "columns", "missing field columns")
		}
		seen := map[string]bool{}
		for _, row := range q.Rows {
			if strings.TrimSpace(row.Key) == "" {
				return questionErr(CodeInvalidField, q.ID, "rows", "empty row key")
			}
			if seen[row.Key] {
				return questionErr(CodeDuplicateSubkey, q.ID, "rows",
					fmt.Sprintf("duplicate row key %q", row.Key))
			}
			seen[row.Key] = true
		}
	}

	if min, max, _ := q.Bounds(); q.Type.AlwaysHasValue() && min >= max {
		return questionErr(CodeInvalidField, q.ID, "min", "min must be below max")
	}
	return nil
}

// validateIDs checks global uniqueness and the no-gaps-from-1 rule across
// intro and main questions combined. Broken sequences are reported, never
// silently renumbered.
func validateIDs(c *Config) error {
	all := c.AllQuestions()
	seen := map[int]bool{}
	for _, q := range all {
		if seen[q.ID] {
			return questionErr(CodeDuplicateID, q.ID, "id", fmt.Sprintf("duplicate id %d", q.ID))
		}
		seen[q.ID] = true
	}
	for want := 1; want <= len(all); want++ {
		if !seen[want] {
			return &ConfigError{Code: CodeNonSequentialID, Field: "id",
				Message: fmt.Sprintf("ids must run 1..%d without gaps; %d is missing", len(all), want)}
		}
	}
	return nil
}
