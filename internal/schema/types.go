package schema

import "fmt"

// QuestionType enumerates the closed set of supported question variants.
// The planner, codec and validation engine switch exhaustively over this
// set, so adding a variant is a single-point, compiler-checked change.
type QuestionType string

const (
	TypeTextInput   QuestionType = "text_input"
	TypeTextArea    QuestionType = "text_area"
	TypeCompound    QuestionType = "compound"
	TypeRadio       QuestionType = "radio"
	TypeSelect      QuestionType = "select"
	TypeYesNo       QuestionType = "yes_no"
	TypeCheckbox    QuestionType = "checkbox"
	TypeLinearScale QuestionType = "linear_scale"
	TypeRating      QuestionType = "rating"
	TypeNPS         QuestionType = "nps"
	TypeSlider      QuestionType = "slider"
	TypeMatrix      QuestionType = "matrix"
	TypeRanking     QuestionType = "ranking"
	TypeDate        QuestionType = "date"
	TypeTime        QuestionType = "time"
	TypeNumber      QuestionType = "number"
)

var allTypes = map[QuestionType]bool{
	TypeTextInput: true, TypeTextArea: true, TypeCompound: true,
	TypeRadio: true, TypeSelect: true, TypeYesNo: true, TypeCheckbox: true,
	TypeLinearScale: true, TypeRating: true, TypeNPS: true, TypeSlider: true,
	TypeMatrix: true, TypeRanking: true, TypeDate: true, TypeTime: true,
	TypeNumber: true,
}

// Known reports whether t is one of the supported variants.
func (t QuestionType) Known() bool { return allTypes[t] }

// HasOptions reports whether the type carries an options list.
func (t QuestionType) HasOptions() bool {
	switch t {
	case TypeRadio, TypeSelect, TypeCheckbox, TypeRanking:
		return true
	}
	return false
}

// SingleAnswer reports whether recording one value fully answers the
// question. Only these types participate in auto-advance.
func (t QuestionType) SingleAnswer() bool {
	switch t {
	case TypeRadio, TypeYesNo, TypeLinearScale, TypeRating, TypeNPS:
		return true
	}
	return false
}

// AlwaysHasValue reports whether the widget carries a default value and
// therefore never renders "unanswered" on screen.
func (t QuestionType) AlwaysHasValue() bool {
	switch t {
	case TypeLinearScale, TypeRating, TypeNPS, TypeSlider, TypeNumber:
		return true
	}
	return false
}

// SubQuestion is one part of a compound question.
type SubQuestion struct {
	Key   string `yaml:"key" json:"key"`
	Label string `yaml:"label" json:"label"`
}

// MatrixRow is one row of a grid question.
type MatrixRow struct {
	Key   string `yaml:"key" json:"key"`
	Label string `yaml:"label" json:"label"`
}

// QuestionDef is one question definition from the config document.
type QuestionDef struct {
	ID           int           `yaml:"id" json:"id"`
	Title        string        `yaml:"title" json:"title"`
	Subtitle     string        `yaml:"subtitle,omitempty" json:"subtitle,omitempty"`
	Type         QuestionType  `yaml:"type" json:"type"`
	Placeholder  string        `yaml:"placeholder,omitempty" json:"placeholder,omitempty"`
	Options      []string      `yaml:"options,omitempty" json:"options,omitempty"`
	Subquestions []SubQuestion `yaml:"subquestions,omitempty" json:"subquestions,omitempty"`
	Rows         []MatrixRow   `yaml:"rows,omitempty" json:"rows,omitempty"`
	Columns      []string      `yaml:"columns,omitempty" json:"columns,omitempty"`
	Min          *int          `yaml:"min,omitempty" json:"min,omitempty"`
	Max          *int          `yaml:"max,omitempty" json:"max,omitempty"`
	Step         *int          `yaml:"step,omitempty" json:"step,omitempty"`
	Default      *int          `yaml:"default,omitempty" json:"default,omitempty"`
	MinLabel     string        `yaml:"min_label,omitempty" json:"min_label,omitempty"`
	MaxLabel     string        `yaml:"max_label,omitempty" json:"max_label,omitempty"`
	Icon         string        `yaml:"icon,omitempty" json:"icon,omitempty"`
}

// Bounds returns the effective numeric range for the question, filling
// per-type defaults where the document left min/max/step unset.
func (q *QuestionDef) Bounds() (min, max, step int) {
	switch q.Type {
	case TypeLinearScale, TypeRating:
		min, max, step = 1, 5, 1
	case TypeNPS:
		min, max, step = 0, 10, 1
	case TypeSlider:
		min, max, step = 0, 100, 1
	case TypeNumber:
		min, max, step = 0, 100, 1
	}
	if q.Min != nil {
		min = *q.Min
	}
	if q.Max != nil {
		max = *q.Max
	}
	if q.Step != nil && *q.Step > 0 {
		step = *q.Step
	}
	return min, max, step
}

// DefaultValue returns the value the widget starts at.
func (q *QuestionDef) DefaultValue() int {
	if q.Default != nil {
		return *q.Default
	}
	min, _, _ := q.Bounds()
	return min
}

// Display modes.
const (
	ModeWizard     = "wizard"
	ModeSinglePage = "single_page"
)

// Settings is the resolved, immutable questionnaire configuration.
// Values come from the config document with env overrides applied on top;
// engine code only ever reads it.
type Settings struct {
	QuestionnaireID     string `yaml:"questionnaire_id" json:"questionnaire_id"`
	Version             string `yaml:"version" json:"version"`
	Title               string `yaml:"title" json:"title"`
	DisplayMode         string `yaml:"display_mode" json:"display_mode"`
	ShowProgressBar     bool   `yaml:"show_progress_bar" json:"show_progress_bar"`
	AllowBackNavigation bool   `yaml:"allow_back_navigation" json:"allow_back_navigation"`
	ShowQuestionNumbers bool   `yaml:"show_question_numbers" json:"show_question_numbers"`
	RequireAllAnswers   bool   `yaml:"require_all_answers" json:"require_all_answers"`
	RandomizeQuestions  bool   `yaml:"randomize_questions" json:"randomize_questions"`
	RandomizeOptions    bool   `yaml:"randomize_options" json:"randomize_options"`
	AutoAdvance         bool   `yaml:"auto_advance" json:"auto_advance"`
	AutoAdvanceDelayMs  int    `yaml:"auto_advance_delay" json:"auto_advance_delay"`
	ShowBalloons        bool   `yaml:"show_balloons" json:"show_balloons"`
	OIDCIdentity        bool   `yaml:"oidc_identity" json:"oidc_identity"`
	WelcomeMessage      string `yaml:"welcome_message" json:"welcome_message"`
	ThankYouMessage     string `yaml:"thank_you_message" json:"thank_you_message"`
	AnswersTag          string `yaml:"answers_tag" json:"answers_tag"`
	// CountDefaultsAsAnswered controls whether defaulted widgets
	// (slider, rating, nps, linear_scale, number) satisfy
	// require_all_answers without the respondent touching them.
	CountDefaultsAsAnswered bool `yaml:"count_defaults_as_answered" json:"count_defaults_as_answered"`
}

// DefaultSettings returns the fixed defaults every document starts from.
func DefaultSettings() Settings {
	return Settings{
		DisplayMode:             ModeWizard,
		ShowProgressBar:         true,
		AllowBackNavigation:     true,
		ShowQuestionNumbers:     true,
		RequireAllAnswers:       false,
		RandomizeQuestions:      false,
		RandomizeOptions:        false,
		AutoAdvance:             false,
		AutoAdvanceDelayMs:      600,
		ShowBalloons:            true,
		OIDCIdentity:            true,
		CountDefaultsAsAnswered: true,
	}
}

// Tag returns the storage tag joining all answers of this questionnaire
// version. It must stay bit-exact across processes: downstream analysis
// joins on it.
func (s Settings) Tag() string {
	if s.AnswersTag != "" {
		return s.AnswersTag
	}
	return fmt.Sprintf("%s_v%s", s.QuestionnaireID, s.Version)
}

// Config is the loaded questionnaire document. Immutable after load and
// safe to share across sessions.
type Config struct {
	Settings       Settings      `yaml:"settings" json:"settings"`
	IntroQuestions []QuestionDef `yaml:"intro_questions" json:"intro_questions"`
	Questions      []QuestionDef `yaml:"questions" json:"questions"`
}

// AllQuestions returns intro then main questions in document order.
func (c *Config) AllQuestions() []*QuestionDef {
	out := make([]*QuestionDef, 0, len(c.IntroQuestions)+len(c.Questions))
	for i := range c.IntroQuestions {
		out = append(out, &c.IntroQuestions[i])
	}
	for i := range c.Questions {
		out = append(out, &c.Questions[i])
	}
	return out
}

// FindQuestion returns the definition with the given id, or nil.
func (c *Config) FindQuestion(id int) *QuestionDef {
	for _, q := range c.AllQuestions() {
		if q.ID == id {
			return q
		}
	}
	return nil
}

// AnswerRecord is the canonical stored shape: storage key -> value.
// Keys derive from question ids, never from presentation position.
type AnswerRecord map[string]string

// Clone returns an independent copy of the record.
func (r AnswerRecord) Clone() AnswerRecord {
	out := make(AnswerRecord, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
