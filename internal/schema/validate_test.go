package schema

import "testing"

func validConfig() *Config {
	return &Config{
		Settings: Settings{
			QuestionnaireID: "onboarding",
			Version:         "2",
			Title:           "Onboarding Survey",
			DisplayMode:     ModeWizard,
		},
		IntroQuestions: []QuestionDef{
			{ID: 1, Title: "Your name", Type: TypeTextInput},
		},
		Questions: []QuestionDef{
			{ID: 2, Title: "Pick one", Type: TypeRadio, Options: []string{"A", "B"}},
			{ID: 3, Title: "Pick many", Type: TypeCheckbox, Options: []string{"X", "Y", "Z"}},
		},
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidateRequiredSettings(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		code   ConfigCode
		field  string
	}{
		{"missing questionnaire_id", func(c *Config) { c.Settings.QuestionnaireID = "" }, CodeMissingSetting, "questionnaire_id"},
		{"questionnaire_id with dash", func(c *Config) { c.Settings.QuestionnaireID = "ceo-survey" }, CodeInvalidIdentifier, "questionnaire_id"},
		{"missing version", func(c *Config) { c.Settings.Version = "" }, CodeMissingSetting, "version"},
		{"missing title", func(c *Config) { c.Settings.Title = "  " }, CodeMissingSetting, "title"},
		{"bad display mode", func(c *Config) { c.Settings.DisplayMode = "carousel" }, CodeInvalidSetting, "display_mode"},
		{"negative delay", func(c *Config) { c.Settings.AutoAdvanceDelayMs = -1 }, CodeInvalidSetting, "auto_advance_delay"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := Validate(cfg)
			ce, ok := AsConfigError(err)
			if !ok {
				t.Fatalf("Validate() = %v, want *ConfigError", err)
			}
			if ce.Code != tc.code || ce.Field != tc.field {
				t.Fatalf("got code=%s field=%s, want code=%s field=%s", ce.Code, ce.Field, tc.code, tc.field)
			}
		})
	}
}

func TestValidateQuestionShape(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		code   ConfigCode
		id     int
	}{
		{"zero id", func(c *Config) { c.Questions[0].ID = 0 }, CodeInvalidField, 0},
		{"missing title", func(c *Config) { c.Questions[0].Title = "" }, CodeMissingField, 2},
		{"unknown type", func(c *Config) { c.Questions[0].Type = "dropdown" }, CodeInvalidField, 2},
		{"radio without options", func(c *Config) { c.Questions[0].Options = nil }, CodeMissingField, 2},
		{"single option", func(c *Config) { c.Questions[0].Options = []string{"only"} }, CodeInvalidField, 2},
		{"duplicate option", func(c *Config) { c.Questions[0].Options = []string{"A", "A"} }, CodeInvalidField, 2},
		{"checkbox option with comma", func(c *Config) { c.Questions[1].Options = []string{"X", "Y, and Z"} }, CodeInvalidField, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			ce, ok := AsConfigError(Validate(cfg))
			if !ok {
				t.Fatalf("Validate() did not return *ConfigError")
			}
			if ce.Code != tc.code || ce.QuestionID != tc.id {
				t.Fatalf("got code=%s id=%d, want code=%s id=%d", ce.Code, ce.QuestionID, tc.code, tc.id)
			}
		})
	}
}

func TestValidateCompoundSubkeys(t *testing.T) {
	cfg := validConfig()
	cfg.Questions = append(cfg.Questions, QuestionDef{
		ID: 4, Title: "Contact", Type: TypeCompound,
		Subquestions: []SubQuestion{{Key: "a", Label: "First"}, {Key: "a", Label: "Second"}},
	})
	ce, ok := AsConfigError(Validate(cfg))
	if !ok || ce.Code != CodeDuplicateSubkey {
		t.Fatalf("got %v, want duplicate_subkey", ce)
	}

	cfg = validConfig()
	cfg.Questions = append(cfg.Questions, QuestionDef{
		ID: 4, Title: "Contact", Type: TypeCompound,
		Subquestions: []SubQuestion{{Key: "ab", Label: "First"}},
	})
	ce, ok = AsConfigError(Validate(cfg))
	if !ok || ce.Code != CodeInvalidField {
		t.Fatalf("multi-letter sub-key: got %v, want invalid_field", ce)
	}
}

func TestValidateIDSequence(t *testing.T) {
	cfg := validConfig()
	cfg.Questions[1].ID = 2 // collides with Questions[0]
	ce, ok := AsConfigError(Validate(cfg))
	if !ok || ce.Code != CodeDuplicateID {
		t.Fatalf("duplicate id: got %v, want duplicate_id", ce)
	}

	cfg = validConfig()
	cfg.Questions[1].ID = 5 // leaves a gap at 3
	ce, ok = AsConfigError(Validate(cfg))
	if !ok || ce.Code != CodeNonSequentialID {
		t.Fatalf("gap in ids: got %v, want non_sequential_id", ce)
	}
}

func TestValidateMatrix(t *testing.T) {
	cfg := validConfig()
	cfg.Questions = append(cfg.Questions, QuestionDef{
		ID: 4, Title: "Rate areas", Type: TypeMatrix,
		Rows:    []MatrixRow{{Key: "speed", Label: "Speed"}, {Key: "speed", Label: "Again"}},
		Columns: []string{"Low", "High"},
	})
	ce, ok := AsConfigError(Validate(cfg))
	if !ok || ce.Code != CodeDuplicateSubkey {
		t.Fatalf("duplicate row key: got %v, want duplicate_subkey", ce)
	}
}

func TestBoundsDefaults(t *testing.T) {
	cases := []struct {
		typ                QuestionType
		min, max, step int
	}{
		{TypeLinearScale, 1, 5, 1},
		{TypeRating, 1, 5, 1},
		{TypeNPS, 0, 10, 1},
		{TypeSlider, 0, 100, 1},
		{TypeNumber, 0, 100, 1},
	}
	for _, tc := range cases {
		q := QuestionDef{Type: tc.typ}
		min, max, step := q.Bounds()
		if min != tc.min || max != tc.max || step != tc.step {
			t.Fatalf("%s bounds = %d..%d/%d, want %d..%d/%d", tc.typ, min, max, step, tc.min, tc.max, tc.step)
		}
	}
	five, ten := 5, 10
	q := QuestionDef{Type: TypeSlider, Min: &five, Max: &ten}
	if min, max, _ := q.Bounds(); min != 5 || max != 10 {
		t.Fatalf("explicit bounds = %d..%d, want 5..10", min, max)
	}
}

func TestSettingsTag(t *testing.T) {
	s := Settings{QuestionnaireID: "ceo_assessment", Version: "2"}
	if got := s.Tag(); got != "ceo_assessment_v2" {
		t.Fatalf("Tag() = %q, want %q", got, "ceo_assessment_v2")
	}
	s.AnswersTag = "custom_tag"
	if got := s.Tag(); got != "custom_tag" {
		t.Fatalf("Tag() = %q, want %q", got, "custom_tag")
	}
}
