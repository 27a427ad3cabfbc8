// Package config loads the questionnaire document and resolves settings.
//
// Resolution is a two-stage function: file settings are read from the YAML
// document, then environment overrides are layered on top, producing one
// immutable schema.Settings value that is threaded into the engine. Engine
// code never consults the environment itself.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/formwalk/formwalk/internal/schema"
)

// EnvPrefix prefixes every settings override variable, e.g.
// FORMWALK_REQUIRE_ALL_ANSWERS overrides require_all_answers.
const EnvPrefix = "FORMWALK_"

// EnvConfigPath selects the active document explicitly.
const EnvConfigPath = EnvPrefix + "CONFIG"

var (
	// ErrNoDocument means the config dir holds no questionnaire document.
	ErrNoDocument = errors.New("no questionnaire document found")
	// ErrMultipleDocuments means auto-detection was ambiguous.
	ErrMultipleDocuments = errors.New("multiple questionnaire documents found; set " + EnvConfigPath)
)

// LookupFunc resolves an environment variable, os.LookupEnv-shaped.
type LookupFunc func(key string) (string, bool)

// rawDocument defers settings decoding so unrecognized keys can be
// reported as warnings instead of hard failures.
type rawDocument struct {
	Settings       map[string]any       `yaml:"settings"`
	IntroQuestions []schema.QuestionDef `yaml:"intro_questions"`
	Questions      []schema.QuestionDef `yaml:"questions"`
}

// Discover picks the active document: the explicit override variable wins,
// otherwise exactly one *.yaml/*.yml file in dir is required.
func Discover(dir string, lookup LookupFunc) (string, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if path, ok := lookup(EnvConfigPath); ok && strings.TrimSpace(path) != "" {
		return path, nil
	}
	var found []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return "", err
		}
		found = append(found, matches...)
	}
	sort.Strings(found)
	switch len(found) {
	case 0:
		return "", fmt.Errorf("%w in %s", ErrNoDocument, dir)
	case 1:
		return found[0], nil
	default:
		return "", fmt.Errorf("%w: %s", ErrMultipleDocuments, strings.Join(found, ", "))
	}
}

// Load reads, resolves and validates the document at path. The returned
// warnings list unrecognized settings keys (forward-compatible, ignored).
func Load(path string, lookup LookupFunc) (*schema.Config, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data, lookup)
}

// Parse resolves and validates a raw document.
func Parse(data []byte, lookup LookupFunc) (*schema.Config, []string, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	var raw rawDocument
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, nil, &schema.ConfigError{Code: schema.CodeParse, Message: err.Error()}
	}
	settings, warnings, err := Resolve(raw.Settings, lookup)
	if err != nil {
		return nil, warnings, err
	}
	cfg := &schema.Config{
		Settings:       settings,
		IntroQuestions: raw.IntroQuestions,
		Questions:      raw.Questions,
	}
	if err := schema.Validate(cfg); err != nil {
		return nil, warnings, err
	}
	return cfg, warnings, nil
}

// Resolve applies file settings over the defaults, then env overrides over
// the file values. Called once at process start.
func Resolve(file map[string]any, lookup LookupFunc) (schema.Settings, []string, error) {
	s := schema.DefaultSettings()
	var warnings []string

	keys := make([]string, 0, len(file))
	for k := range file {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		known, err := applyFileSetting(&s, key, file[key])
		if err != nil {
			return s, warnings, err
		}
		if !known {
			warnings = append(warnings, fmt.Sprintf("ignoring unrecognized setting %q", key))
		}
	}

	for _, key := range settingKeys {
		raw, ok := lookup(EnvPrefix + strings.ToUpper(key))
		if !ok {
			continue
		}
		if err := applyEnvSetting(&s, key, raw); err != nil {
			return s, warnings, err
		}
	}
	return s, warnings, nil
}

// settingKeys is the recognized settings vocabulary, in override order.
var settingKeys = []string{
	"questionnaire_id", "version", "title", "display_mode",
	"show_progress_bar", "allow_back_navigation", "show_question_numbers",
	"require_all_answers", "randomize_questions", "randomize_options",
	"auto_advance", "auto_advance_delay", "show_balloons", "oidc_identity",
	"welcome_message", "thank_you_message", "answers_tag",
	"count_defaults_as_answered",
}

func applyFileSetting(s *schema.Settings, key string, v any) (bool, error) {
	str, ok := stringField(s, key)
	if ok {
		val, err := coerceString(key, v)
		if err != nil {
			return true, err
		}
		*str = val
		return true, nil
	}
	if b, ok := boolField(s, key); ok {
		val, err := coerceBoolAny(key, v)
		if err != nil {
			return true, err
		}
		*b = val
		return true, nil
	}
	if key == "auto_advance_delay" {
		val, err := coerceIntAny(key, v)
		if err != nil {
			return true, err
		}
		s.AutoAdvanceDelayMs = val
		return true, nil
	}
	return false, nil
}

func applyEnvSetting(s *schema.Settings, key, raw string) error {
	if str, ok := stringField(s, key); ok {
		*str = raw
		return nil
	}
	if b, ok := boolField(s, key); ok {
		*b = CoerceBool(raw)
		return nil
	}
	if key == "auto_advance_delay" {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return &schema.ConfigError{Code: schema.CodeInvalidSetting, Field: key,
				Message: fmt.Sprintf("override %q is not an integer", raw)}
		}
		s.AutoAdvanceDelayMs = n
	}
	return nil
}

func stringField(s *schema.Settings, key string) (*string, bool) {
	switch key {
	case "questionnaire_id":
		return &s.QuestionnaireID, true
	case "version":
		return &s.Version, true
	case "title":
		return &s.Title, true
	case "display_mode":
		return &s.DisplayMode, true
	case "welcome_message":
		return &s.WelcomeMessage, true
	case "thank_you_message":
		return &s.ThankYouMessage, true
	case "answers_tag":
		return &s.AnswersTag, true
	}
	return nil, false
}

func boolField(s *schema.Settings, key string) (*bool, bool) {
	switch key {
	case "show_progress_bar":
		return &s.ShowProgressBar, true
	case "allow_back_navigation":
		return &s.AllowBackNavigation, true
	case "show_question_numbers":
		return &s.ShowQuestionNumbers, true
	case "require_all_answers":
		return &s.RequireAllAnswers, true
	case "randomize_questions":
		return &s.RandomizeQuestions, true
	case "randomize_options":
		return &s.RandomizeOptions, true
	case "auto_advance":
		return &s.AutoAdvance, true
	case "show_balloons":
		return &s.ShowBalloons, true
	case "oidc_identity":
		return &s.OIDCIdentity, true
	case "count_defaults_as_answered":
		return &s.CountDefaultsAsAnswered, true
	}
	return nil, false
}

// CoerceBool implements the override coercion rule: "true", "1" and "yes"
// (case-insensitive) are true, everything else is false.
func CoerceBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

func coerceString(key string, v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case int:
		return strconv.Itoa(t), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	}
	return "", &schema.ConfigError{Code: schema.CodeInvalidSetting, Field: key,
		Message: fmt.Sprintf("expected a string, got %T", v)}
}

func coerceBoolAny(key string, v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		return CoerceBool(t), nil
	}
	return false, &schema.ConfigError{Code: schema.CodeInvalidSetting, Field: key,
		Message: fmt.Sprintf("expected a boolean, got %T", v)}
}

func coerceIntAny(key string, v any) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case float64:
		return int(t), nil
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return n, nil
		}
	}
	return 0, &schema.ConfigError{Code: schema.CodeInvalidSetting, Field: key,
		Message: fmt.Sprintf("expected an integer, got %v", v)}
}
