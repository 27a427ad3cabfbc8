// Package engine drives a questionnaire session: presentation planning,
// navigation state, answer encoding and submit validation.
package engine

import (
	"math/rand"

	"github.com/formwalk/formwalk/internal/schema"
)

// PlannedQuestion is one slot of the per-session presentation order.
type PlannedQuestion struct {
	Def *schema.QuestionDef
	// Options holds the option labels in presentation order. A copy of the
	// definition's list, independently shuffled when randomize_options is
	// on; nil for types without options.
	Options []string
	Intro   bool
}

// Plan is the ordered question sequence for one session. Built once per
// session from the session seed; consulting it again never reshuffles.
type Plan struct {
	Questions []PlannedQuestion
}

func (p *Plan) Len() int { return len(p.Questions) }

// IndexOf returns the presentation index of a question id, or -1.
func (p *Plan) IndexOf(id int) int {
	for i := range p.Questions {
		if p.Questions[i].Def.ID == id {
			return i
		}
	}
	return -1
}

// Find returns the planned slot for a question id, or nil.
func (p *Plan) Find(id int) *PlannedQuestion {
	if i := p.IndexOf(id); i >= 0 {
		return &p.Questions[i]
	}
	return nil
}

// BuildPlan computes the presentation order for one session seed.
// Intro questions keep document order unconditionally. Main questions are
// shuffled only when randomize_questions is set. Option lists are shuffled
// only when randomize_options is set, each from its own question-derived
// stream, so the two dimensions toggle independently and question order
// never influences option order. Matrix columns are positional and are
// never shuffled.
func BuildPlan(cfg *schema.Config, seed int64) *Plan {
	plan := &Plan{Questions: make([]PlannedQuestion, 0, len(cfg.IntroQuestions)+len(cfg.Questions))}
	for i := range cfg.IntroQuestions {
		q := &cfg.IntroQuestions[i]
		plan.Questions = append(plan.Questions, PlannedQuestion{
			Def:     q,
			Options: planOptions(q, cfg.Settings.RandomizeOptions, seed),
			Intro:   true,
		})
	}

	main := make([]*schema.QuestionDef, len(cfg.Questions))
	for i := range cfg.Questions {
		main[i] = &cfg.Questions[i]
	}
	if cfg.Settings.RandomizeQuestions {
		rng := rand.New(rand.NewSource(seed))
		rng.Shuffle(len(main), func(i, j int) { main[i], main[j] = main[j], main[i] })
	}
	for _, q := range main {
		plan.Questions = append(plan.Questions, PlannedQuestion{
			Def:     q,
			Options: planOptions(q, cfg.Settings.RandomizeOptions, seed),
		})
	}
	return plan
}

func planOptions(q *schema.QuestionDef, randomize bool, seed int64) []string {
	if !q.Type.HasOptions() {
		return nil
	}
	opts := append([]string(nil), q.Options...)
	if randomize {
		rng := rand.New(rand.NewSource(optionSeed(seed, q.ID)))
		rng.Shuffle(len(opts), func(i, j int) { opts[i], opts[j] = opts[j], opts[i] })
	}
	return opts
}

// optionSeed derives an option-shuffle stream per question that depends
// only on the session seed and the stable question id, never on where the
// question landed in the plan.
func optionSeed(seed int64, id int) int64 {
	return seed ^ int64((uint64(id)+1)*0x9e3779b97f4a7c15)
}
