package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"golang.org/x/crypto/bcrypt"

	"github.com/formwalk/formwalk/internal/engine"
	"github.com/formwalk/formwalk/internal/identity"
	"github.com/formwalk/formwalk/internal/middleware"
	"github.com/formwalk/formwalk/internal/schema"
	"github.com/formwalk/formwalk/internal/services"
	"github.com/formwalk/formwalk/internal/storage"
)

var errSessionNotFound = errors.New("session not found")

// Router serves the respondent-facing session API and the operator
// export endpoints.
type Router struct {
	cfg       *schema.Config
	store     storage.AnswerStore
	sessions  *SessionManager
	resolver  *identity.Resolver
	adminUser string
	adminHash string // bcrypt hash of the operator password
}

func NewRouter(cfg *schema.Config, store storage.AnswerStore, resolver *identity.Resolver, adminUser, adminHash string) *Router {
	return &Router{
		cfg:       cfg,
		store:     store,
		sessions:  NewSessionManager(),
		resolver:  resolver,
		adminUser: adminUser,
		adminHash: adminHash,
	}
}

// Handler assembles the chi route tree.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", identity.DefaultHeader},
	}))
	r.Use(middleware.WithAuth)

	r.Get("/api/questionnaire", rt.handleQuestionnaire)
	r.Post("/api/sessions", rt.handleCreateSession)
	r.Route("/api/sessions/{id}", func(r chi.Router) {
		r.Get("/", rt.handleGetSession)
		r.Post("/answers", rt.handleRecordAnswer)
		r.Post("/next", rt.transitionHandler(func(s *engine.Session) error { return s.Next() }))
		r.Post("/previous", rt.transitionHandler(func(s *engine.Session) error { return s.Previous() }))
		r.Post("/jump", rt.handleJump)
		r.Post("/submit", rt.handleSubmit)
	})

	r.Post("/api/auth/login", rt.handleLogin)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdmin)
		r.Get("/api/answers/export", rt.handleExport)
		r.Get("/api/debug/settings", rt.handleDebugSettings)
	})
	return r
}

// question/session views sent to the UI layer

type questionView struct {
	ID           int                  `json:"id"`
	Title        string               `json:"title"`
	Subtitle     string               `json:"subtitle,omitempty"`
	Type         schema.QuestionType  `json:"type"`
	Placeholder  string               `json:"placeholder,omitempty"`
	Options      []string             `json:"options,omitempty"`
	Subquestions []schema.SubQuestion `json:"subquestions,omitempty"`
	Rows         []schema.MatrixRow   `json:"rows,omitempty"`
	Columns      []string             `json:"columns,omitempty"`
	Min          int                  `json:"min,omitempty"`
	Max          int                  `json:"max,omitempty"`
	Step         int                  `json:"step,omitempty"`
	MinLabel     string               `json:"min_label,omitempty"`
	MaxLabel     string               `json:"max_label,omitempty"`
	Icon         string               `json:"icon,omitempty"`
	Intro        bool                 `json:"intro,omitempty"`
}

func viewOf(pq *engine.PlannedQuestion) questionView {
	q := pq.Def
	min, max, step := q.Bounds()
	return questionView{
		ID:           q.ID,
		Title:        q.Title,
		Subtitle:     q.Subtitle,
		Type:         q.Type,
		Placeholder:  q.Placeholder,
		Options:      pq.Options,
		Subquestions: q.Subquestions,
		Rows:         q.Rows,
		Columns:      q.Columns,
		Min:          min,
		Max:          max,
		Step:         step,
		MinLabel:     q.MinLabel,
		MaxLabel:     q.MaxLabel,
		Icon:         q.Icon,
		Intro:        pq.Intro,
	}
}

type sessionView struct {
	ID        string              `json:"id"`
	State     engine.State        `json:"state"`
	Cursor    int                 `json:"cursor"`
	Step      int                 `json:"step"`
	Total     int                 `json:"total"`
	Answers   schema.AnswerRecord `json:"answers"`
	Questions []questionView      `json:"questions,omitempty"`
	Resumed   bool                `json:"resumed,omitempty"`
	Receipt   *storage.Receipt    `json:"receipt,omitempty"`
}

func (rt *Router) sessionView(s *engine.Session, includePlan, resumed bool) sessionView {
	step, total := s.Progress()
	v := sessionView{
		ID:      s.ID(),
		State:   s.State(),
		Cursor:  s.Cursor(),
		Step:    step,
		Total:   total,
		Answers: s.Answers(),
		Resumed: resumed,
	}
	if includePlan {
		plan := s.Plan()
		v.Questions = make([]questionView, 0, plan.Len())
		for i := range plan.Questions {
			v.Questions = append(v.Questions, viewOf(&plan.Questions[i]))
		}
	}
	return v
}

// GET /api/questionnaire serves public metadata without creating a session.
func (rt *Router) handleQuestionnaire(w http.ResponseWriter, r *http.Request) {
	s := rt.cfg.Settings
	writeJSON(w, http.StatusOK, map[string]any{
		"questionnaire_id":      s.QuestionnaireID,
		"version":               s.Version,
		"title":                 s.Title,
		"display_mode":          s.DisplayMode,
		"show_progress_bar":     s.ShowProgressBar,
		"allow_back_navigation": s.AllowBackNavigation,
		"show_question_numbers": s.ShowQuestionNumbers,
		"show_balloons":         s.ShowBalloons,
		"welcome_message":       s.WelcomeMessage,
		"question_count":        len(rt.cfg.IntroQuestions) + len(rt.cfg.Questions),
	})
}

// POST /api/sessions resolves identity, creates the session, pre-fills
// any previously stored answers for a returning respondent.
func (rt *Router) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id := rt.resolver.FromRequest(r)
	respondent := storage.AnonymousRespondent
	if id.Trusted && id.Email != "" {
		respondent = storage.RespondentTag(id.Email)
	}

	var prior schema.AnswerRecord
	resumed := false
	if respondent != storage.AnonymousRespondent {
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()
		rec, err := rt.store.LoadAnswers(ctx, rt.cfg.Settings.Tag(), respondent)
		if err == nil {
			prior = rec
			resumed = true
		} else if !errors.Is(err, storage.ErrNotFound) {
			// a flaky store must not block starting a fresh session, but
			// it must not fail silently either
			log.Printf("load prior answers for %s: %v", respondent, err)
		}
	}

	s := rt.sessions.Create(rt.cfg, respondent, prior)
	writeJSON(w, http.StatusCreated, rt.sessionView(s, true, resumed))
}

// GET /api/sessions/{id}
func (rt *Router) handleGetSession(w http.ResponseWriter, r *http.Request) {
	var view sessionView
	err := rt.sessions.View(chi.URLParam(r, "id"), func(s *engine.Session) error {
		view = rt.sessionView(s, true, false)
		return nil
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// POST /api/sessions/{id}/answers
func (rt *Router) handleRecordAnswer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		QuestionID int           `json:"question_id"`
		Answer     engine.Answer `json:"answer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sessionID := chi.URLParam(r, "id")
	scheduled, err := rt.sessions.RecordAnswer(sessionID, req.QuestionID, req.Answer)
	if err != nil {
		writeErr(w, err)
		return
	}
	// building the response view must not cancel the advance that was
	// just scheduled
	var view sessionView
	if err := rt.sessions.View(sessionID, func(s *engine.Session) error {
		view = rt.sessionView(s, false, false)
		return nil
	}); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": view, "auto_advance_scheduled": scheduled})
}

func (rt *Router) transitionHandler(fn func(*engine.Session) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var view sessionView
		err := rt.sessions.Do(chi.URLParam(r, "id"), func(s *engine.Session) error {
			if err := fn(s); err != nil {
				return err
			}
			view = rt.sessionView(s, false, false)
			return nil
		})
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

// POST /api/sessions/{id}/jump
func (rt *Router) handleJump(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index int `json:"index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rt.transitionHandler(func(s *engine.Session) error { return s.JumpTo(req.Index) })(w, r)
}

// POST /api/sessions/{id}/submit
func (rt *Router) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var view sessionView
	var receipt *storage.Receipt
	err := rt.sessions.Do(chi.URLParam(r, "id"), func(s *engine.Session) error {
		ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
		defer cancel()
		rec, err := s.Submit(ctx, rt.store)
		if err != nil {
			return err
		}
		receipt = rec
		view = rt.sessionView(s, false, false)
		return nil
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	view.Receipt = receipt
	writeJSON(w, http.StatusOK, map[string]any{
		"session":           view,
		"thank_you_message": rt.cfg.Settings.ThankYouMessage,
		"show_balloons":     rt.cfg.Settings.ShowBalloons,
	})
}

// POST /api/auth/login is the operator login for the export endpoints.
func (rt *Router) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if rt.adminHash == "" || req.Username != rt.adminUser ||
		bcrypt.CompareHashAndPassword([]byte(rt.adminHash), []byte(req.Password)) != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	token, err := middleware.SignToken(req.Username, "admin", 12*time.Hour)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// GET /api/answers/export?format=wide|long
func (rt *Router) handleExport(w http.ResponseWriter, r *http.Request) {
	lister, ok := rt.store.(storage.AnswerLister)
	if !ok {
		http.Error(w, "configured store cannot list answers", http.StatusNotImplemented)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	stored, err := lister.ListAnswers(ctx, rt.cfg.Settings.Tag())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "wide"
	}
	var b []byte
	switch format {
	case "wide":
		b, err = services.ExportWideCSV(rt.cfg, stored)
	case "long":
		b, err = services.ExportLongCSV(stored)
	default:
		http.Error(w, "unsupported format", http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename="+format+".csv")
	_, _ = w.Write(b)
}

// GET /api/debug/settings dumps the resolved settings for troubleshooting.
func (rt *Router) handleDebugSettings(w http.ResponseWriter, r *http.Request) {
	subject, _ := middleware.SubjectFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"operator": subject,
		"settings": rt.cfg.Settings,
		"tag":      rt.cfg.Settings.Tag(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr maps engine error kinds onto HTTP statuses: validation
// rejections carry the incomplete ids, capability rejections explain the
// disabled transition, storage failures surface as bad gateway.
func writeErr(w http.ResponseWriter, err error) {
	var (
		ve *engine.ValidationError
		ce *engine.CapabilityError
		ke *engine.CodecError
	)
	switch {
	case errors.Is(err, errSessionNotFound):
		http.Error(w, "session not found", http.StatusNotFound)
	case errors.As(err, &ve):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":          "incomplete answers",
			"incomplete_ids": ve.QuestionIDs,
		})
	case errors.As(err, &ce):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error": strings.TrimSpace(ce.Error()),
		})
	case errors.As(err, &ke):
		http.Error(w, ke.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusBadGateway)
	}
}
