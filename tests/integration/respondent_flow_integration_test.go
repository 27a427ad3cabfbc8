//go:build integration

package integration_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

func baseURL() string {
	if v := os.Getenv("FORMWALK_TEST_BASE_URL"); strings.TrimSpace(v) != "" {
		return strings.TrimRight(v, "/")
	}
	return "http://127.0.0.1:8080"
}

// TestRespondentJourneyIntegration walks a live server end to end: create
// a session, answer every planned question, submit, and confirm the
// receipt. The server must be running with a loaded questionnaire.
func TestRespondentJourneyIntegration(t *testing.T) {
	client := &http.Client{Timeout: 5 * time.Second}
	base := baseURL()

	email := fmt.Sprintf("integration_%d@example.com", time.Now().UnixNano())

	req, err := http.NewRequest(http.MethodPost, base+"/api/sessions", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("X-Auth-Request-Email", email)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session: status = %d, want 201", resp.StatusCode)
	}

	var session struct {
		ID        string `json:"id"`
		Total     int    `json:"total"`
		Questions []struct {
			ID      int      `json:"id"`
			Type    string   `json:"type"`
			Options []string `json:"options"`
			Rows    []struct {
				Key string `json:"key"`
			} `json:"rows"`
			Columns      []string `json:"columns"`
			Subquestions []struct {
				Key string `json:"key"`
			} `json:"subquestions"`
			Min int `json:"min"`
		} `json:"questions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		t.Fatal(err)
	}
	if session.ID == "" || len(session.Questions) == 0 {
		t.Fatalf("session = %+v", session)
	}
	sessionURL := base + "/api/sessions/" + session.ID

	post := func(path string, body any) (*http.Response, error) {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		return client.Post(sessionURL+path, "application/json", bytes.NewReader(b))
	}

	for i, q := range session.Questions {
		answer := map[string]any{}
		switch q.Type {
		case "radio", "select", "ranking":
			if q.Type == "ranking" {
				answer["list"] = q.Options
			} else {
				answer["text"] = q.Options[0]
			}
		case "checkbox":
			answer["list"] = q.Options[:1]
		case "yes_no":
			answer["text"] = "Yes"
		case "linear_scale", "rating", "nps", "slider", "number":
			answer["text"] = fmt.Sprint(q.Min)
		case "date":
			answer["text"] = "2026-01-15"
		case "time":
			answer["text"] = "09:30"
		case "compound":
			parts := map[string]string{}
			for _, sub := range q.Subquestions {
				parts[sub.Key] = "integration"
			}
			answer["parts"] = parts
		case "matrix":
			parts := map[string]string{}
			for _, row := range q.Rows {
				parts[row.Key] = q.Columns[0]
			}
			answer["parts"] = parts
		default:
			answer["text"] = "integration"
		}

		r, err := post("/answers", map[string]any{"question_id": q.ID, "answer": answer})
		if err != nil {
			t.Fatalf("answer question %d: %v", q.ID, err)
		}
		r.Body.Close()
		if r.StatusCode != http.StatusOK {
			t.Fatalf("answer question %d: status = %d", q.ID, r.StatusCode)
		}

		if i < len(session.Questions)-1 {
			r, err := post("/next", nil)
			if err != nil {
				t.Fatalf("next after question %d: %v", q.ID, err)
			}
			r.Body.Close()
			// 409 means auto-advance already moved the cursor
			if r.StatusCode != http.StatusOK && r.StatusCode != http.StatusConflict {
				t.Fatalf("next after question %d: status = %d", q.ID, r.StatusCode)
			}
		}
	}

	r, err := post("/submit", nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	defer r.Body.Close()
	if r.StatusCode != http.StatusOK {
		t.Fatalf("submit: status = %d, want 200", r.StatusCode)
	}
	var submitted struct {
		Session struct {
			State   string `json:"state"`
			Receipt *struct {
				ID string `json:"id"`
			} `json:"receipt"`
		} `json:"session"`
	}
	if err := json.NewDecoder(r.Body).Decode(&submitted); err != nil {
		t.Fatal(err)
	}
	if submitted.Session.State != "submitted" || submitted.Session.Receipt == nil {
		t.Fatalf("submitted = %+v", submitted.Session)
	}

	// submitting again returns the same receipt, not an error
	r2, err := post("/submit", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer r2.Body.Close()
	if r2.StatusCode != http.StatusOK {
		t.Fatalf("repeat submit: status = %d, want 200", r2.StatusCode)
	}
}
