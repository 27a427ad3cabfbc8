package services

import (
	"encoding/csv"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/formwalk/formwalk/internal/schema"
	"github.com/formwalk/formwalk/internal/storage"
)

func exportConfig() *schema.Config {
	return &schema.Config{
		Settings: schema.Settings{QuestionnaireID: "export", Version: "1", Title: "Export", DisplayMode: schema.ModeWizard},
		IntroQuestions: []schema.QuestionDef{
			{ID: 1, Title: "Name", Type: schema.TypeTextInput},
		},
		Questions: []schema.QuestionDef{
			{ID: 2, Title: "Contact", Type: schema.TypeCompound,
				Subquestions: []schema.SubQuestion{{Key: "a", Label: "First"}, {Key: "b", Label: "Last"}}},
			{ID: 3, Title: "Grid", Type: schema.TypeMatrix,
				Rows:    []schema.MatrixRow{{Key: "speed", Label: "Speed"}},
				Columns: []string{"Low", "High"}},
			{ID: 4, Title: "Pick", Type: schema.TypeRadio, Options: []string{"A", "B"}},
		},
	}
}

func storedFixture() []storage.StoredAnswers {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return []storage.StoredAnswers{
		{
			Respondent:  "ana_x.com",
			SubmittedAt: at,
			Answers: schema.AnswerRecord{
				"q1": "Ana", "q2_a": "Ana", "q2_b": "B", "q3_speed": "High", "q4": "A",
			},
		},
		{
			Respondent:  "zoe_x.com",
			SubmittedAt: at,
			Answers:     schema.AnswerRecord{"q1": "Zoe", "q4": "B"},
		},
	}
}

func parseCSV(t *testing.T, b []byte) [][]string {
	t.Helper()
	rows, err := csv.NewReader(strings.NewReader(string(b))).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	return rows
}

func TestExportWideCSV(t *testing.T) {
	b, err := ExportWideCSV(exportConfig(), storedFixture())
	if err != nil {
		t.Fatalf("ExportWideCSV() = %v", err)
	}
	rows := parseCSV(t, b)
	wantHeader := []string{"respondent", "submitted_at", "q1", "q2_a", "q2_b", "q3_speed", "q4"}
	if !reflect.DeepEqual(rows[0], wantHeader) {
		t.Fatalf("header = %v, want %v", rows[0], wantHeader)
	}
	if len(rows) != 3 {
		t.Fatalf("%d rows, want 3", len(rows))
	}
	if rows[1][0] != "ana_x.com" || rows[1][6] != "A" {
		t.Fatalf("row 1 = %v", rows[1])
	}
	// missing answers come out as empty cells, not shifted columns
	if rows[2][3] != "" || rows[2][6] != "B" {
		t.Fatalf("row 2 = %v", rows[2])
	}
}

func TestExportLongCSV(t *testing.T) {
	b, err := ExportLongCSV(storedFixture())
	if err != nil {
		t.Fatalf("ExportLongCSV() = %v", err)
	}
	rows := parseCSV(t, b)
	if !reflect.DeepEqual(rows[0], []string{"respondent", "key", "value", "submitted_at"}) {
		t.Fatalf("header = %v", rows[0])
	}
	// 5 pairs for ana, 2 for zoe, plus the header
	if len(rows) != 8 {
		t.Fatalf("%d rows, want 8", len(rows))
	}
	if rows[1][0] != "ana_x.com" || rows[1][1] != "q1" || rows[1][2] != "Ana" {
		t.Fatalf("first pair = %v", rows[1])
	}
}

func TestExportWideCSVEmpty(t *testing.T) {
	b, err := ExportWideCSV(exportConfig(), nil)
	if err != nil {
		t.Fatalf("ExportWideCSV() = %v", err)
	}
	rows := parseCSV(t, b)
	if len(rows) != 1 {
		t.Fatalf("%d rows, want header only", len(rows))
	}
}
