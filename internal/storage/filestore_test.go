package storage

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/formwalk/formwalk/internal/schema"
)

// fakeStorageService is a minimal in-memory double of the remote file
// service: POST /files uploads, GET /files lists by tag, GET /files/{id}
// downloads.
type fakeStorageService struct {
	t      *testing.T
	nextID int
	files  map[string]uploadRequest // id -> upload
}

func newFakeStorageService(t *testing.T) *fakeStorageService {
	return &fakeStorageService{t: t, files: map[string]uploadRequest{}}
}

func (f *fakeStorageService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /files", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-StorageApi-Token") != "secret" {
			http.Error(w, "bad token", http.StatusUnauthorized)
			return
		}
		var up uploadRequest
		if err := json.NewDecoder(r.Body).Decode(&up); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		// uploading under an existing name supersedes the old file
		for id, old := range f.files {
			if old.Name == up.Name {
				delete(f.files, id)
			}
		}
		f.nextID++
		id := "file-" + string(rune('a'+f.nextID))
		f.files[id] = up
		_ = json.NewEncoder(w).Encode(map[string]string{"id": id})
	})
	mux.HandleFunc("GET /files", func(w http.ResponseWriter, r *http.Request) {
		tag := r.URL.Query().Get("tag")
		var out struct {
			Files []fileInfo `json:"files"`
		}
		for id, up := range f.files {
			for _, t := range up.Tags {
				if t == tag {
					out.Files = append(out.Files, fileInfo{ID: id, Name: up.Name})
				}
			}
		}
		_ = json.NewEncoder(w).Encode(out)
	})
	mux.HandleFunc("GET /files/{id}", func(w http.ResponseWriter, r *http.Request) {
		up, ok := f.files[r.PathValue("id")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(up.Payload)
	})
	return mux
}

func TestFileStoreSaveAndLoad(t *testing.T) {
	fake := newFakeStorageService(t)
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	store := NewFileStore(srv.URL, "secret")
	store.now = func() time.Time { return time.Unix(2000, 0).UTC() }
	ctx := context.Background()

	rec := schema.AnswerRecord{"q1": "Bob", "q3": "X,Z"}
	receipt, err := store.SaveAnswers(ctx, "survey_v2", "petr_keboola.com", rec)
	if err != nil {
		t.Fatalf("SaveAnswers() = %v", err)
	}
	if receipt.ID == "" {
		t.Fatal("empty receipt id")
	}

	got, err := store.LoadAnswers(ctx, "survey_v2", "petr_keboola.com")
	if err != nil {
		t.Fatalf("LoadAnswers() = %v", err)
	}
	if got["q3"] != "X,Z" {
		t.Fatalf("loaded = %v", got)
	}
}

func TestFileStoreResubmissionSupersedes(t *testing.T) {
	fake := newFakeStorageService(t)
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	store := NewFileStore(srv.URL, "secret")
	ctx := context.Background()
	if _, err := store.SaveAnswers(ctx, "t", "r", schema.AnswerRecord{"q1": "first"}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.SaveAnswers(ctx, "t", "r", schema.AnswerRecord{"q1": "second"}); err != nil {
		t.Fatal(err)
	}
	all, err := store.ListAnswers(ctx, "t")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].Answers["q1"] != "second" {
		t.Fatalf("ListAnswers() = %+v, want one superseding record", all)
	}
}

func TestFileStoreNotFound(t *testing.T) {
	fake := newFakeStorageService(t)
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	store := NewFileStore(srv.URL, "secret")
	if _, err := store.LoadAnswers(context.Background(), "t", "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("LoadAnswers() = %v, want ErrNotFound", err)
	}
}

func TestFileStoreSurfacesServiceErrors(t *testing.T) {
	fake := newFakeStorageService(t)
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	store := NewFileStore(srv.URL, "wrong-token")
	_, err := store.SaveAnswers(context.Background(), "t", "r", schema.AnswerRecord{"q1": "v"})
	if err == nil {
		t.Fatal("SaveAnswers with bad token = nil, want error")
	}
}
