package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/formwalk/formwalk/internal/schema"
)

// tokenHeader carries the storage service API token.
const tokenHeader = "X-StorageApi-Token"

// FileStore talks to a remote file-storage service that keeps one JSON
// document per respondent, grouped by tag. Files are named
// {respondentTag}.json; uploading under an existing name supersedes the
// previous version.
type FileStore struct {
	baseURL string
	token   string
	httpc   *http.Client
	now     func() time.Time
}

func NewFileStore(baseURL, token string) *FileStore {
	return &FileStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpc:   &http.Client{Timeout: 15 * time.Second},
		now:     func() time.Time { return time.Now().UTC() },
	}
}

type fileInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type uploadRequest struct {
	Name    string        `json:"name"`
	Tags    []string      `json:"tags"`
	Payload StoredAnswers `json:"payload"`
}

type uploadResponse struct {
	ID string `json:"id"`
}

func (s *FileStore) SaveAnswers(ctx context.Context, tag, respondent string, rec schema.AnswerRecord) (*Receipt, error) {
	storedAt := s.now()
	body, err := json.Marshal(uploadRequest{
		Name: respondent + ".json",
		Tags: []string{tag, respondent},
		Payload: StoredAnswers{
			Respondent:  respondent,
			SubmittedAt: storedAt,
			Answers:     rec,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode upload: %w", err)
	}
	var resp uploadResponse
	if err := s.do(ctx, http.MethodPost, "/files", bytes.NewReader(body), &resp); err != nil {
		return nil, fmt.Errorf("upload answers for %s: %w", respondent, err)
	}
	id := resp.ID
	if id == "" {
		id = newReceiptID()
	}
	return &Receipt{ID: id, StoredAt: storedAt}, nil
}

func (s *FileStore) LoadAnswers(ctx context.Context, tag, respondent string) (schema.AnswerRecord, error) {
	files, err := s.list(ctx, tag)
	if err != nil {
		return nil, err
	}
	want := respondent + ".json"
	for _, f := range files {
		if f.Name != want {
			continue
		}
		stored, err := s.download(ctx, f.ID)
		if err != nil {
			return nil, err
		}
		return stored.Answers, nil
	}
	return nil, ErrNotFound
}

func (s *FileStore) ListAnswers(ctx context.Context, tag string) ([]StoredAnswers, error) {
	files, err := s.list(ctx, tag)
	if err != nil {
		return nil, err
	}
	out := make([]StoredAnswers, 0, len(files))
	for _, f := range files {
		stored, err := s.download(ctx, f.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, *stored)
	}
	return out, nil
}

func (s *FileStore) list(ctx context.Context, tag string) ([]fileInfo, error) {
	var resp struct {
		Files []fileInfo `json:"files"`
	}
	path := "/files?tag=" + url.QueryEscape(tag)
	if err := s.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("list files for tag %s: %w", tag, err)
	}
	return resp.Files, nil
}

func (s *FileStore) download(ctx context.Context, id string) (*StoredAnswers, error) {
	var stored StoredAnswers
	if err := s.do(ctx, http.MethodGet, "/files/"+url.PathEscape(id), nil, &stored); err != nil {
		return nil, fmt.Errorf("download file %s: %w", id, err)
	}
	return &stored, nil
}

func (s *FileStore) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set(tokenHeader, s.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("storage service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
