package app

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"vitrine/api/internal/content"
	"vitrine/api/internal/gitrepo"
)

type fakeHistory struct {
	logFn  func(name string, limit int) ([]gitrepo.Entry, error)
	showFn func(name, hash string) ([]byte, error)
}

func (f *fakeHistory) Log(name string, limit int) ([]gitrepo.Entry, error) {
	if f.logFn != nil {
		return f.logFn(name, limit)
	}
	return []gitrepo.Entry{}, nil
}

func (f *fakeHistory) Show(name, hash string) ([]byte, error) {
	if f.showFn != nil {
		return f.showFn(name, hash)
	}
	return nil, gitrepo.ErrUnknownDocument
}

func TestHistoryDisabled(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t)
	rr := env.do(t, jsonRequest(http.MethodGet, "/history/news", "", cookie))
	expectError(t, rr, http.StatusNotFound, "HISTORY_DISABLED")
}

func TestHistoryListsEntries(t *testing.T) {
	var gotName string
	var gotLimit int
	history := &fakeHistory{
		logFn: func(name string, limit int) ([]gitrepo.Entry, error) {
			gotName, gotLimit = name, limit
			return []gitrepo.Entry{{Hash: "abc123", Message: "update news-data.json", Author: "admin", CreatedAt: time.Now()}}, nil
		},
	}
	env := newTestEnv(t, withHistory(history))
	cookie := env.login(t)

	rr := env.do(t, jsonRequest(http.MethodGet, "/history/news?limit=5", "", cookie))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if gotName != content.NewsFile || gotLimit != 5 {
		t.Fatalf("expected Log(%s, 5), got Log(%s, %d)", content.NewsFile, gotName, gotLimit)
	}
	entries, _ := decodeMap(t, rr)["entries"].([]any)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %v", entries)
	}
}

func TestHistoryRejectsBadLimit(t *testing.T) {
	env := newTestEnv(t, withHistory(&fakeHistory{}))
	cookie := env.login(t)
	rr := env.do(t, jsonRequest(http.MethodGet, "/history/news?limit=lots", "", cookie))
	expectError(t, rr, http.StatusBadRequest, "VALIDATION_ERROR")
}

func TestHistoryUnknownDocument(t *testing.T) {
	env := newTestEnv(t, withHistory(&fakeHistory{}))
	cookie := env.login(t)
	rr := env.do(t, jsonRequest(http.MethodGet, "/history/secrets", "", cookie))
	expectError(t, rr, http.StatusNotFound, "NOT_FOUND")
}

func TestHistoryVersion(t *testing.T) {
	history := &fakeHistory{
		showFn: func(name, hash string) ([]byte, error) {
			if name == content.CarouselFile && hash == "abc123" {
				return []byte(`{"images":[]}`), nil
			}
			return nil, errors.New("missing")
		},
	}
	env := newTestEnv(t, withHistory(history))
	cookie := env.login(t)

	rr := env.do(t, jsonRequest(http.MethodGet, "/history/carousel/abc123", "", cookie))
	if rr.Code != http.StatusOK || rr.Body.String() != `{"images":[]}` {
		t.Fatalf("unexpected version response %d %s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, jsonRequest(http.MethodGet, "/history/carousel/ffffff", "", cookie))
	expectError(t, rr, http.StatusNotFound, "NOT_FOUND")
}

func TestSavesAreRecordedInGitHistory(t *testing.T) {
	repo, err := gitrepo.New(t.TempDir(), "admin")
	if err != nil {
		t.Fatalf("gitrepo.New() error = %v", err)
	}
	env := newTestEnv(t, withHistory(repo))
	env.docs.SetRecorder(repo)
	cookie := env.login(t)

	expectSuccess(t, env.do(t, jsonRequest(http.MethodPost, "/news", `{"text":"one"}`, cookie)))
	expectSuccess(t, env.do(t, jsonRequest(http.MethodPost, "/news", `{"text":"two"}`, cookie)))

	rr := env.do(t, jsonRequest(http.MethodGet, "/history/news", "", cookie))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	entries, _ := decodeMap(t, rr)["entries"].([]any)
	if len(entries) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(entries))
	}
	oldest, _ := entries[1].(map[string]any)
	hash, _ := oldest["hash"].(string)

	rr = env.do(t, jsonRequest(http.MethodGet, "/history/news/"+hash, "", cookie))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	want := "{\n  \"items\": [\n    \"one\"\n  ]\n}\n"
	if rr.Body.String() != want {
		t.Fatalf("expected %q, got %q", want, rr.Body.String())
	}
}
