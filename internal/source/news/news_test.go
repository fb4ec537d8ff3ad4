package news

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sourcefinder/config"
)

func newTestSearch(endpoint string) *Search {
	s := New(config.NewsConfig{APIKey: "test-key", Endpoint: endpoint, DaysBack: 30})
	s.now = func() time.Time { return time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC) }
	return s
}

func TestFetchEverything(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/everything" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("from"); got != "2025-05-16" {
			t.Errorf("unexpected from date %s", got)
		}
		w.Write([]byte(`{"status":"ok","articles":[
			{"title":"A","description":"a long enough description for the preview","url":"https://n.example/a","urlToImage":"https://n.example/a.jpg"},
			{"title":"B","description":"short","content":"` + strings.Repeat("c", 200) + `","url":"https://n.example/b"}
		]}`))
	}))
	defer srv.Close()

	items, err := newTestSearch(srv.URL).Fetch(context.Background(), "query", 10)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items got %d", len(items))
	}
	if items[0].Snippet != "a long enough description for the preview" {
		t.Fatalf("unexpected snippet: %q", items[0].Snippet)
	}
	if len(items[0].Images) != 1 {
		t.Fatalf("expected article image carried over")
	}
	// Thin description replaced by truncated content.
	if items[1].Snippet != strings.Repeat("c", 150) {
		t.Fatalf("expected content lead, got %q", items[1].Snippet)
	}
}

func TestFetchFallsBackToTopHeadlines(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/everything":
			w.WriteHeader(http.StatusTooManyRequests)
		case "/top-headlines":
			w.Write([]byte(`{"status":"ok","articles":[{"title":"Headline","description":"from the fallback endpoint","url":"https://n.example/h"}]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	items, err := newTestSearch(srv.URL).Fetch(context.Background(), "query", 10)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(items) != 1 || items[0].Title != "Headline" {
		t.Fatalf("expected fallback headline, got %+v", items)
	}
}

func TestFetchErrorStatus(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"error","message":"apiKeyInvalid"}`))
	}))
	defer srv.Close()

	if _, err := newTestSearch(srv.URL).Fetch(context.Background(), "query", 10); err == nil {
		t.Fatalf("expected error for non-ok status")
	}
}

func TestFetchRespectsLimit(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok","articles":[
			{"title":"A","description":"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa","url":"https://n.example/a"},
			{"title":"B","description":"bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb","url":"https://n.example/b"},
			{"title":"C","description":"cccccccccccccccccccccccccccccccc","url":"https://n.example/c"}
		]}`))
	}))
	defer srv.Close()

	items, err := newTestSearch(srv.URL).Fetch(context.Background(), "query", 2)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected limit applied, got %d items", len(items))
	}
}
