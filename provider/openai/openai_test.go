package openai_provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sourcefinder/config"
	"sourcefinder/models"
)

func newTestClient(url string) *client {
	return NewClient(config.LLMConfig{
		APIKey:          "test-key",
		BaseURL:         url,
		CompletionModel: "gpt-4o-mini",
		Temperature:     0.2,
		MaxTokens:       512,
		Timeout:         5 * time.Second,
	})
}

func completionResponse(content string) string {
	body, _ := json.Marshal(map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"content": content}},
		},
	})
	return string(body)
}

func TestPlanQueriesParsesPlatformQueries(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		w.Write([]byte(completionResponse(`{"Reddit": "best r/golang threads", "Web": "golang generics tutorial"}`)))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	kinds := []models.SourceKind{models.KindReddit, models.KindWeb, models.KindNews}
	queries := c.PlanQueries(context.Background(), "how do go generics work?", nil, kinds)

	if queries[models.KindReddit] != "best r/golang threads" {
		t.Fatalf("unexpected reddit query: %q", queries[models.KindReddit])
	}
	if queries[models.KindWeb] != "golang generics tutorial" {
		t.Fatalf("unexpected web query: %q", queries[models.KindWeb])
	}
	// Kinds the model skipped fall back to the raw question.
	if queries[models.KindNews] != "how do go generics work?" {
		t.Fatalf("expected raw-query fallback for news, got %q", queries[models.KindNews])
	}
}

func TestPlanQueriesUnparseableFallsBack(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completionResponse("Sure! Here are some queries you could use...")))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	kinds := []models.SourceKind{models.KindWeb}
	queries := c.PlanQueries(context.Background(), "raw question", nil, kinds)
	if queries[models.KindWeb] != "raw question" {
		t.Fatalf("expected fallback, got %q", queries[models.KindWeb])
	}
}

func TestPlanQueriesAPIDownFallsBack(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	queries := c.PlanQueries(context.Background(), "raw question", nil, []models.SourceKind{models.KindWeb})
	if queries[models.KindWeb] != "raw question" {
		t.Fatalf("expected fallback, got %q", queries[models.KindWeb])
	}
}

func TestSynthesizeReturnsContent(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req request
		json.NewDecoder(r.Body).Decode(&req)
		last := req.Messages[len(req.Messages)-1]
		if last.Role != "user" {
			t.Errorf("expected user message last, got %s", last.Role)
		}
		w.Write([]byte(completionResponse("The answer [1].")))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	content, err := c.Synthesize(context.Background(), "question", nil, "### [Source 1] Title\n")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if content != "The answer [1]." {
		t.Fatalf("unexpected content: %q", content)
	}
}

func TestSynthesizeWrapsFailures(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Synthesize(context.Background(), "question", nil, "")
	if !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable got %v", err)
	}
}

func TestStripCodeFence(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
	}
	for _, tc := range cases {
		if got := stripCodeFence(tc.in); got != tc.want {
			t.Fatalf("stripCodeFence(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
