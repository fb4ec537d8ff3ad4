package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"sourcefinder/internal/webfetch"
)

type rewriteTransport struct {
	target *url.URL
}

func (t rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = t.target.Scheme
	req.URL.Host = t.target.Host
	return http.DefaultTransport.RoundTrip(req)
}

type fakeRenderer struct {
	pages map[string]webfetch.Page
}

func (f *fakeRenderer) Render(ctx context.Context, pageURL string) (webfetch.Page, error) {
	page, ok := f.pages[pageURL]
	if !ok {
		return webfetch.Page{}, errors.New("render failed")
	}
	return page, nil
}

const serperFixture = `{
	"organic": [
		{"title":"First","link":"https://w.example/1","snippet":"thin snippet one","imageUrl":"https://w.example/1.jpg"},
		{"title":"Second","link":"https://w.example/2","snippet":"thin snippet two"}
	],
	"knowledgeGraph": {"title":"Acme","website":"https://acme.example","description":"Acme Corp overview","imageUrl":"https://acme.example/logo.png"}
}`

func newSerperTest(t *testing.T, fixture string) *Search {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-API-KEY"); got != "serper-key" {
			t.Errorf("unexpected api key header %q", got)
		}
		w.Write([]byte(fixture))
	}))
	t.Cleanup(srv.Close)
	target, _ := url.Parse(srv.URL)
	return &Search{
		APIKey: "serper-key",
		Client: &http.Client{Transport: rewriteTransport{target: target}},
	}
}

func TestFetchParsesOrganicAndKnowledgeGraph(t *testing.T) {
	t.Parallel()
	s := newSerperTest(t, serperFixture)

	items, err := s.Fetch(context.Background(), "acme", 10)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 2 organic + 1 knowledge graph, got %d", len(items))
	}
	if items[0].Link != "https://w.example/1" || len(items[0].Images) != 1 {
		t.Fatalf("unexpected first item: %+v", items[0])
	}
	kg := items[2]
	if kg.Link != "https://acme.example" || kg.Logo != "https://acme.example/logo.png" {
		t.Fatalf("unexpected knowledge graph item: %+v", kg)
	}
}

func TestFetchRendererUpgradesTopHits(t *testing.T) {
	t.Parallel()
	s := newSerperTest(t, serperFixture)
	s.RenderTopHits = 1
	s.Renderer = &fakeRenderer{pages: map[string]webfetch.Page{
		"https://w.example/1": {URL: "https://w.example/1", Text: "full readable page content", TopImage: "https://w.example/top.jpg"},
	}}

	items, err := s.Fetch(context.Background(), "acme", 10)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if items[0].Snippet != "full readable page content" {
		t.Fatalf("expected rendered content, got %q", items[0].Snippet)
	}
	if len(items[0].Images) != 2 {
		t.Fatalf("expected top image appended, got %v", items[0].Images)
	}
	// Beyond RenderTopHits the search snippet stays.
	if items[1].Snippet != "thin snippet two" {
		t.Fatalf("second hit must keep its snippet, got %q", items[1].Snippet)
	}
}

func TestFetchRenderFailureKeepsSnippet(t *testing.T) {
	t.Parallel()
	s := newSerperTest(t, serperFixture)
	s.RenderTopHits = 2
	s.Renderer = &fakeRenderer{pages: map[string]webfetch.Page{}}

	items, err := s.Fetch(context.Background(), "acme", 10)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if items[0].Snippet != "thin snippet one" {
		t.Fatalf("render failure must not clobber the snippet, got %q", items[0].Snippet)
	}
}

func TestFetchNeverExceedsLimit(t *testing.T) {
	t.Parallel()
	cases := []struct {
		limit int
		want  int
	}{
		{1, 1}, // knowledge graph must not push past the cap
		{2, 2},
		{3, 3}, // two organic results plus the knowledge graph entry
		{10, 3},
	}
	for _, tc := range cases {
		s := newSerperTest(t, serperFixture)
		items, err := s.Fetch(context.Background(), "acme", tc.limit)
		if err != nil {
			t.Fatalf("Fetch(limit=%d): %v", tc.limit, err)
		}
		if len(items) != tc.want {
			t.Fatalf("Fetch(limit=%d): expected %d items got %d", tc.limit, tc.want, len(items))
		}
		if len(items) > tc.limit {
			t.Fatalf("Fetch(limit=%d) returned %d items over the cap", tc.limit, len(items))
		}
	}
}
