package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"sourcefinder/config"
	"sourcefinder/internal/source"
	"sourcefinder/internal/webfetch"
	"sourcefinder/models"
)

const searchEndpoint = "https://google.serper.dev/search"

// Search queries Serper and optionally upgrades the top hits' snippets by
// rendering the pages through a headless browser. Render failures fall back
// to the search snippet; they never fail the adapter.
type Search struct {
	APIKey        string
	RenderTopHits int
	Renderer      webfetch.Renderer
	Client        *http.Client
}

func New(cfg config.WebConfig) *Search {
	s := &Search{
		APIKey: cfg.SerperAPIKey,
		Client: http.DefaultClient,
	}
	if cfg.RenderEnabled && cfg.RenderTopHits > 0 {
		s.RenderTopHits = cfg.RenderTopHits
		s.Renderer = webfetch.NewChromeRenderer(cfg.RenderTimeout, webfetch.DefaultMaxChars)
	}
	return s
}

func (s *Search) Kind() models.SourceKind { return models.KindWeb }

func (s *Search) Fetch(ctx context.Context, query string, limit int) ([]source.RawItem, error) {
	// https://serper.dev/ docs
	payload, _ := json.Marshal(map[string]any{"q": query, "num": limit})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, searchEndpoint, strings.NewReader(string(payload)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", source.ErrUnavailable, err)
	}
	req.Header.Set("X-API-KEY", s.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", source.ErrTimeout, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %v", source.ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, source.WrapStatus(models.KindWeb, resp.StatusCode)
	}

	var raw struct {
		Organic []struct {
			Title    string `json:"title"`
			Link     string `json:"link"`
			Snippet  string `json:"snippet"`
			ImageURL string `json:"imageUrl"`
		} `json:"organic"`
		KnowledgeGraph struct {
			Title       string `json:"title"`
			Website     string `json:"website"`
			Description string `json:"description"`
			ImageURL    string `json:"imageUrl"`
		} `json:"knowledgeGraph"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", source.ErrUnavailable, err)
	}

	var out []source.RawItem
	for _, r := range raw.Organic {
		if len(out) >= limit {
			break
		}
		item := source.RawItem{Title: r.Title, Link: r.Link, Snippet: r.Snippet}
		if r.ImageURL != "" {
			item.Images = []string{r.ImageURL}
		}
		out = append(out, item)
	}
	// The knowledge graph entry counts against the same result cap.
	if kg := raw.KnowledgeGraph; kg.Website != "" && kg.Description != "" && len(out) < limit {
		out = append(out, source.RawItem{
			Title:   kg.Title,
			Link:    kg.Website,
			Snippet: kg.Description,
			Logo:    kg.ImageURL,
		})
	}

	s.enrich(ctx, out)
	return out, nil
}

// enrich renders the top hits to replace thin search snippets with readable
// page content.
func (s *Search) enrich(ctx context.Context, items []source.RawItem) {
	if s.Renderer == nil {
		return
	}
	for i := range items {
		if i >= s.RenderTopHits {
			break
		}
		page, err := s.Renderer.Render(ctx, items[i].Link)
		if err != nil || page.Text == "" {
			continue
		}
		items[i].Snippet = page.Text
		if page.TopImage != "" {
			items[i].Images = append(items[i].Images, page.TopImage)
		}
	}
}
