package news

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"sourcefinder/config"
	"sourcefinder/internal/source"
	"sourcefinder/models"
)

// Search queries NewsAPI. A failing /everything call falls back to
// /top-headlines before the source is reported as degraded.
type Search struct {
	APIKey   string
	Endpoint string
	DaysBack int
	Client   *http.Client
	now      func() time.Time
}

func New(cfg config.NewsConfig) *Search {
	return &Search{
		APIKey:   cfg.APIKey,
		Endpoint: cfg.Endpoint,
		DaysBack: cfg.DaysBack,
		Client:   http.DefaultClient,
		now:      time.Now,
	}
}

func (s *Search) Kind() models.SourceKind { return models.KindNews }

func (s *Search) Fetch(ctx context.Context, query string, limit int) ([]source.RawItem, error) {
	from := s.now().AddDate(0, 0, -s.DaysBack).Format("2006-01-02")
	params := url.Values{}
	params.Set("apiKey", s.APIKey)
	params.Set("q", query)
	params.Set("from", from)
	params.Set("language", "en")
	params.Set("sortBy", "relevancy")
	params.Set("pageSize", fmt.Sprint(limit))

	items, err := s.request(ctx, s.Endpoint+"/everything?"+params.Encode(), limit)
	if err == nil {
		return items, nil
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %v", source.ErrTimeout, ctx.Err())
	}

	// Fallback: top headlines with the same query
	headline := url.Values{}
	headline.Set("apiKey", s.APIKey)
	headline.Set("q", query)
	headline.Set("language", "en")
	headline.Set("pageSize", fmt.Sprint(limit))
	return s.request(ctx, s.Endpoint+"/top-headlines?"+headline.Encode(), limit)
}

func (s *Search) request(ctx context.Context, reqURL string, limit int) ([]source.RawItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", source.ErrUnavailable, err)
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", source.ErrTimeout, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %v", source.ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, source.WrapStatus(models.KindNews, resp.StatusCode)
	}

	var raw struct {
		Status   string `json:"status"`
		Message  string `json:"message"`
		Articles []struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			Content     string `json:"content"`
			URL         string `json:"url"`
			URLToImage  string `json:"urlToImage"`
		} `json:"articles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", source.ErrUnavailable, err)
	}
	if raw.Status != "ok" {
		return nil, fmt.Errorf("%w: newsapi: %s", source.ErrUnavailable, raw.Message)
	}

	var out []source.RawItem
	for _, article := range raw.Articles {
		if len(out) >= limit {
			break
		}
		snippet := article.Description
		// A too-short description is less useful than the content lead
		if len(snippet) < 30 && article.Content != "" {
			snippet = article.Content
			if r := []rune(snippet); len(r) > 150 {
				snippet = string(r[:150])
			}
		}
		var images []string
		if article.URLToImage != "" {
			images = []string{article.URLToImage}
		}
		out = append(out, source.RawItem{
			Title:   article.Title,
			Link:    article.URL,
			Snippet: snippet,
			Images:  images,
		})
	}
	return out, nil
}
