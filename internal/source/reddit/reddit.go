package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"sourcefinder/config"
	"sourcefinder/internal/source"
	"sourcefinder/models"
)

const searchEndpoint = "https://www.reddit.com/search.json"

const maxSnippet = 500

// Search queries Reddit's public search API.
type Search struct {
	UserAgent string
	Client    *http.Client
}

func New(cfg config.RedditConfig) *Search {
	return &Search{UserAgent: cfg.UserAgent, Client: http.DefaultClient}
}

func (s *Search) Kind() models.SourceKind { return models.KindReddit }

func (s *Search) Fetch(ctx context.Context, query string, limit int) ([]source.RawItem, error) {
	// https://www.reddit.com/dev/api#GET_search
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", fmt.Sprint(limit))
	params.Set("sort", "relevance")
	params.Set("raw_json", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", source.ErrUnavailable, err)
	}
	req.Header.Set("User-Agent", s.UserAgent)

	resp, err := s.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", source.ErrTimeout, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %v", source.ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, source.WrapStatus(models.KindReddit, resp.StatusCode)
	}

	var raw struct {
		Data struct {
			Children []struct {
				Data struct {
					Title     string `json:"title"`
					Permalink string `json:"permalink"`
					Selftext  string `json:"selftext"`
					Preview   struct {
						Images []struct {
							Source struct {
								URL string `json:"url"`
							} `json:"source"`
						} `json:"images"`
					} `json:"preview"`
				} `json:"data"`
			} `json:"children"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", source.ErrUnavailable, err)
	}

	var out []source.RawItem
	for _, child := range raw.Data.Children {
		if len(out) >= limit {
			break
		}
		post := child.Data
		snippet := post.Selftext
		if r := []rune(snippet); len(r) > maxSnippet {
			snippet = string(r[:maxSnippet]) + "..."
		}
		var images []string
		for _, img := range post.Preview.Images {
			if img.Source.URL != "" {
				images = append(images, img.Source.URL)
			}
			if len(images) >= 3 {
				break
			}
		}
		out = append(out, source.RawItem{
			Title:   post.Title,
			Link:    "https://reddit.com" + post.Permalink,
			Snippet: snippet,
			Images:  images,
		})
	}
	return out, nil
}
