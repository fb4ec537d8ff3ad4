package academic

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"sourcefinder/config"
	"sourcefinder/internal/source"
	"sourcefinder/models"
)

const maxSnippet = 150

// Search queries the arXiv Atom API.
type Search struct {
	Endpoint string
	Client   *http.Client
}

func New(cfg config.AcademicConfig) *Search {
	return &Search{Endpoint: cfg.Endpoint, Client: http.DefaultClient}
}

func (s *Search) Kind() models.SourceKind { return models.KindAcademic }

func (s *Search) Fetch(ctx context.Context, query string, limit int) ([]source.RawItem, error) {
	// https://info.arxiv.org/help/api/user-manual.html
	params := url.Values{}
	params.Set("search_query", "all:"+query)
	params.Set("start", "0")
	params.Set("max_results", fmt.Sprint(limit))
	params.Set("sortBy", "relevance")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.Endpoint+"?"+params.Encode(), nil)
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
		return nil, source.WrapStatus(models.KindAcademic, resp.StatusCode)
	}

	var feed struct {
		Entries []struct {
			ID      string `xml:"id"`
			Title   string `xml:"title"`
			Summary string `xml:"summary"`
		} `xml:"entry"`
	}
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", source.ErrUnavailable, err)
	}

	var out []source.RawItem
	for _, entry := range feed.Entries {
		if len(out) >= limit {
			break
		}
		summary := strings.Join(strings.Fields(entry.Summary), " ")
		if r := []rune(summary); len(r) > maxSnippet {
			summary = string(r[:maxSnippet]) + "..."
		}
		out = append(out, source.RawItem{
			Title:   strings.Join(strings.Fields(entry.Title), " "),
			Link:    entry.ID,
			Snippet: summary,
		})
	}
	return out, nil
}
