package twitter

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

const searchEndpoint = "https://api.twitter.com/2/tweets/search/recent"

// Search queries the Twitter API v2 recent search endpoint.
type Search struct {
	BearerToken string
	Client      *http.Client
}

func New(cfg config.TwitterConfig) *Search {
	return &Search{BearerToken: cfg.BearerToken, Client: http.DefaultClient}
}

func (s *Search) Kind() models.SourceKind { return models.KindTwitter }

func (s *Search) Fetch(ctx context.Context, query string, limit int) ([]source.RawItem, error) {
	// https://developer.twitter.com/en/docs/twitter-api/tweets/search
	// The API floor for max_results is 10.
	apiLimit := limit
	if apiLimit < 10 {
		apiLimit = 10
	}
	params := url.Values{}
	params.Set("query", query)
	params.Set("max_results", fmt.Sprint(apiLimit))
	params.Set("tweet.fields", "created_at,author_id")
	params.Set("expansions", "author_id")
	params.Set("user.fields", "username,profile_image_url")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", source.ErrUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+s.BearerToken)

	resp, err := s.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", source.ErrTimeout, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %v", source.ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, source.WrapStatus(models.KindTwitter, resp.StatusCode)
	}

	var raw struct {
		Data []struct {
			ID       string `json:"id"`
			Text     string `json:"text"`
			AuthorID string `json:"author_id"`
		} `json:"data"`
		Includes struct {
			Users []struct {
				ID              string `json:"id"`
				Username        string `json:"username"`
				ProfileImageURL string `json:"profile_image_url"`
			} `json:"users"`
		} `json:"includes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", source.ErrUnavailable, err)
	}

	users := make(map[string]struct{ name, avatar string }, len(raw.Includes.Users))
	for _, u := range raw.Includes.Users {
		users[u.ID] = struct{ name, avatar string }{u.Username, u.ProfileImageURL}
	}

	var out []source.RawItem
	for _, tweet := range raw.Data {
		if len(out) >= limit {
			break
		}
		title := "Twitter Post"
		var logo string
		if u, ok := users[tweet.AuthorID]; ok {
			title = "Tweet by @" + u.name
			logo = u.avatar
		}
		out = append(out, source.RawItem{
			Title:   title,
			Link:    "https://twitter.com/user/status/" + tweet.ID,
			Snippet: tweet.Text,
			Logo:    logo,
		})
	}
	return out, nil
}
