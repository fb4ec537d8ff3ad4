package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sourcefinder/config"
	"sourcefinder/models"
)

// ErrNotFound is returned when a session id does not resolve to a live session.
var ErrNotFound = errors.New("session not found")

const (
	titleMaxRunes = 50

	// defaultTitle is the placeholder a session carries until its first
	// user message names it.
	defaultTitle = "New Chat"
)

// Session is one conversation: an ordered message transcript plus the
// metadata the sidebar needs.
type Session struct {
	ID        string               `json:"id"`
	Title     string               `json:"title"`
	Messages  []models.ChatMessage `json:"messages"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// Summary is the listing view of a session.
type Summary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store manages sessions and the notion of a single current session.
//
// Resolve("") returns the current session, creating one if none exists;
// Resolve(id) returns that session or ErrNotFound. Create always starts a
// fresh session and makes it current. Append adds one message and reindexes
// its sources for search.
type Store interface {
	Resolve(ctx context.Context, id string) (*Session, error)
	Create(ctx context.Context) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	Append(ctx context.Context, id string, msg models.ChatMessage) error
	List(ctx context.Context) ([]Summary, error)
	Current(ctx context.Context) (string, error)
	Sources(ctx context.Context, id string) ([]models.SourceRecord, error)
	Search(ctx context.Context, id, query string, k int) ([]models.SourceRecord, error)
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
	Close() error
}

// NewStore builds the configured store backend.
func NewStore(cfg config.SessionsConfig, redisCfg config.RedisConfig) (Store, error) {
	switch cfg.Store {
	case "inmemory":
		return NewInMemoryStore(cfg.MaxSessions), nil
	case "redis":
		return NewRedisStore(redisCfg, cfg.Retention)
	default:
		return nil, fmt.Errorf("unsupported session store: %s", cfg.Store)
	}
}

// TitleFor derives a session title from its first user message. Long
// messages are cut at a rune boundary with an ellipsis.
func TitleFor(content string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return defaultTitle
	}
	runes := []rune(content)
	if len(runes) <= titleMaxRunes {
		return content
	}
	return string(runes[:titleMaxRunes]) + "..."
}

// dedupeByLink keeps the first record seen per link, preserving order.
func dedupeByLink(records []models.SourceRecord) []models.SourceRecord {
	seen := make(map[string]struct{}, len(records))
	out := make([]models.SourceRecord, 0, len(records))
	for _, rec := range records {
		if _, dup := seen[rec.Link]; dup {
			continue
		}
		seen[rec.Link] = struct{}{}
		out = append(out, rec)
	}
	return out
}
