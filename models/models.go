package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidFilter is returned when a query filter names an unknown source kind.
var ErrInvalidFilter = errors.New("invalid source filter")

// SourceKind identifies one of the supported information sources.
type SourceKind string

const (
	KindWeb      SourceKind = "Web"
	KindNews     SourceKind = "News"
	KindTwitter  SourceKind = "Twitter"
	KindAcademic SourceKind = "Academic"
	KindReddit   SourceKind = "Reddit"
)

// AllKinds returns every supported source kind in canonical platform order.
func AllKinds() []SourceKind {
	return []SourceKind{KindWeb, KindNews, KindTwitter, KindAcademic, KindReddit}
}

// ParseKind maps a filter string onto a SourceKind. Matching is
// case-insensitive; unknown names are an error, never silently dropped.
func ParseKind(s string) (SourceKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "web":
		return KindWeb, nil
	case "news":
		return KindNews, nil
	case "twitter":
		return KindTwitter, nil
	case "academic":
		return KindAcademic, nil
	case "reddit":
		return KindReddit, nil
	default:
		return "", fmt.Errorf("%w: unknown source kind %q", ErrInvalidFilter, s)
	}
}

// ParseKinds resolves a requested filter into a deduplicated, ordered kind
// set. An empty or nil filter means "all sources" in canonical order. The
// returned order is the caller's request order and is used later as a ranking
// tie-break.
func ParseKinds(filter []string) ([]SourceKind, error) {
	if len(filter) == 0 {
		return AllKinds(), nil
	}
	seen := make(map[SourceKind]struct{}, len(filter))
	out := make([]SourceKind, 0, len(filter))
	for _, raw := range filter {
		kind, err := ParseKind(raw)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[kind]; dup {
			continue
		}
		seen[kind] = struct{}{}
		out = append(out, kind)
	}
	return out, nil
}

// SourceRecord is the canonical, numbered evidence item returned alongside a
// synthesized answer. Num is assigned only after final ranking; within one
// response the Num values are dense 1..K and Link values are unique.
type SourceRecord struct {
	Num     int        `json:"num"`
	Title   string     `json:"title"`
	Link    string     `json:"link"`
	Source  SourceKind `json:"source"`
	Preview string     `json:"preview,omitempty"`
	Images  []string   `json:"images,omitempty"`
	Logo    string     `json:"logo,omitempty"`
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is a single conversation turn. Sources are only meaningful on
// assistant messages.
type ChatMessage struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Sources   []SourceRecord `json:"sources,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
