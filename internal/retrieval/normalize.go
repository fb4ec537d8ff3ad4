package retrieval

import (
	"errors"
	"net/url"
	"path"
	"sort"
	"strings"

	"sourcefinder/internal/source"
	"sourcefinder/models"
)

const maxPreview = 1000

var trackingQueryParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"utm_id":       {},
	"utm_name":     {},
	"utm_reader":   {},
	"gclid":        {},
	"dclid":        {},
	"fbclid":       {},
	"msclkid":      {},
	"igshid":       {},
	"ref":          {},
}

// CanonicalLink normalises a link for duplicate detection. Scheme, host and
// path are lowercased, default ports and fragments dropped, tracking query
// parameters stripped and the remaining parameters sorted deterministically.
// A schemeless link defaults to https.
func CanonicalLink(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("empty link")
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if parsed.Scheme == "" && parsed.Host == "" {
		if strings.HasPrefix(raw, "//") {
			parsed, err = url.Parse("https:" + raw)
		} else {
			parsed, err = url.Parse("https://" + raw)
		}
		if err != nil {
			return "", err
		}
	}
	if parsed.Scheme == "" {
		parsed.Scheme = "https"
	}
	parsed.Scheme = strings.ToLower(parsed.Scheme)

	host := strings.ToLower(parsed.Host)
	if host == "" {
		return "", errors.New("link missing host")
	}
	if (parsed.Scheme == "http" && strings.HasSuffix(host, ":80")) ||
		(parsed.Scheme == "https" && strings.HasSuffix(host, ":443")) {
		host = host[:strings.LastIndex(host, ":")]
	}
	parsed.Host = host

	cleanPath := path.Clean(strings.ToLower(parsed.Path))
	if cleanPath == "." || cleanPath == "" {
		cleanPath = "/"
	}
	if !strings.HasPrefix(cleanPath, "/") {
		cleanPath = "/" + cleanPath
	}
	parsed.Path = cleanPath

	parsed.Fragment = ""
	query := parsed.Query()
	for key := range query {
		if _, drop := trackingQueryParams[strings.ToLower(key)]; drop {
			query.Del(key)
		}
	}
	if len(query) == 0 {
		parsed.RawQuery = ""
	} else {
		keys := make([]string, 0, len(query))
		for key := range query {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		var b strings.Builder
		for _, key := range keys {
			values := append([]string(nil), query[key]...)
			sort.Strings(values)
			for _, value := range values {
				if b.Len() > 0 {
					b.WriteByte('&')
				}
				b.WriteString(url.QueryEscape(key))
				b.WriteByte('=')
				b.WriteString(url.QueryEscape(value))
			}
		}
		parsed.RawQuery = b.String()
	}

	return parsed.String(), nil
}

// Normalize maps one adapter's raw items onto canonical Source Records.
// Items without a link cannot be cited and are dropped; optional fields stay
// absent. Num is assigned later by the citation assembler.
func Normalize(kind models.SourceKind, items []source.RawItem) []models.SourceRecord {
	out := make([]models.SourceRecord, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.Link) == "" {
			continue
		}
		title := strings.TrimSpace(item.Title)
		if title == "" {
			title = string(kind) + " source"
		}
		preview := strings.TrimSpace(item.Snippet)
		// Cut on a rune boundary so a multi-byte character never splits
		if r := []rune(preview); len(r) > maxPreview {
			preview = string(r[:maxPreview])
		}
		out = append(out, models.SourceRecord{
			Title:   title,
			Link:    item.Link,
			Source:  kind,
			Preview: preview,
			Images:  append([]string(nil), item.Images...),
			Logo:    item.Logo,
		})
	}
	return out
}

// Deduplicate collapses records sharing a canonical link, keeping input
// order. On collision the longer preview wins and images are merged in order
// of first appearance. Title similarity is deliberately not a merge key.
func Deduplicate(records []models.SourceRecord) []models.SourceRecord {
	out := make([]models.SourceRecord, 0, len(records))
	index := make(map[string]int, len(records))
	for _, rec := range records {
		key, err := CanonicalLink(rec.Link)
		if err != nil {
			key = rec.Link
		}
		at, seen := index[key]
		if !seen {
			index[key] = len(out)
			out = append(out, rec)
			continue
		}
		kept := &out[at]
		if len(rec.Preview) > len(kept.Preview) {
			kept.Preview = rec.Preview
		}
		kept.Images = mergeImages(kept.Images, rec.Images)
		if kept.Logo == "" {
			kept.Logo = rec.Logo
		}
	}
	return out
}

func mergeImages(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, img := range append(append([]string(nil), a...), b...) {
		if _, dup := seen[img]; dup || img == "" {
			continue
		}
		seen[img] = struct{}{}
		out = append(out, img)
	}
	return out
}
