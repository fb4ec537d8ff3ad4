package retrieval

import (
	"strings"
	"testing"
	"unicode/utf8"

	"sourcefinder/internal/source"
	"sourcefinder/models"
)

func TestCanonicalLink(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases host", "https://Example.COM/Path", "https://example.com/path"},
		{"drops fragment", "https://example.com/a#section", "https://example.com/a"},
		{"drops default https port", "https://example.com:443/a", "https://example.com/a"},
		{"drops default http port", "http://example.com:80/a", "http://example.com/a"},
		{"strips tracking params", "https://example.com/a?utm_source=x&id=5", "https://example.com/a?id=5"},
		{"sorts query params", "https://example.com/a?b=2&a=1", "https://example.com/a?a=1&b=2"},
		{"defaults scheme", "example.com/a", "https://example.com/a"},
		{"root path", "https://example.com", "https://example.com/"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := CanonicalLink(tc.in)
			if err != nil {
				t.Fatalf("CanonicalLink(%q): %v", tc.in, err)
			}
			if got != tc.want {
				t.Fatalf("CanonicalLink(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestCanonicalLinkRejectsEmpty(t *testing.T) {
	t.Parallel()
	if _, err := CanonicalLink("   "); err == nil {
		t.Fatalf("expected error for blank link")
	}
}

func TestNormalizeDropsLinklessItems(t *testing.T) {
	t.Parallel()
	items := []source.RawItem{
		{Title: "kept", Link: "https://example.com/a", Snippet: "text"},
		{Title: "dropped", Link: ""},
	}
	records := Normalize(models.KindWeb, items)
	if len(records) != 1 {
		t.Fatalf("expected 1 record got %d", len(records))
	}
	if records[0].Title != "kept" || records[0].Source != models.KindWeb {
		t.Fatalf("unexpected record: %+v", records[0])
	}
}

func TestNormalizeDefaultsTitleAndCapsPreview(t *testing.T) {
	t.Parallel()
	items := []source.RawItem{
		{Link: "https://example.com/a", Snippet: strings.Repeat("x", 1500)},
	}
	records := Normalize(models.KindNews, items)
	if records[0].Title != "News source" {
		t.Fatalf("expected default title got %q", records[0].Title)
	}
	if len(records[0].Preview) != maxPreview {
		t.Fatalf("expected preview capped at %d got %d", maxPreview, len(records[0].Preview))
	}
}

func TestNormalizeTruncatesPreviewOnRuneBoundary(t *testing.T) {
	t.Parallel()
	items := []source.RawItem{
		{Link: "https://example.com/a", Snippet: strings.Repeat("é", maxPreview+50)},
	}
	records := Normalize(models.KindWeb, items)
	got := records[0].Preview
	if !utf8.ValidString(got) {
		t.Fatalf("preview contains a split rune")
	}
	if n := utf8.RuneCountInString(got); n != maxPreview {
		t.Fatalf("expected %d runes got %d", maxPreview, n)
	}
}

func TestDeduplicateCollapsesEquivalentLinks(t *testing.T) {
	t.Parallel()
	records := []models.SourceRecord{
		{Title: "first", Link: "https://Example.com/a?utm_source=tw", Source: models.KindWeb, Preview: "short"},
		{Title: "other", Link: "https://example.com/b", Source: models.KindNews, Preview: "b"},
		{Title: "second", Link: "https://example.com/a", Source: models.KindNews, Preview: "a much longer preview", Images: []string{"img1"}},
	}
	out := Deduplicate(records)
	if len(out) != 2 {
		t.Fatalf("expected 2 records got %d", len(out))
	}
	// First occurrence keeps its slot; longer preview wins the merge.
	if out[0].Title != "first" {
		t.Fatalf("expected first occurrence kept, got %q", out[0].Title)
	}
	if out[0].Preview != "a much longer preview" {
		t.Fatalf("expected longer preview to win, got %q", out[0].Preview)
	}
	if len(out[0].Images) != 1 || out[0].Images[0] != "img1" {
		t.Fatalf("expected merged images, got %v", out[0].Images)
	}
}

func TestDeduplicateOrderIndependentResult(t *testing.T) {
	t.Parallel()
	a := models.SourceRecord{Link: "https://example.com/a#x", Preview: "one"}
	b := models.SourceRecord{Link: "https://example.com/a", Preview: "longer two"}
	first := Deduplicate([]models.SourceRecord{a, b})
	second := Deduplicate([]models.SourceRecord{b, a})
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("expected both orders to collapse to 1 record")
	}
	if first[0].Preview != second[0].Preview {
		t.Fatalf("merge result depends on order: %q vs %q", first[0].Preview, second[0].Preview)
	}
}
