package retrieval

import (
	"fmt"
	"sort"
	"strings"

	"sourcefinder/models"
)

// Rank orders the union of per-kind records for citation. The primary key is
// each record's native position inside its own kind (the source's relevance
// proxy); ties break on the position of the record's kind in the requested
// filter, so the first-listed kind ranks its items earlier. The sort is
// stable, so equal keys keep arrival order.
func Rank(itemsByKind map[models.SourceKind][]models.SourceRecord, filterOrder []models.SourceKind) []models.SourceRecord {
	kindPos := make(map[models.SourceKind]int, len(filterOrder))
	for i, kind := range filterOrder {
		kindPos[kind] = i
	}

	type ranked struct {
		rec       models.SourceRecord
		nativePos int
		filterPos int
	}
	var all []ranked
	for _, kind := range filterOrder {
		for i, rec := range itemsByKind[kind] {
			all = append(all, ranked{rec: rec, nativePos: i, filterPos: kindPos[kind]})
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].nativePos != all[j].nativePos {
			return all[i].nativePos < all[j].nativePos
		}
		return all[i].filterPos < all[j].filterPos
	})

	out := make([]models.SourceRecord, len(all))
	for i, r := range all {
		out[i] = r.rec
	}
	return out
}

// Finalize truncates a ranked, deduplicated record list to the evidence
// budget and assigns dense citation numbers. A record is wholly included or
// wholly excluded; the included set is the maximal prefix whose cumulative
// preview size fits the budget. Running Finalize over an already-finalized
// list yields identical numbering.
func Finalize(ranked []models.SourceRecord, budget int) []models.SourceRecord {
	out := make([]models.SourceRecord, 0, len(ranked))
	used := 0
	for _, rec := range ranked {
		size := len(rec.Preview)
		if used+size > budget {
			break
		}
		used += size
		rec.Num = len(out) + 1
		out = append(out, rec)
	}
	return out
}

// RenderEvidence builds the prompt-ready evidence block from finalized
// records. The [Source n] markers match the records' citation numbers so the
// model's inline citations line up with the returned source list.
func RenderEvidence(records []models.SourceRecord) string {
	if len(records) == 0 {
		return ""
	}
	var b strings.Builder
	for _, rec := range records {
		fmt.Fprintf(&b, "### [Source %d] %s\n", rec.Num, rec.Title)
		fmt.Fprintf(&b, "**Source Type:** %s\n", rec.Source)
		fmt.Fprintf(&b, "**URL:** %s\n", rec.Link)
		fmt.Fprintf(&b, "**Preview:**\n%s\n", rec.Preview)
		if len(rec.Images) > 0 {
			fmt.Fprintf(&b, "**Media:** %s\n", strings.Join(rec.Images, ", "))
		}
		b.WriteString(strings.Repeat("-", 50) + "\n")
	}
	return b.String()
}

// Assemble runs the full citation stage over normalized per-kind records:
// rank, dedupe, truncate to budget, number, render.
func Assemble(itemsByKind map[models.SourceKind][]models.SourceRecord, filterOrder []models.SourceKind, budget int) (string, []models.SourceRecord) {
	ranked := Rank(itemsByKind, filterOrder)
	deduped := Deduplicate(ranked)
	final := Finalize(deduped, budget)
	return RenderEvidence(final), final
}
