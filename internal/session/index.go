package session

import (
	"sync"

	"github.com/blevesearch/bleve"

	"sourcefinder/models"
)

// evidenceIndex is a per-session BM25 index over cited source records, so a
// user can search back through everything a conversation has surfaced. The
// index is memory-only and rebuilt from the transcript when a store reloads
// a session.
type evidenceIndex struct {
	mu    sync.RWMutex
	index bleve.Index
	byID  map[string]models.SourceRecord
}

type evidenceDoc struct {
	Title   string `json:"title"`
	Preview string `json:"preview"`
	Source  string `json:"source"`
}

func newEvidenceIndex() (*evidenceIndex, error) {
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	return &evidenceIndex{index: index, byID: make(map[string]models.SourceRecord)}, nil
}

// Add indexes the records keyed by link. Re-adding a link overwrites the
// stored record, so the freshest preview wins.
func (e *evidenceIndex) Add(records []models.SourceRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, rec := range records {
		if rec.Link == "" {
			continue
		}
		e.byID[rec.Link] = rec
		doc := evidenceDoc{Title: rec.Title, Preview: rec.Preview, Source: string(rec.Source)}
		if err := e.index.Index(rec.Link, doc); err != nil {
			return err
		}
	}
	return nil
}

// Search returns the top-k records matching the query, best first.
func (e *evidenceIndex) Search(query string, k int) ([]models.SourceRecord, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	req := bleve.NewSearchRequestOptions(bleve.NewQueryStringQuery(query), k, 0, false)
	res, err := e.index.Search(req)
	if err != nil {
		return nil, err
	}
	out := make([]models.SourceRecord, 0, len(res.Hits))
	for _, hit := range res.Hits {
		rec, ok := e.byID[hit.ID]
		if !ok {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (e *evidenceIndex) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index.Close()
}

// rebuildIndex replays a transcript's assistant sources into a fresh index.
func rebuildIndex(messages []models.ChatMessage) (*evidenceIndex, error) {
	idx, err := newEvidenceIndex()
	if err != nil {
		return nil, err
	}
	for _, msg := range messages {
		if len(msg.Sources) == 0 {
			continue
		}
		if err := idx.Add(msg.Sources); err != nil {
			idx.Close()
			return nil, err
		}
	}
	return idx, nil
}
