package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"sourcefinder/models"
)

type memEntry struct {
	session *Session
	index   *evidenceIndex
}

// InMemoryStore keeps sessions in process memory. When the registry exceeds
// maxSessions the least recently updated session is evicted; the current
// session is never evicted.
type InMemoryStore struct {
	mu          sync.RWMutex
	sessions    map[string]*memEntry
	current     string
	maxSessions int
}

func NewInMemoryStore(maxSessions int) *InMemoryStore {
	return &InMemoryStore{
		sessions:    make(map[string]*memEntry),
		maxSessions: maxSessions,
	}
}

func (s *InMemoryStore) Resolve(ctx context.Context, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != "" {
		entry, ok := s.sessions[id]
		if !ok {
			return nil, ErrNotFound
		}
		s.current = id
		return cloneSession(entry.session), nil
	}
	if s.current != "" {
		if entry, ok := s.sessions[s.current]; ok {
			return cloneSession(entry.session), nil
		}
	}
	return s.createLocked()
}

func (s *InMemoryStore) Create(ctx context.Context) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked()
}

func (s *InMemoryStore) createLocked() (*Session, error) {
	idx, err := newEvidenceIndex()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	sess := &Session{
		ID:        uuid.NewString(),
		Title:     defaultTitle,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.sessions[sess.ID] = &memEntry{session: sess, index: idx}
	s.current = sess.ID
	s.evictLocked()
	return cloneSession(sess), nil
}

func (s *InMemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSession(entry.session), nil
}

func (s *InMemoryStore) Append(ctx context.Context, id string, msg models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	sess := entry.session
	// The first user message names the session, even when imported
	// assistant messages precede it.
	if msg.Role == models.RoleUser && sess.Title == defaultTitle {
		sess.Title = TitleFor(msg.Content)
	}
	sess.Messages = append(sess.Messages, msg)
	sess.UpdatedAt = time.Now()
	if len(msg.Sources) > 0 {
		if err := entry.index.Add(msg.Sources); err != nil {
			return err
		}
	}
	return nil
}

func (s *InMemoryStore) List(ctx context.Context) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Summary, 0, len(s.sessions))
	for _, entry := range s.sessions {
		out = append(out, Summary{
			ID:        entry.session.ID,
			Title:     entry.session.Title,
			UpdatedAt: entry.session.UpdatedAt,
		})
	}
	// Most recently active first
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *InMemoryStore) Current(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == "" {
		return "", nil
	}
	if _, ok := s.sessions[s.current]; !ok {
		return "", nil
	}
	return s.current, nil
}

func (s *InMemoryStore) Sources(ctx context.Context, id string) ([]models.SourceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	var all []models.SourceRecord
	for _, msg := range entry.session.Messages {
		all = append(all, msg.Sources...)
	}
	return dedupeByLink(all), nil
}

func (s *InMemoryStore) Search(ctx context.Context, id, query string, k int) ([]models.SourceRecord, error) {
	s.mu.RLock()
	entry, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return entry.index.Search(query, k)
}

func (s *InMemoryStore) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, entry := range s.sessions {
		if id == s.current {
			continue
		}
		if entry.session.UpdatedAt.Before(cutoff) {
			entry.index.Close()
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}

func (s *InMemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, entry := range s.sessions {
		entry.index.Close()
		delete(s.sessions, id)
	}
	return nil
}

// evictLocked drops the least recently updated sessions until the registry
// fits maxSessions again.
func (s *InMemoryStore) evictLocked() {
	if s.maxSessions <= 0 {
		return
	}
	for len(s.sessions) > s.maxSessions {
		oldestID := ""
		var oldest time.Time
		for id, entry := range s.sessions {
			if id == s.current {
				continue
			}
			if oldestID == "" || entry.session.UpdatedAt.Before(oldest) {
				oldestID = id
				oldest = entry.session.UpdatedAt
			}
		}
		if oldestID == "" {
			return
		}
		s.sessions[oldestID].index.Close()
		delete(s.sessions, oldestID)
	}
}

func cloneSession(sess *Session) *Session {
	out := *sess
	out.Messages = append([]models.ChatMessage(nil), sess.Messages...)
	return &out
}
