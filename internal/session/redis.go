package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"sourcefinder/config"
	"sourcefinder/models"
)

const (
	sessionKeyPrefix = "sf:session:"
	sessionsZSetKey  = "sf:sessions"
	currentKey       = "sf:current"
)

// RedisStore persists session transcripts as JSON documents with a retention
// TTL, plus a sorted set for recency listing and a key for the current
// session. The evidence search index stays in process memory and is rebuilt
// from the transcript when a session is first searched after a restart.
//
// Mutations to one session id serialize on a per-id lock so a concurrent
// append cannot overwrite another's read-modify-write; the current pointer
// has its own lock for the resolve-or-create path.
type RedisStore struct {
	client    *redis.Client
	retention time.Duration

	mu      sync.Mutex
	indexes map[string]*evidenceIndex
	locks   map[string]*sync.Mutex
	curMu   sync.Mutex
}

func NewRedisStore(cfg config.RedisConfig, retention time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx := context.Background()
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisStore{
		client:    client,
		retention: retention,
		indexes:   make(map[string]*evidenceIndex),
		locks:     make(map[string]*sync.Mutex),
	}, nil
}

func sessionKey(id string) string { return sessionKeyPrefix + id }

// lockSession returns the mutex serializing mutations to one session id.
func (s *RedisStore) lockSession(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

func (s *RedisStore) Resolve(ctx context.Context, id string) (*Session, error) {
	if id != "" {
		sess, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := s.client.Set(ctx, currentKey, id, 0).Err(); err != nil {
			return nil, err
		}
		return sess, nil
	}

	s.curMu.Lock()
	defer s.curMu.Unlock()
	current, err := s.client.Get(ctx, currentKey).Result()
	if err == nil && current != "" {
		sess, err := s.Get(ctx, current)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		// Current pointer went stale; fall through and start fresh.
	} else if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	return s.create(ctx)
}

func (s *RedisStore) Create(ctx context.Context) (*Session, error) {
	s.curMu.Lock()
	defer s.curMu.Unlock()
	return s.create(ctx)
}

func (s *RedisStore) create(ctx context.Context) (*Session, error) {
	now := time.Now()
	sess := &Session{
		ID:        uuid.NewString(),
		Title:     defaultTitle,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	if err := s.client.Set(ctx, currentKey, sess.ID, 0).Err(); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	val, err := s.client.Get(ctx, sessionKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal([]byte(val), &sess); err != nil {
		return nil, fmt.Errorf("corrupt session document %s: %w", id, err)
	}
	return &sess, nil
}

func (s *RedisStore) Append(ctx context.Context, id string, msg models.ChatMessage) error {
	lock := s.lockSession(id)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if msg.Role == models.RoleUser && sess.Title == defaultTitle {
		sess.Title = TitleFor(msg.Content)
	}
	sess.Messages = append(sess.Messages, msg)
	sess.UpdatedAt = time.Now()
	if err := s.save(ctx, sess); err != nil {
		return err
	}
	if len(msg.Sources) == 0 {
		return nil
	}
	idx, err := s.indexFor(sess)
	if err != nil {
		return err
	}
	return idx.Add(msg.Sources)
}

func (s *RedisStore) List(ctx context.Context) ([]Summary, error) {
	ids, err := s.client.ZRevRange(ctx, sessionsZSetKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(ids))
	for _, id := range ids {
		sess, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			// Expired document; drop the dangling zset member.
			s.client.ZRem(ctx, sessionsZSetKey, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, Summary{ID: sess.ID, Title: sess.Title, UpdatedAt: sess.UpdatedAt})
	}
	return out, nil
}

func (s *RedisStore) Current(ctx context.Context) (string, error) {
	current, err := s.client.Get(ctx, currentKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if exists, err := s.client.Exists(ctx, sessionKey(current)).Result(); err != nil || exists == 0 {
		return "", err
	}
	return current, nil
}

func (s *RedisStore) Sources(ctx context.Context, id string) ([]models.SourceRecord, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	var all []models.SourceRecord
	for _, msg := range sess.Messages {
		all = append(all, msg.Sources...)
	}
	return dedupeByLink(all), nil
}

func (s *RedisStore) Search(ctx context.Context, id, query string, k int) ([]models.SourceRecord, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	idx, err := s.indexFor(sess)
	if err != nil {
		return nil, err
	}
	return idx.Search(query, k)
}

// Sweep removes sessions last active before cutoff. Redis TTLs already expire
// the documents; this trims the recency zset and the local indexes.
func (s *RedisStore) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	max := fmt.Sprintf("%d", cutoff.Unix())
	stale, err := s.client.ZRangeByScore(ctx, sessionsZSetKey, &redis.ZRangeBy{Min: "-inf", Max: max}).Result()
	if err != nil {
		return 0, err
	}
	current, _ := s.Current(ctx)
	removed := 0
	for _, id := range stale {
		if id == current {
			continue
		}
		if err := s.client.Del(ctx, sessionKey(id)).Err(); err != nil {
			return removed, err
		}
		s.client.ZRem(ctx, sessionsZSetKey, id)
		s.dropIndex(id)
		removed++
	}
	return removed, nil
}

func (s *RedisStore) Close() error {
	s.mu.Lock()
	for id, idx := range s.indexes {
		idx.Close()
		delete(s.indexes, id)
	}
	s.locks = make(map[string]*sync.Mutex)
	s.mu.Unlock()
	return s.client.Close()
}

func (s *RedisStore) save(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, sessionKey(sess.ID), data, s.retention).Err(); err != nil {
		return err
	}
	return s.client.ZAdd(ctx, sessionsZSetKey, redis.Z{
		Score:  float64(sess.UpdatedAt.Unix()),
		Member: sess.ID,
	}).Err()
}

func (s *RedisStore) indexFor(sess *Session) (*evidenceIndex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx, ok := s.indexes[sess.ID]; ok {
		return idx, nil
	}
	idx, err := rebuildIndex(sess.Messages)
	if err != nil {
		return nil, err
	}
	s.indexes[sess.ID] = idx
	return idx, nil
}

func (s *RedisStore) dropIndex(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx, ok := s.indexes[id]; ok {
		idx.Close()
		delete(s.indexes, id)
	}
	delete(s.locks, id)
}
