package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "session:"

// Sessions maps opaque session IDs to identities. Get returns (nil, nil) for
// unknown or expired sessions.
type Sessions interface {
	Create(ctx context.Context, id *Identity) (string, error)
	Get(ctx context.Context, sessionID string) (*Identity, error)
	Delete(ctx context.Context, sessionID string) error
	Close() error
}

// SessionStoreType selects a Sessions backend.
type SessionStoreType string

const (
	SessionStoreRedis  SessionStoreType = "redis"
	SessionStoreBadger SessionStoreType = "badger"
	SessionStoreMemory SessionStoreType = "memory"
)

// SessionOptions configures OpenSessions.
type SessionOptions struct {
	Store SessionStoreType
	TTL   time.Duration
	// Path is the badger directory.
	Path string
	// Redis is required for the redis store.
	Redis *redis.Client
}

// OpenSessions builds the configured session backend.
func OpenSessions(opts SessionOptions) (Sessions, error) {
	switch opts.Store {
	case SessionStoreRedis:
		if opts.Redis == nil {
			return nil, errors.New("redis session store needs a client")
		}
		return NewRedisSessions(opts.Redis, opts.TTL), nil
	case SessionStoreBadger:
		return OpenBadgerSessions(opts.Path, opts.TTL)
	case SessionStoreMemory, "":
		return NewMemorySessions(opts.TTL), nil
	default:
		return nil, fmt.Errorf("unknown session store %q", opts.Store)
	}
}

func newSessionID() string {
	return uuid.New().String()
}

// RedisSessions keeps sessions in Redis with a per-key TTL.
type RedisSessions struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisSessions(rdb *redis.Client, ttl time.Duration) *RedisSessions {
	return &RedisSessions{rdb: rdb, ttl: ttl}
}

func (s *RedisSessions) Create(ctx context.Context, id *Identity) (string, error) {
	data, err := json.Marshal(id)
	if err != nil {
		return "", fmt.Errorf("marshal identity: %w", err)
	}
	sid := newSessionID()
	if err := s.rdb.Set(ctx, sessionKeyPrefix+sid, data, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return sid, nil
}

func (s *RedisSessions) Get(ctx context.Context, sessionID string) (*Identity, error) {
	val, err := s.rdb.Get(ctx, sessionKeyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	var id Identity
	if err := json.Unmarshal(val, &id); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &id, nil
}

func (s *RedisSessions) Delete(ctx context.Context, sessionID string) error {
	return s.rdb.Del(ctx, sessionKeyPrefix+sessionID).Err()
}

// Close is a no-op; the client belongs to the caller.
func (s *RedisSessions) Close() error { return nil }

// BadgerSessions keeps sessions in an embedded BadgerDB so they survive
// restarts without an external service.
type BadgerSessions struct {
	db     *badger.DB
	ttl    time.Duration
	ownsDB bool
}

// OpenBadgerSessions opens (or creates) a BadgerDB at path.
func OpenBadgerSessions(path string, ttl time.Duration) (*BadgerSessions, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db for sessions: %w", err)
	}
	return &BadgerSessions{db: db, ttl: ttl, ownsDB: true}, nil
}

// NewBadgerSessions wraps an already opened database.
func NewBadgerSessions(db *badger.DB, ttl time.Duration) *BadgerSessions {
	return &BadgerSessions{db: db, ttl: ttl}
}

func (s *BadgerSessions) Create(_ context.Context, id *Identity) (string, error) {
	data, err := json.Marshal(id)
	if err != nil {
		return "", fmt.Errorf("marshal identity: %w", err)
	}
	sid := newSessionID()
	err = s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(sessionKeyPrefix+sid), data).WithTTL(s.ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return "", fmt.Errorf("set session: %w", err)
	}
	return sid, nil
}

func (s *BadgerSessions) Get(_ context.Context, sessionID string) (*Identity, error) {
	var id Identity
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(sessionKeyPrefix + sessionID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &id)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &id, nil
}

func (s *BadgerSessions) Delete(_ context.Context, sessionID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(sessionKeyPrefix + sessionID))
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete session: %w", err)
		}
		return nil
	})
}

// Close closes the database when this store opened it.
func (s *BadgerSessions) Close() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

type memorySession struct {
	identity  Identity
	expiresAt time.Time
}

// MemorySessions is a process-local store for development and tests.
type MemorySessions struct {
	mu       sync.Mutex
	sessions map[string]memorySession
	ttl      time.Duration
	now      func() time.Time
}

func NewMemorySessions(ttl time.Duration) *MemorySessions {
	return &MemorySessions{
		sessions: make(map[string]memorySession),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *MemorySessions) Create(_ context.Context, id *Identity) (string, error) {
	sid := newSessionID()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sid] = memorySession{identity: *id, expiresAt: s.now().Add(s.ttl)}
	return sid, nil
}

func (s *MemorySessions) Get(_ context.Context, sessionID string) (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	if !s.now().Before(sess.expiresAt) {
		delete(s.sessions, sessionID)
		return nil, nil
	}
	id := sess.identity
	return &id, nil
}

func (s *MemorySessions) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

func (s *MemorySessions) Close() error { return nil }
