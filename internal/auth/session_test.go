package auth

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

func sampleIdentity() *Identity {
	return &Identity{
		LoggedIn:  true,
		LoginTime: "2024-03-10 12:00:00",
		Kind:      KindUser,
		ID:        "u1",
		Name:      "Maria",
		Username:  "maria",
		Nickname:  "mari",
	}
}

func exerciseSessions(t *testing.T, s Sessions) {
	t.Helper()
	ctx := context.Background()

	sid, err := s.Create(ctx, sampleIdentity())
	require.NoError(t, err)
	require.NotEmpty(t, sid)

	got, err := s.Get(ctx, sid)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, *sampleIdentity(), *got)

	missing, err := s.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, s.Delete(ctx, sid))
	gone, err := s.Get(ctx, sid)
	require.NoError(t, err)
	assert.Nil(t, gone)

	require.NoError(t, s.Delete(ctx, sid))
}

func TestMemorySessions(t *testing.T) {
	exerciseSessions(t, NewMemorySessions(time.Hour))
}

func TestMemorySessions_Expire(t *testing.T) {
	s := NewMemorySessions(time.Minute)
	clock := &fakeClock{t: time.Now()}
	s.now = clock.Now

	sid, err := s.Create(context.Background(), sampleIdentity())
	require.NoError(t, err)

	clock.Advance(time.Minute)
	got, err := s.Get(context.Background(), sid)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestBadgerSessions(t *testing.T) {
	s, err := OpenBadgerSessions(t.TempDir(), time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	exerciseSessions(t, s)
}

func TestBadgerSessions_InMemoryDB(t *testing.T) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := NewBadgerSessions(db, time.Hour)
	exerciseSessions(t, s)
	require.NoError(t, s.Close())
}

func TestOpenSessions(t *testing.T) {
	s, err := OpenSessions(SessionOptions{Store: SessionStoreMemory, TTL: time.Hour})
	require.NoError(t, err)
	assert.IsType(t, &MemorySessions{}, s)

	_, err = OpenSessions(SessionOptions{Store: SessionStoreRedis, TTL: time.Hour})
	assert.Error(t, err)

	_, err = OpenSessions(SessionOptions{Store: "etcd"})
	assert.Error(t, err)

	b, err := OpenSessions(SessionOptions{Store: SessionStoreBadger, Path: t.TempDir(), TTL: time.Hour})
	require.NoError(t, err)
	assert.IsType(t, &BadgerSessions{}, b)
	require.NoError(t, b.Close())
}
