package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayush/flatblog/internal/models"
)

func newTestStore(t *testing.T) *RecordStore {
	t.Helper()
	root := t.TempDir()
	return NewRecordStore(filepath.Join(root, "data"), filepath.Join(root, "uploads"))
}

func TestEnsureStorage_CreatesDefaults(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.EnsureStorage())

	for _, r := range []Resource{Posts, Users, ResetTokens} {
		raw, err := os.ReadFile(s.Path(r))
		require.NoError(t, err)
		assert.Equal(t, "[]\n", string(raw), r)
	}
	raw, err := os.ReadFile(s.Path(Admin))
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(raw))

	info, err := os.Stat(s.UploadDir())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestEnsureStorage_Idempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.EnsureStorage())
	require.True(t, s.SavePosts([]models.Post{{ID: "a", Title: "kept"}}))

	require.NoError(t, s.EnsureStorage())
	posts := s.LoadPosts()
	require.Len(t, posts, 1)
	assert.Equal(t, "kept", posts[0].Title)
}

func TestSaveLoad_RoundTripPreservesOrder(t *testing.T) {
	s := newTestStore(t)
	in := []models.Post{
		{ID: "3", Title: "Third", Content: "<b>c</b> & more", ImagePath: "uploads/c.png", PublishedAt: "2024-03-01 10:00:00", CreatedAt: "2024-03-01 10:00:00"},
		{ID: "1", Title: "Ação", Content: "a", ImagePath: "uploads/a.png", PublishedAt: "2024-01-01 10:00:00", CreatedAt: "2024-01-01 10:00:00"},
		{ID: "2", Title: "Second", Content: "b", ImagePath: "uploads/b.png", PublishedAt: "2024-02-01 10:00:00", CreatedAt: "2024-02-01 10:00:00"},
	}
	require.True(t, s.SavePosts(in))
	assert.Equal(t, in, s.LoadPosts())

	raw, err := os.ReadFile(s.Path(Posts))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "uploads/c.png", "slashes are not escaped")
	assert.Contains(t, string(raw), "<b>c</b> & more", "html is not escaped")
}

func TestSave_NilListWritesEmptyArray(t *testing.T) {
	s := newTestStore(t)
	require.True(t, s.SaveUsers(nil))

	raw, err := os.ReadFile(s.Path(Users))
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(raw))
}

func TestLoad_CorruptDocumentYieldsEmpty(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.EnsureStorage())
	require.NoError(t, os.WriteFile(s.Path(Posts), []byte(`[{"id": "x", "title": `), 0o644))
	require.NoError(t, os.WriteFile(s.Path(Admin), []byte(`not json`), 0o644))
	require.NoError(t, os.WriteFile(s.Path(Users), []byte("  \n"), 0o644))

	assert.Empty(t, s.LoadPosts())
	assert.NotNil(t, s.LoadPosts())
	assert.Equal(t, models.AdminOverride{}, s.LoadAdmin())
	assert.Empty(t, s.LoadUsers())
}

func TestLoad_ObjectWhereListExpected(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.EnsureStorage())
	require.NoError(t, os.WriteFile(s.Path(ResetTokens), []byte(`{"token": "abc"}`), 0o644))

	assert.Empty(t, s.LoadResetTokens())
}

func TestSave_FailureReturnsFalse(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "data")
	require.NoError(t, os.WriteFile(blocker, []byte("a file, not a directory"), 0o644))

	s := NewRecordStore(blocker, filepath.Join(root, "uploads"))
	assert.False(t, s.SavePosts([]models.Post{{ID: "a"}}))
	assert.Empty(t, s.LoadPosts())
}

func TestAdminOverride_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	assert.Equal(t, models.AdminOverride{}, s.LoadAdmin())

	override := models.AdminOverride{PasswordHash: "$2a$10$abc", UpdatedAt: "2024-05-01 12:00:00"}
	require.True(t, s.SaveAdmin(override))
	assert.Equal(t, override, s.LoadAdmin())
}

func TestWarnings_HealthyStorage(t *testing.T) {
	s := newTestStore(t)
	assert.Empty(t, s.Warnings())
}

func TestWarnings_MissingUploadDir(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "uploads")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	s := NewRecordStore(filepath.Join(root, "data"), blocker)
	warnings := s.Warnings()
	require.NotEmpty(t, warnings)
	assert.Contains(t, warnings[len(warnings)-1], "upload directory")
}

func TestLoadPosts_NeverSeesPartialWrite(t *testing.T) {
	s := newTestStore(t)
	posts := make([]models.Post, 200)
	for i := range posts {
		posts[i] = models.Post{
			ID:          fmt.Sprintf("post-%03d", i),
			Title:       fmt.Sprintf("Title %d", i),
			Content:     "Some longer body text so every rewrite takes a while.",
			PublishedAt: "2024-02-10 12:00:00",
		}
	}
	require.True(t, s.SavePosts(posts))

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				s.SavePosts(posts)
			}
		}
	}()

	short := 0
	for i := 0; i < 500; i++ {
		if len(s.LoadPosts()) != len(posts) {
			short++
		}
	}
	close(stop)
	wg.Wait()

	assert.Zero(t, short, "loads that saw fewer posts than were saved")
}
