package store

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/ayush/flatblog/internal/logging"
	"github.com/ayush/flatblog/internal/metrics"
	"github.com/ayush/flatblog/internal/models"
)

// Resource names one JSON document of the record store.
type Resource string

const (
	Posts       Resource = "posts"
	Users       Resource = "users"
	ResetTokens Resource = "reset_tokens"
	Admin       Resource = "admin"
)

// resources lists every document with the content written when it is missing.
var resources = []struct {
	name     Resource
	defaults string
}{
	{Posts, "[]\n"},
	{Users, "[]\n"},
	{ResetTokens, "[]\n"},
	{Admin, "{}\n"},
}

// ErrWriteFailed is what services return when Save reports false.
var ErrWriteFailed = errors.New("storage write failed")

// RecordStore persists each resource as a whole JSON document under dataDir.
// Every Load re-reads the file; there is no cache. Writes are exclusive but a
// Load/Save pair is not atomic, so concurrent editors are last-writer-wins.
type RecordStore struct {
	dataDir   string
	uploadDir string
}

func NewRecordStore(dataDir, uploadDir string) *RecordStore {
	return &RecordStore{dataDir: dataDir, uploadDir: uploadDir}
}

// Path returns the file backing r.
func (s *RecordStore) Path(r Resource) string {
	return filepath.Join(s.dataDir, string(r)+".json")
}

// UploadDir returns the directory images are stored in.
func (s *RecordStore) UploadDir() string {
	return s.uploadDir
}

// EnsureStorage creates the data and upload directories and any missing
// document. Existing files are left alone.
func (s *RecordStore) EnsureStorage() error {
	for _, dir := range []string{s.dataDir, s.uploadDir} {
		if err := os.MkdirAll(dir, 0o775); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	for _, res := range resources {
		path := s.Path(res.name)
		if _, err := os.Stat(path); err == nil {
			continue
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("stat %s: %w", path, err)
		}
		if err := writeLocked(path, []byte(res.defaults)); err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
	}
	return nil
}

// Warnings reports, as user-facing messages, every directory or document that
// cannot be written.
func (s *RecordStore) Warnings() []string {
	if err := s.EnsureStorage(); err != nil {
		logging.Warn().Err(err).Msg("record store: ensure storage")
	}

	var warnings []string
	if !dirWritable(s.dataDir) {
		warnings = append(warnings, fmt.Sprintf("The data directory %s is not writable.", s.dataDir))
	}
	for _, res := range resources {
		if !fileWritable(s.Path(res.name)) {
			warnings = append(warnings, fmt.Sprintf("The file %s is not writable.", s.Path(res.name)))
		}
	}
	if !dirWritable(s.uploadDir) {
		warnings = append(warnings, fmt.Sprintf("The upload directory %s is not writable.", s.uploadDir))
	}
	return warnings
}

// Load decodes r into dst and reports whether a document was decoded. A
// missing, empty or undecodable document yields false; the decode error is
// logged, not returned.
func (s *RecordStore) Load(r Resource, dst any) bool {
	if err := s.EnsureStorage(); err != nil {
		logging.Warn().Err(err).Msg("record store: ensure storage")
	}

	raw, err := readLocked(s.Path(r))
	if err != nil {
		logging.Warn().Err(err).Str("resource", string(r)).Msg("record store: read failed")
		return false
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		logging.Warn().Err(err).Str("resource", string(r)).Msg("record store: undecodable document, using empty value")
		return false
	}
	return true
}

// Save encodes v and rewrites the whole document under an exclusive lock.
// It reports false on any failure.
func (s *RecordStore) Save(r Resource, v any) bool {
	if err := s.EnsureStorage(); err != nil {
		logging.Warn().Err(err).Msg("record store: ensure storage")
	}

	data, err := json.MarshalIndentWithOption(v, "", "    ", json.DisableHTMLEscape())
	if err != nil {
		logging.Error().Err(err).Str("resource", string(r)).Msg("record store: encode failed")
		metrics.RecordWrite(string(r), false)
		return false
	}
	data = append(data, '\n')

	if err := writeLocked(s.Path(r), data); err != nil {
		logging.Error().Err(err).Str("resource", string(r)).Msg("record store: write failed")
		metrics.RecordWrite(string(r), false)
		return false
	}
	metrics.RecordWrite(string(r), true)
	return true
}

func (s *RecordStore) LoadPosts() []models.Post {
	return loadList[models.Post](s, Posts)
}

func (s *RecordStore) SavePosts(posts []models.Post) bool {
	return s.Save(Posts, nonNil(posts))
}

func (s *RecordStore) LoadUsers() []models.User {
	return loadList[models.User](s, Users)
}

func (s *RecordStore) SaveUsers(users []models.User) bool {
	return s.Save(Users, nonNil(users))
}

func (s *RecordStore) LoadResetTokens() []models.ResetToken {
	return loadList[models.ResetToken](s, ResetTokens)
}

func (s *RecordStore) SaveResetTokens(tokens []models.ResetToken) bool {
	return s.Save(ResetTokens, nonNil(tokens))
}

func (s *RecordStore) LoadAdmin() models.AdminOverride {
	var admin models.AdminOverride
	if !s.Load(Admin, &admin) {
		return models.AdminOverride{}
	}
	return admin
}

func (s *RecordStore) SaveAdmin(admin models.AdminOverride) bool {
	return s.Save(Admin, admin)
}

// loadList never returns a partially decoded slice.
func loadList[T any](s *RecordStore, r Resource) []T {
	var items []T
	if !s.Load(r, &items) {
		return []T{}
	}
	return nonNil(items)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func dirWritable(dir string) bool {
	f, err := os.CreateTemp(dir, ".writable-*")
	if err != nil {
		return false
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return true
}

func fileWritable(path string) bool {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return false
	}
	f.Close()
	return true
}
