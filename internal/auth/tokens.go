package auth

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/ayush/flatblog/internal/logging"
	"github.com/ayush/flatblog/internal/metrics"
	"github.com/ayush/flatblog/internal/models"
	"github.com/ayush/flatblog/internal/store"
)

// IssuedToken is what Create hands back to the caller.
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}

// ResetTokens issues, looks up and consumes single-use password reset tokens
// kept in reset_tokens.json. A token is valid while now < expires_at.
type ResetTokens struct {
	store *store.RecordStore
	loc   *time.Location
	now   func() time.Time
}

func NewResetTokens(s *store.RecordStore, loc *time.Location) *ResetTokens {
	if loc == nil {
		loc = time.Local
	}
	return &ResetTokens{store: s, loc: loc, now: time.Now}
}

// SetClock replaces the time source.
func (t *ResetTokens) SetClock(now func() time.Time) {
	t.now = now
}

// Create issues a token for (kind, id), dropping any earlier token for the same
// identity. It returns false when the token list cannot be persisted.
func (t *ResetTokens) Create(kind Kind, id string, ttl time.Duration) (*IssuedToken, bool) {
	token, err := randomToken()
	if err != nil {
		logging.Error().Err(err).Msg("generate reset token")
		return nil, false
	}
	now := t.now()
	expiresAt := now.Add(ttl)

	existing := t.store.LoadResetTokens()
	tokens := make([]models.ResetToken, 0, len(existing)+1)
	for _, item := range existing {
		if item.Type == string(kind) && item.ID == id {
			continue
		}
		tokens = append(tokens, item)
	}
	tokens = append(tokens, models.ResetToken{
		Token:     token,
		Type:      string(kind),
		ID:        id,
		ExpiresAt: expiresAt.Unix(),
		CreatedAt: models.FormatTimestamp(now.In(t.loc)),
	})

	if !t.store.SaveResetTokens(tokens) {
		return nil, false
	}
	metrics.RecordResetTokens("issued", 1)
	return &IssuedToken{Token: token, ExpiresAt: time.Unix(expiresAt.Unix(), 0).In(t.loc)}, true
}

// Find purges expired tokens and returns the live record matching token, or
// nil. The purged list is only written back when something was removed.
func (t *ResetTokens) Find(token string) *models.ResetToken {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	now := t.now().Unix()

	tokens := t.store.LoadResetTokens()
	valid := make([]models.ResetToken, 0, len(tokens))
	var found *models.ResetToken
	for _, item := range tokens {
		if item.ExpiresAt <= now {
			continue
		}
		valid = append(valid, item)
		if item.Token == token {
			match := item
			found = &match
		}
	}

	if purged := len(tokens) - len(valid); purged > 0 {
		if t.store.SaveResetTokens(valid) {
			metrics.RecordResetTokens("purged", purged)
		}
	}
	return found
}

// Consume removes the first record matching token. It reports false when no
// record matched or the remaining list could not be saved.
func (t *ResetTokens) Consume(token string) bool {
	tokens := t.store.LoadResetTokens()
	remaining := make([]models.ResetToken, 0, len(tokens))
	consumed := false
	for _, item := range tokens {
		if !consumed && item.Token == token {
			consumed = true
			continue
		}
		remaining = append(remaining, item)
	}
	if !consumed {
		return false
	}
	if !t.store.SaveResetTokens(remaining) {
		return false
	}
	metrics.RecordResetTokens("consumed", 1)
	return true
}

func randomToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
