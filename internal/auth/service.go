package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ayush/flatblog/internal/logging"
	"github.com/ayush/flatblog/internal/metrics"
	"github.com/ayush/flatblog/internal/models"
	"github.com/ayush/flatblog/internal/store"
	"github.com/ayush/flatblog/internal/validation"
)

var (
	ErrStorage      = store.ErrWriteFailed
	ErrUserNotFound = errors.New("user not found")
	ErrInvalidToken = errors.New("invalid or expired token")
)

// AdminID is the identity ID of the fallback admin in reset tokens.
const AdminID = "admin"

// AdminCredentials is the statically configured fallback admin. PasswordHash is
// preferred over the plaintext Password when both are set.
type AdminCredentials struct {
	Username     string
	Password     string
	PasswordHash string
}

// ServiceConfig configures a Service.
type ServiceConfig struct {
	Admin    AdminCredentials
	BaseURL  string
	ResetTTL time.Duration
	Location *time.Location
}

// Service implements login, registration and the password reset flow on top
// of the record store.
type Service struct {
	store  *store.RecordStore
	tokens *ResetTokens
	cfg    ServiceConfig
	now    func() time.Time
}

func NewService(s *store.RecordStore, tokens *ResetTokens, cfg ServiceConfig) *Service {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = 30 * time.Minute
	}
	return &Service{store: s, tokens: tokens, cfg: cfg, now: time.Now}
}

// NormalizeUsername lowercases and trims a username.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func findUser(users []models.User, username string) int {
	needle := NormalizeUsername(username)
	if needle == "" {
		return -1
	}
	for i := range users {
		if NormalizeUsername(users[i].Username) == needle {
			return i
		}
	}
	return -1
}

func (s *Service) timestamp() string {
	return models.FormatTimestamp(s.now().In(s.cfg.Location))
}

// AttemptLogin checks username and password against registered users first
// and then against the fallback admin. Failures are never distinguished.
func (s *Service) AttemptLogin(ctx context.Context, username, password string) (*Identity, bool) {
	users := s.store.LoadUsers()
	if i := findUser(users, username); i >= 0 {
		u := users[i]
		if CheckPassword(u.PasswordHash, password) {
			metrics.RecordLogin(string(KindUser))
			logging.Ctx(ctx).Info().Str("username", u.Username).Msg("user logged in")
			return &Identity{
				LoggedIn:  true,
				LoginTime: s.timestamp(),
				Kind:      KindUser,
				ID:        u.ID,
				Name:      u.Name,
				Username:  u.Username,
				Nickname:  u.Nickname,
			}, true
		}
	}

	// Both halves are evaluated before either result is used.
	userOK := subtle.ConstantTimeCompare([]byte(strings.TrimSpace(username)), []byte(s.cfg.Admin.Username)) == 1
	passOK := s.checkAdminPassword(password)
	if !userOK || !passOK {
		metrics.RecordLogin("")
		logging.Ctx(ctx).Warn().Msg("failed login attempt")
		return nil, false
	}

	metrics.RecordLogin(string(KindAdmin))
	logging.Ctx(ctx).Info().Msg("admin logged in")
	name := s.cfg.Admin.Username
	return &Identity{
		LoggedIn:  true,
		LoginTime: s.timestamp(),
		Kind:      KindAdmin,
		ID:        AdminID,
		Name:      name,
		Username:  name,
		Nickname:  name,
	}, true
}

func (s *Service) checkAdminPassword(password string) bool {
	if override := s.store.LoadAdmin(); override.PasswordHash != "" {
		return CheckPassword(override.PasswordHash, password)
	}
	if s.cfg.Admin.PasswordHash != "" {
		return CheckPassword(s.cfg.Admin.PasswordHash, password)
	}
	if s.cfg.Admin.Password != "" {
		return subtle.ConstantTimeCompare([]byte(s.cfg.Admin.Password), []byte(password)) == 1
	}
	return false
}

// Register validates req and appends a new user. Validation problems come
// back as a *validation.FormError.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Username = NormalizeUsername(req.Username)
	req.Nickname = strings.TrimSpace(req.Nickname)
	req.Email = strings.TrimSpace(req.Email)
	req.Whatsapp = strings.TrimSpace(req.Whatsapp)

	fe := validation.ValidateStruct(req)
	if fe == nil {
		fe = &validation.FormError{}
	}
	if !fe.HasField("username") && req.Username == NormalizeUsername(s.cfg.Admin.Username) {
		fe.Add(validation.MsgUsernameTaken)
	}

	users := s.store.LoadUsers()
	if len(fe.Messages) == 0 && findUser(users, req.Username) >= 0 {
		fe.Add(validation.MsgUsernameTaken)
	}
	if err := fe.Err(); err != nil {
		return nil, err
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := models.User{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Username:     req.Username,
		Nickname:     req.Nickname,
		Email:        req.Email,
		Whatsapp:     req.Whatsapp,
		PasswordHash: hash,
		CreatedAt:    s.timestamp(),
	}
	users = append(users, user)
	if !s.store.SaveUsers(users) {
		return nil, ErrStorage
	}
	logging.Ctx(ctx).Info().Str("username", user.Username).Msg("user registered")
	return &user, nil
}

// ResetLink is a freshly issued reset token and the link that redeems it.
type ResetLink struct {
	Token     string    `json:"token"`
	Link      string    `json:"link"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RequestReset issues a reset token for the admin or the registered user
// named username.
func (s *Service) RequestReset(ctx context.Context, username string) (*ResetLink, error) {
	normalized := NormalizeUsername(username)
	if normalized == "" {
		return nil, &validation.FormError{Messages: []string{"Username is required."}}
	}

	var kind Kind
	var id string
	if normalized == NormalizeUsername(s.cfg.Admin.Username) {
		kind, id = KindAdmin, AdminID
	} else {
		users := s.store.LoadUsers()
		if i := findUser(users, normalized); i >= 0 {
			kind, id = KindUser, users[i].ID
		}
	}
	if id == "" {
		return nil, ErrUserNotFound
	}

	issued, ok := s.tokens.Create(kind, id, s.cfg.ResetTTL)
	if !ok {
		return nil, ErrStorage
	}
	logging.Ctx(ctx).Info().Str("kind", string(kind)).Msg("reset token issued")
	return &ResetLink{
		Token:     issued.Token,
		Link:      s.resetURL(issued.Token),
		ExpiresAt: issued.ExpiresAt,
	}, nil
}

func (s *Service) resetURL(token string) string {
	base := strings.TrimRight(s.cfg.BaseURL, "/")
	return base + "/reset?token=" + url.QueryEscape(token)
}

// CheckResetToken returns the live record for token or ErrInvalidToken.
func (s *Service) CheckResetToken(token string) (*models.ResetToken, error) {
	record := s.tokens.Find(token)
	if record == nil {
		return nil, ErrInvalidToken
	}
	return record, nil
}

// ResetPassword sets a new password for the identity bound to token and
// consumes the token.
func (s *Service) ResetPassword(ctx context.Context, req models.ResetRequest) error {
	record, err := s.CheckResetToken(req.Token)
	if err != nil {
		return err
	}

	fe := validation.ValidateStruct(req)
	if fe == nil {
		fe = &validation.FormError{}
	}
	if req.Password != req.ConfirmPassword {
		fe.Add("Passwords do not match.")
	}
	if err := fe.Err(); err != nil {
		return err
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	switch {
	case record.Type == string(KindAdmin) && record.ID == AdminID:
		override := models.AdminOverride{PasswordHash: hash, UpdatedAt: s.timestamp()}
		if !s.store.SaveAdmin(override) {
			return ErrStorage
		}
	case record.Type == string(KindUser):
		users := s.store.LoadUsers()
		updated := false
		for i := range users {
			if users[i].ID == record.ID {
				users[i].PasswordHash = hash
				users[i].UpdatedAt = s.timestamp()
				updated = true
				break
			}
		}
		if !updated {
			return ErrUserNotFound
		}
		if !s.store.SaveUsers(users) {
			return ErrStorage
		}
	default:
		return ErrInvalidToken
	}

	s.tokens.Consume(record.Token)
	logging.Ctx(ctx).Info().Str("kind", record.Type).Msg("password reset")
	return nil
}
