package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayush/flatblog/internal/models"
	"github.com/ayush/flatblog/internal/store"
	"github.com/ayush/flatblog/internal/validation"
)

func newTestService(t *testing.T, admin AdminCredentials) (*Service, *store.RecordStore, *fakeClock) {
	t.Helper()
	tokens, s, clock := newTestTokens(t)
	svc := NewService(s, tokens, ServiceConfig{
		Admin:    admin,
		BaseURL:  "http://blog.test/",
		ResetTTL: 30 * time.Minute,
		Location: time.UTC,
	})
	svc.now = clock.Now
	return svc, s, clock
}

func validRegistration() models.RegisterRequest {
	return models.RegisterRequest{
		Name:     "Maria Silva",
		Username: "  Maria.S ",
		Nickname: "mari",
		Password: "secret1",
		Email:    "maria@example.com",
		Whatsapp: "+55 (11) 91234-5678",
	}
}

func TestAttemptLogin_AdminPlainPassword(t *testing.T) {
	svc, _, _ := newTestService(t, AdminCredentials{Username: "admin", Password: "admin123"})
	ctx := context.Background()

	id, ok := svc.AttemptLogin(ctx, "admin", "admin123")
	require.True(t, ok)
	assert.Equal(t, KindAdmin, id.Kind)
	assert.Equal(t, "admin", id.Username)
	assert.True(t, id.LoggedIn)
	assert.Equal(t, "2024-03-10 12:00:00", id.LoginTime)

	_, ok = svc.AttemptLogin(ctx, "admin", "wrong")
	assert.False(t, ok)
	_, ok = svc.AttemptLogin(ctx, "Admin", "admin123")
	assert.False(t, ok, "admin username compare is exact")
}

func TestAttemptLogin_AdminHashAndOverride(t *testing.T) {
	hash, err := HashPassword("hashed-pass")
	require.NoError(t, err)
	svc, s, _ := newTestService(t, AdminCredentials{Username: "admin", Password: "plain", PasswordHash: hash})
	ctx := context.Background()

	_, ok := svc.AttemptLogin(ctx, "admin", "plain")
	assert.False(t, ok, "configured hash wins over plaintext")
	_, ok = svc.AttemptLogin(ctx, "admin", "hashed-pass")
	assert.True(t, ok)

	override, err := HashPassword("override-pass")
	require.NoError(t, err)
	require.True(t, s.SaveAdmin(models.AdminOverride{PasswordHash: override}))

	_, ok = svc.AttemptLogin(ctx, "admin", "hashed-pass")
	assert.False(t, ok)
	_, ok = svc.AttemptLogin(ctx, "admin", "override-pass")
	assert.True(t, ok)
}

func TestAttemptLogin_AcceptsPHPStyleHash(t *testing.T) {
	hash, err := HashPassword("secret1")
	require.NoError(t, err)
	phpHash := "$2y$" + hash[4:]
	svc, s, _ := newTestService(t, AdminCredentials{Username: "admin", Password: "x"})
	require.True(t, s.SaveUsers([]models.User{{ID: "u1", Username: "maria", PasswordHash: phpHash}}))

	_, ok := svc.AttemptLogin(context.Background(), "maria", "secret1")
	assert.True(t, ok)
}

func TestRegisterThenLogin(t *testing.T) {
	svc, s, _ := newTestService(t, AdminCredentials{Username: "admin", Password: "admin123"})
	ctx := context.Background()

	user, err := svc.Register(ctx, validRegistration())
	require.NoError(t, err)
	assert.Equal(t, "maria.s", user.Username)
	assert.NotEmpty(t, user.ID)
	assert.NotEqual(t, "secret1", user.PasswordHash)
	assert.Equal(t, "2024-03-10 12:00:00", user.CreatedAt)
	require.Len(t, s.LoadUsers(), 1)

	id, ok := svc.AttemptLogin(ctx, "MARIA.S", "secret1")
	require.True(t, ok)
	assert.Equal(t, KindUser, id.Kind)
	assert.Equal(t, user.ID, id.ID)
	assert.Equal(t, "mari", id.Nickname)

	_, ok = svc.AttemptLogin(ctx, "maria.s", "wrong-pass")
	assert.False(t, ok)
}

func TestRegister_Rejections(t *testing.T) {
	svc, _, _ := newTestService(t, AdminCredentials{Username: "admin", Password: "admin123"})
	ctx := context.Background()
	_, err := svc.Register(ctx, validRegistration())
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*models.RegisterRequest)
		want   []string
	}{
		{
			name:   "duplicate username ignores case",
			mutate: func(r *models.RegisterRequest) { r.Username = "MARIA.s" },
			want:   []string{validation.MsgUsernameTaken},
		},
		{
			name:   "admin name is reserved",
			mutate: func(r *models.RegisterRequest) { r.Username = "Admin" },
			want:   []string{validation.MsgUsernameTaken},
		},
		{
			name:   "short password",
			mutate: func(r *models.RegisterRequest) { r.Username = "joao"; r.Password = "123" },
			want:   []string{"Password must have at least 6 characters."},
		},
		{
			name:   "blank name",
			mutate: func(r *models.RegisterRequest) { r.Username = "joao"; r.Name = "   " },
			want:   []string{"Name is required."},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRegistration()
			tt.mutate(&req)
			_, err := svc.Register(ctx, req)
			require.Error(t, err)
			assert.Equal(t, tt.want, validation.Messages(err))
		})
	}
}

func TestRequestReset(t *testing.T) {
	svc, s, _ := newTestService(t, AdminCredentials{Username: "admin", Password: "admin123"})
	ctx := context.Background()
	user, err := svc.Register(ctx, validRegistration())
	require.NoError(t, err)

	link, err := svc.RequestReset(ctx, " Admin ")
	require.NoError(t, err)
	assert.Equal(t, "http://blog.test/reset?token="+link.Token, link.Link)

	_, err = svc.RequestReset(ctx, "maria.s")
	require.NoError(t, err)

	tokens := s.LoadResetTokens()
	require.Len(t, tokens, 2)
	assert.Equal(t, "admin", tokens[0].ID)
	assert.Equal(t, user.ID, tokens[1].ID)

	_, err = svc.RequestReset(ctx, "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = svc.RequestReset(ctx, "")
	assert.Equal(t, []string{"Username is required."}, validation.Messages(err))
}

func TestResetPassword_Admin(t *testing.T) {
	svc, s, _ := newTestService(t, AdminCredentials{Username: "admin", Password: "admin123"})
	ctx := context.Background()

	link, err := svc.RequestReset(ctx, "admin")
	require.NoError(t, err)

	err = svc.ResetPassword(ctx, models.ResetRequest{Token: link.Token, Password: "newpass", ConfirmPassword: "other"})
	assert.Equal(t, []string{"Passwords do not match."}, validation.Messages(err))

	require.NoError(t, svc.ResetPassword(ctx, models.ResetRequest{Token: link.Token, Password: "newpass", ConfirmPassword: "newpass"}))
	assert.NotEmpty(t, s.LoadAdmin().PasswordHash)
	assert.Equal(t, "2024-03-10 12:00:00", s.LoadAdmin().UpdatedAt)

	_, ok := svc.AttemptLogin(ctx, "admin", "admin123")
	assert.False(t, ok)
	_, ok = svc.AttemptLogin(ctx, "admin", "newpass")
	assert.True(t, ok)

	err = svc.ResetPassword(ctx, models.ResetRequest{Token: link.Token, Password: "again1", ConfirmPassword: "again1"})
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestResetPassword_UserAndExpiry(t *testing.T) {
	svc, s, clock := newTestService(t, AdminCredentials{Username: "admin", Password: "admin123"})
	ctx := context.Background()
	_, err := svc.Register(ctx, validRegistration())
	require.NoError(t, err)

	link, err := svc.RequestReset(ctx, "maria.s")
	require.NoError(t, err)
	require.NoError(t, svc.ResetPassword(ctx, models.ResetRequest{Token: link.Token, Password: "changed", ConfirmPassword: "changed"}))

	users := s.LoadUsers()
	require.Len(t, users, 1)
	assert.Equal(t, "2024-03-10 12:00:00", users[0].UpdatedAt)
	_, ok := svc.AttemptLogin(ctx, "maria.s", "changed")
	assert.True(t, ok)

	expired, err := svc.RequestReset(ctx, "maria.s")
	require.NoError(t, err)
	clock.Advance(31 * time.Minute)
	_, err = svc.CheckResetToken(expired.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordLength_SameRuleForRegisterAndReset(t *testing.T) {
	svc, _, _ := newTestService(t, AdminCredentials{Username: "admin", Password: "admin123"})
	ctx := context.Background()
	const tooShort = "ééé" // 3 characters, 6 bytes
	want := []string{"Password must have at least 6 characters."}

	req := validRegistration()
	req.Password = tooShort
	_, err := svc.Register(ctx, req)
	assert.Equal(t, want, validation.Messages(err))

	link, err := svc.RequestReset(ctx, "admin")
	require.NoError(t, err)
	err = svc.ResetPassword(ctx, models.ResetRequest{Token: link.Token, Password: tooShort, ConfirmPassword: tooShort})
	assert.Equal(t, want, validation.Messages(err))

	err = svc.ResetPassword(ctx, models.ResetRequest{Token: link.Token, Password: "ab", ConfirmPassword: "cd"})
	assert.Equal(t, append(want, "Passwords do not match."), validation.Messages(err))

	require.NoError(t, svc.ResetPassword(ctx, models.ResetRequest{Token: link.Token, Password: "éééééé", ConfirmPassword: "éééééé"}))
	_, ok := svc.AttemptLogin(ctx, "admin", "éééééé")
	assert.True(t, ok)
}
