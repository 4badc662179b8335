package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCookie = "blog_session"

func newTestHandler(t *testing.T) (*Handler, *MemorySessions) {
	t.Helper()
	svc, _, _ := newTestService(t, AdminCredentials{Username: "admin", Password: "admin123"})
	sessions := NewMemorySessions(time.Hour)
	return NewHandler(svc, sessions, CookieConfig{Name: testCookie, TTL: time.Hour}), sessions
}

func doJSON(ctx context.Context, h http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequestWithContext(ctx, method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHandler_LoginSetsCookie(t *testing.T) {
	h, sessions := newTestHandler(t)

	rec := doJSON(context.Background(), h.Login, http.MethodPost, "/api/auth/login", `{"username":"admin","password":"admin123"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, testCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	id, err := sessions.Get(context.Background(), cookies[0].Value)
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, KindAdmin, id.Kind)
}

func TestHandler_LoginFailureIsGeneric(t *testing.T) {
	h, _ := newTestHandler(t)

	wrongPass := doJSON(context.Background(), h.Login, http.MethodPost, "/api/auth/login", `{"username":"admin","password":"nope"}`)
	unknown := doJSON(context.Background(), h.Login, http.MethodPost, "/api/auth/login", `{"username":"ghost","password":"nope"}`)

	assert.Equal(t, http.StatusUnauthorized, wrongPass.Code)
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, wrongPass.Body.String(), unknown.Body.String())
	assert.Empty(t, wrongPass.Result().Cookies())
}

func TestHandler_LoginBadBody(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doJSON(context.Background(), h.Login, http.MethodPost, "/api/auth/login", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_AlreadyLoggedInRedirects(t *testing.T) {
	h, _ := newTestHandler(t)
	ctx := WithIdentity(context.Background(), sampleIdentity())

	for name, fn := range map[string]http.HandlerFunc{
		"login":    h.Login,
		"register": h.Register,
		"forgot":   h.Forgot,
		"reset":    h.Reset,
	} {
		t.Run(name, func(t *testing.T) {
			rec := doJSON(ctx, fn, http.MethodPost, "/", `{}`)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, AdminHome, decodeBody(t, rec)["redirect"])
		})
	}
}

func TestHandler_LogoutClearsSession(t *testing.T) {
	h, sessions := newTestHandler(t)
	sid, err := sessions.Create(context.Background(), sampleIdentity())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: testCookie, Value: sid})
	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)

	id, err := sessions.Get(context.Background(), sid)
	require.NoError(t, err)
	assert.Nil(t, id)
}

func TestHandler_Me(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doJSON(context.Background(), h.Me, http.MethodGet, "/api/auth/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(WithIdentity(context.Background(), sampleIdentity()), h.Me, http.MethodGet, "/api/auth/me", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "maria", decodeBody(t, rec)["username"])
}

func TestHandler_RegisterValidation(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doJSON(context.Background(), h.Register, http.MethodPost, "/api/auth/register", `{"username":"ab"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, decodeBody(t, rec)["errors"])

	body := `{"name":"Maria","username":"maria","nickname":"mari","password":"secret1","email":"m@example.com","whatsapp":"11 99999-0000"}`
	rec = doJSON(context.Background(), h.Register, http.MethodPost, "/api/auth/register", body)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password_hash")
}

func TestHandler_ForgotAndReset(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doJSON(context.Background(), h.Forgot, http.MethodPost, "/api/auth/forgot", `{"username":"ghost"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(context.Background(), h.Forgot, http.MethodPost, "/api/auth/forgot", `{"username":"admin"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	link, _ := decodeBody(t, rec)["reset_link"].(string)
	require.Contains(t, link, "/reset?token=")
	token := link[strings.Index(link, "token=")+len("token="):]

	rec = doJSON(context.Background(), h.CheckReset, http.MethodGet, "/api/auth/reset?token="+token, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(context.Background(), h.CheckReset, http.MethodGet, "/api/auth/reset?token=bogus", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(context.Background(), h.Reset, http.MethodPost, "/api/auth/reset", `{"token":"`+token+`","password":"newpass","confirm_password":"newpass"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(context.Background(), h.Login, http.MethodPost, "/api/auth/login", `{"username":"admin","password":"newpass"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}
