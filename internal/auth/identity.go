package auth

import "context"

// Kind tells an admin identity apart from a registered user.
type Kind string

const (
	KindAdmin Kind = "admin"
	KindUser  Kind = "user"
)

// Identity is the logged-in principal bound to a session.
type Identity struct {
	LoggedIn  bool   `json:"logged_in"`
	LoginTime string `json:"login_time"`
	Kind      Kind   `json:"kind"`
	ID        string `json:"id"`
	Name      string `json:"name"`
	Username  string `json:"username"`
	Nickname  string `json:"nickname"`
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity stored in ctx, or nil when the request is
// anonymous.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	if id == nil || !id.LoggedIn {
		return nil
	}
	return id
}
