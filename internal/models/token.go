package models

// ResetToken is a single-use password reset authorization stored in
// reset_tokens.json. ExpiresAt is a unix timestamp in seconds.
type ResetToken struct {
	Token     string `json:"token"`
	Type      string `json:"type"`
	ID        string `json:"id"`
	ExpiresAt int64  `json:"expires_at"`
	CreatedAt string `json:"created_at"`
}

// AdminOverride replaces the configured admin password once a reset has
// happened. The zero value means no override.
type AdminOverride struct {
	PasswordHash string `json:"password_hash,omitempty"`
	UpdatedAt    string `json:"updated_at,omitempty"`
}
