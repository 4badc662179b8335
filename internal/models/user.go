package models

// User is a registered account stored in users.json.
type User struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Username     string `json:"username"`
	Nickname     string `json:"nickname"`
	Email        string `json:"email"`
	Whatsapp     string `json:"whatsapp"`
	PasswordHash string `json:"password_hash"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at,omitempty"`
}

// PublicUser is the subset of a User that is safe to return to clients.
type PublicUser struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Username  string `json:"username"`
	Nickname  string `json:"nickname"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
}

// Public strips the password hash and contact number.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Name:      u.Name,
		Username:  u.Username,
		Nickname:  u.Nickname,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}

// RegisterRequest is the JSON body for POST /api/auth/register.
type RegisterRequest struct {
	Name     string `json:"name"     form:"name"     validate:"required"`
	Username string `json:"username" form:"username" validate:"required,username"`
	Nickname string `json:"nickname" form:"nickname" validate:"required"`
	Password string `json:"password" form:"password" validate:"min=6"`
	Email    string `json:"email"    form:"email"    validate:"required,email"`
	Whatsapp string `json:"whatsapp" form:"whatsapp" validate:"required,whatsapp"`
}

// LoginRequest is the JSON body for POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ForgotRequest is the JSON body for POST /api/auth/forgot.
type ForgotRequest struct {
	Username string `json:"username"`
}

// ResetRequest is the JSON body for POST /api/auth/reset.
type ResetRequest struct {
	Token           string `json:"token"            form:"token"`
	Password        string `json:"password"         form:"password"         validate:"min=6"`
	ConfirmPassword string `json:"confirm_password" form:"confirm_password"`
}
