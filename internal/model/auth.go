package model

import "time"

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type SetupAdminRequest struct {
	SetupToken string `json:"setupToken"`
	Username   string `json:"username" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

// AuthUser is the identity carried by a verified access token.
type AuthUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u *User) Public() AuthUser {
	return AuthUser{ID: u.ID, Username: u.Username}
}

type RefreshToken struct {
	ID        int64
	UserID    int64
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

// Active reports whether the token is neither revoked nor expired at now.
func (t *RefreshToken) Active(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

// Session is a freshly issued access/refresh pair. The refresh token is the
// only copy of the plaintext secret.
type Session struct {
	User             AuthUser
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}
