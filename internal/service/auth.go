package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/config"
	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/db"
	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/logging"
	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/model"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	refreshTokenBytes = 64
	maxUsernameLength = 64
	maxPasswordLength = 128
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrTokenExpired        = errors.New("token expired")
	ErrInvalidToken        = errors.New("invalid token")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrUserNotFound        = errors.New("user not found")
	ErrMisconfigured       = errors.New("auth config invalid")
)

type CookieConfig struct {
	Name     string
	Path     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
	MaxAge   int
}

// AuthRepository is implemented by every storage backend in internal/db.
type AuthRepository interface {
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByID(ctx context.Context, userID int64) (*model.User, error)
	CreateUser(ctx context.Context, username, passwordHash string) (*model.User, error)
	InsertRefreshToken(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error
	GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error)
	RevokeRefreshTokenByHash(ctx context.Context, tokenHash string) error
	RevokeAllUserRefreshTokens(ctx context.Context, userID int64) (int64, error)
	RotateRefreshToken(ctx context.Context, oldTokenID int64, userID int64, newTokenHash string, newExpiresAt time.Time) error
}

// AuthService owns the credential lifecycle: short-lived signed access tokens
// that are never stored, and opaque single-use refresh tokens that are stored
// only as SHA-256 digests.
type AuthService struct {
	repo          AuthRepository
	log           *slog.Logger
	jwtSecret     []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	accessCookie  CookieConfig
	refreshCookie CookieConfig
	bcryptCost    int
	dummyHash     []byte
	now           func() time.Time
}

type accessClaims struct {
	UserID   int64  `json:"id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type AuthOption func(*AuthService)

// WithClock replaces time.Now for token issuance and validation.
func WithClock(now func() time.Time) AuthOption {
	return func(s *AuthService) { s.now = now }
}

func WithBcryptCost(cost int) AuthOption {
	return func(s *AuthService) { s.bcryptCost = cost }
}

func NewAuthService(repo AuthRepository, cfg config.AuthConfig, log *slog.Logger, opts ...AuthOption) (*AuthService, error) {
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return nil, fmt.Errorf("%w: JWT_SECRET is required", ErrMisconfigured)
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, fmt.Errorf("%w: token TTLs must be positive", ErrMisconfigured)
	}

	sameSite, err := parseSameSite(cfg.CookieSameSite)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid AUTH_COOKIE_SAMESITE", ErrMisconfigured)
	}
	if sameSite == http.SameSiteNoneMode && !cfg.CookieSecure {
		return nil, fmt.Errorf("%w: SameSite=None requires Secure cookie", ErrMisconfigured)
	}

	s := &AuthService{
		repo:       repo,
		log:        log,
		jwtSecret:  []byte(cfg.JWTSecret),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		accessCookie: CookieConfig{
			Name:     cfg.AccessCookieName,
			Path:     defaultString(cfg.AccessCookiePath, "/"),
			Domain:   cfg.CookieDomain,
			Secure:   cfg.CookieSecure,
			SameSite: sameSite,
			MaxAge:   int(cfg.AccessTTL.Seconds()),
		},
		refreshCookie: CookieConfig{
			Name:     cfg.RefreshCookieName,
			Path:     defaultString(cfg.RefreshCookiePath, "/"),
			Domain:   cfg.CookieDomain,
			Secure:   cfg.CookieSecure,
			SameSite: sameSite,
			MaxAge:   int(cfg.RefreshTTL.Seconds()),
		},
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	// compared against for unknown usernames so both failure paths cost a bcrypt round
	s.dummyHash, err = bcrypt.GenerateFromPassword([]byte("grubtech-dummy-password"), s.bcryptCost)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *AuthService) AccessCookie() CookieConfig {
	return s.accessCookie
}

func (s *AuthService) RefreshCookie() CookieConfig {
	return s.refreshCookie
}

// EnsureAdmin creates the bootstrap administrator unless a user with that
// name already exists.
func (s *AuthService) EnsureAdmin(ctx context.Context, username, password string) error {
	const op = "service.Auth.EnsureAdmin"
	log := s.log.With(slog.String("op", op), slog.String("username", username))

	_, err := s.repo.GetUserByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !db.IsNoRows(err) {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := validateCredentials(username, password); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := s.repo.CreateUser(ctx, username, string(hash)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	log.Info("bootstrap admin created")
	return nil
}

func (s *AuthService) Login(ctx context.Context, username, password string) (*model.Session, error) {
	const op = "service.Auth.Login"
	log := s.log.With(slog.String("op", op))

	username = strings.TrimSpace(username)
	if username == "" || password == "" || len(username) > maxUsernameLength || len(password) > maxPasswordLength {
		return nil, ErrInvalidInput
	}

	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if db.IsNoRows(err) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			log.Info("login rejected", slog.String("reason", "unknown user"))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		log.Info("login rejected", slog.String("reason", "wrong password"), slog.Int64("user_id", user.ID))
		return nil, ErrInvalidCredentials
	}

	session, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	log.Info("user logged in", slog.Int64("user_id", user.ID))
	return session, nil
}

// Refresh exchanges a refresh token for a brand-new pair. The presented token
// is revoked in the same step, so it can be used at most once.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*model.Session, error) {
	const op = "service.Auth.Refresh"

	record, err := s.validateRefreshRecord(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.GetUserByID(ctx, record.UserID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	newToken, newHash, err := newRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	refreshExpiresAt := s.now().Add(s.refreshTTL)

	if err := s.repo.RotateRefreshToken(ctx, record.ID, record.UserID, newHash, refreshExpiresAt); err != nil {
		if db.IsNoRows(err) {
			// lost a race with another refresh of the same token
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	accessToken, accessExpiresAt, err := s.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &model.Session{
		User:             user.Public(),
		AccessToken:      accessToken,
		RefreshToken:     newToken,
		AccessExpiresAt:  accessExpiresAt,
		RefreshExpiresAt: refreshExpiresAt,
	}, nil
}

func (s *AuthService) GenerateAccessToken(user *model.User) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.accessTTL)
	claims := accessClaims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ParseAccessToken verifies signature and expiry. Expired tokens yield
// ErrTokenExpired so clients know to refresh; anything else is ErrInvalidToken.
func (s *AuthService) ParseAccessToken(tokenStr string) (*model.AuthUser, error) {
	claims := &accessClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}

	return &model.AuthUser{
		ID:       claims.UserID,
		Username: claims.Username,
	}, nil
}

// GenerateRefreshToken stores the digest of a new random token for userID and
// returns the plaintext, which is never persisted.
func (s *AuthService) GenerateRefreshToken(ctx context.Context, userID int64) (string, time.Time, error) {
	token, hash, err := newRefreshToken()
	if err != nil {
		return "", time.Time{}, err
	}

	expiresAt := s.now().Add(s.refreshTTL)
	if err := s.repo.InsertRefreshToken(ctx, userID, hash, expiresAt); err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// ValidateRefreshToken returns the owning user id of an active refresh token.
func (s *AuthService) ValidateRefreshToken(ctx context.Context, refreshToken string) (int64, error) {
	record, err := s.validateRefreshRecord(ctx, refreshToken)
	if err != nil {
		return 0, err
	}
	return record.UserID, nil
}

func (s *AuthService) RevokeRefreshToken(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}
	return s.repo.RevokeRefreshTokenByHash(ctx, hashRefreshToken(refreshToken))
}

func (s *AuthService) RevokeAllUserTokens(ctx context.Context, userID int64) (int64, error) {
	return s.repo.RevokeAllUserRefreshTokens(ctx, userID)
}

// Logout revokes refreshToken if one was presented. Unknown or already
// revoked tokens are not an error.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	const op = "service.Auth.Logout"

	if err := s.RevokeRefreshToken(ctx, refreshToken); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *AuthService) LogoutAll(ctx context.Context, userID int64) (int64, error) {
	const op = "service.Auth.LogoutAll"
	log := s.log.With(slog.String("op", op), slog.Int64("user_id", userID))

	n, err := s.RevokeAllUserTokens(ctx, userID)
	if err != nil {
		log.Error("failed to revoke refresh tokens", logging.Err(err))
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	log.Info("revoked all refresh tokens", slog.Int64("revoked", n))
	return n, nil
}

func (s *AuthService) CurrentUser(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *AuthService) validateRefreshRecord(ctx context.Context, refreshToken string) (*model.RefreshToken, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, ErrInvalidRefreshToken
	}

	record, err := s.repo.GetRefreshTokenByHash(ctx, hashRefreshToken(refreshToken))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}
	if !record.Active(s.now()) {
		return nil, ErrInvalidRefreshToken
	}
	return record, nil
}

func (s *AuthService) issueSession(ctx context.Context, user *model.User) (*model.Session, error) {
	accessToken, accessExpiresAt, err := s.GenerateAccessToken(user)
	if err != nil {
		return nil, err
	}

	refreshToken, refreshExpiresAt, err := s.GenerateRefreshToken(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	return &model.Session{
		User:             user.Public(),
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  accessExpiresAt,
		RefreshExpiresAt: refreshExpiresAt,
	}, nil
}

func validateCredentials(username, password string) error {
	username = strings.TrimSpace(username)

	if len(username) < 3 || len(username) > maxUsernameLength {
		return ErrInvalidInput
	}
	if len(password) < 8 || len(password) > maxPasswordLength {
		return ErrInvalidInput
	}
	return nil
}

func parseSameSite(value string) (http.SameSite, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "none":
		return http.SameSiteNoneMode, nil
	case "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	default:
		return 0, ErrInvalidInput
	}
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func newRefreshToken() (string, string, error) {
	raw := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}
	token := base64.RawURLEncoding.EncodeToString(raw)
	return token, hashRefreshToken(token), nil
}

func hashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
