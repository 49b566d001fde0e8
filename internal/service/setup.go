package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/db"
	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/model"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrSetupDisabled = errors.New("setup disabled")
	ErrSetupComplete = errors.New("setup already completed")
	ErrUnauthorized  = errors.New("unauthorized")
)

type setupRepo interface {
	CountUsers(ctx context.Context) (int64, error)
	CreateFirstUser(ctx context.Context, username, passwordHash string) (*model.User, error)
}

// SetupService creates the first administrator on an empty install. It is
// gated by a shared setup token and refuses to run once any user exists.
type SetupService struct {
	repo       setupRepo
	log        *slog.Logger
	setupToken string
	bcryptCost int
}

func NewSetupService(repo setupRepo, setupToken string, log *slog.Logger) *SetupService {
	return &SetupService{
		repo:       repo,
		log:        log,
		setupToken: strings.TrimSpace(setupToken),
		bcryptCost: bcrypt.DefaultCost,
	}
}

// Status reports whether setup is still possible.
func (s *SetupService) Status(ctx context.Context) (model.SetupStatusResponse, error) {
	const op = "service.Setup.Status"

	n, err := s.repo.CountUsers(ctx)
	if err != nil {
		return model.SetupStatusResponse{}, fmt.Errorf("%s: %w", op, err)
	}
	return model.SetupStatusResponse{
		Success:    true,
		NeedsSetup: n == 0,
		Enabled:    s.setupToken != "",
	}, nil
}

func (s *SetupService) CreateAdmin(ctx context.Context, setupToken, username, password string) (*model.User, error) {
	const op = "service.Setup.CreateAdmin"
	log := s.log.With(slog.String("op", op))

	if s.setupToken == "" {
		return nil, ErrSetupDisabled
	}
	if subtle.ConstantTimeCompare([]byte(setupToken), []byte(s.setupToken)) != 1 {
		log.Warn("setup token mismatch")
		return nil, ErrUnauthorized
	}

	username = strings.TrimSpace(username)
	if err := validateCredentials(username, password); err != nil {
		return nil, err
	}

	// Cheap early exit; CreateFirstUser re-checks atomically.
	n, err := s.repo.CountUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if n > 0 {
		return nil, ErrSetupComplete
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.repo.CreateFirstUser(ctx, username, string(hash))
	if err != nil {
		if errors.Is(err, db.ErrUsersExist) || errors.Is(err, db.ErrConflict) {
			return nil, ErrSetupComplete
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("admin user created", slog.Int64("user_id", user.ID), slog.String("username", user.Username))
	return user, nil
}
