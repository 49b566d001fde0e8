package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/db"
	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestSetupService(token string) (*SetupService, *db.Memory) {
	repo := db.NewMemory()
	svc := NewSetupService(repo, token, logging.Discard())
	svc.bcryptCost = bcrypt.MinCost
	return svc, repo
}

func TestSetupStatus(t *testing.T) {
	svc, _ := newTestSetupService("setup-secret")
	ctx := context.Background()

	status, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.NeedsSetup)
	assert.True(t, status.Enabled)

	_, err = svc.CreateAdmin(ctx, "setup-secret", "admin", "long-enough")
	require.NoError(t, err)

	status, err = svc.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.NeedsSetup)
}

func TestSetupCreateAdmin(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		given    string
		username string
		password string
		wantErr  error
	}{
		{name: "disabled", token: "", given: "", username: "admin", password: "long-enough", wantErr: ErrSetupDisabled},
		{name: "wrong token", token: "setup-secret", given: "guess", username: "admin", password: "long-enough", wantErr: ErrUnauthorized},
		{name: "short username", token: "setup-secret", given: "setup-secret", username: "ad", password: "long-enough", wantErr: ErrInvalidInput},
		{name: "short password", token: "setup-secret", given: "setup-secret", username: "admin", password: "short", wantErr: ErrInvalidInput},
		{name: "ok", token: "setup-secret", given: "setup-secret", username: "admin", password: "long-enough"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newTestSetupService(tt.token)

			user, err := svc.CreateAdmin(context.Background(), tt.given, tt.username, tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				n, _ := repo.CountUsers(context.Background())
				assert.Zero(t, n)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.username, user.Username)
			assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(tt.password)))
		})
	}
}

func TestSetupRefusesSecondAdmin(t *testing.T) {
	svc, _ := newTestSetupService("setup-secret")
	ctx := context.Background()

	_, err := svc.CreateAdmin(ctx, "setup-secret", "admin", "long-enough")
	require.NoError(t, err)

	_, err = svc.CreateAdmin(ctx, "setup-secret", "admin2", "long-enough")
	assert.ErrorIs(t, err, ErrSetupComplete)
}

func TestSetupConcurrentCreateAdmin(t *testing.T) {
	svc, repo := newTestSetupService("setup-secret")
	ctx := context.Background()

	const callers = 10
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.CreateAdmin(ctx, "setup-secret", fmt.Sprintf("admin%d", i), "long-enough")
		}()
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.ErrorIs(t, err, ErrSetupComplete)
	}
	assert.Equal(t, 1, created)

	n, err := repo.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
