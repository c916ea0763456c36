package auth

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	"github.com/jwalitptl/clinic-api/pkg/auth"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/security"
)

func newService() *Service {
	jwtSvc := auth.NewJWTService(auth.Config{Secret: "test-secret", Issuer: "clinic-test", Expiry: time.Hour})
	return NewService(memory.NewRepositories().Users, jwtSvc, security.NewBcryptHasher(bcrypt.MinCost), zerolog.Nop())
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	user, err := svc.Register(ctx, &model.RegisterRequest{
		Name: "Front Desk", Email: "Desk@Clinic.Example", Password: "s3cret-pass",
	})
	require.NoError(t, err)
	assert.Equal(t, "desk@clinic.example", user.Email)
	assert.Equal(t, model.RoleReceptionist, user.Role)
	assert.NotEqual(t, "s3cret-pass", user.PasswordHash)

	resp, err := svc.Login(ctx, &model.LoginRequest{Email: "desk@clinic.example", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, user.ID, resp.User.ID)

	caller, err := svc.Authenticate(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, caller.UserID)
	assert.Equal(t, model.RoleReceptionist, caller.Role)
}

func TestRegisterRejects(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	_, err := svc.Register(ctx, &model.RegisterRequest{Name: "A", Email: "a@clinic.example", Password: "long-enough", Role: "admin"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, &model.RegisterRequest{Name: "B", Email: "A@clinic.example", Password: "long-enough"})
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	_, err = svc.Register(ctx, &model.RegisterRequest{Name: "C", Email: "c@clinic.example", Password: "long-enough", Role: "janitor"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.Register(ctx, &model.RegisterRequest{Name: "D", Email: "d@clinic.example", Password: "short"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestLoginFailuresLookTheSame(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	_, err := svc.Register(ctx, &model.RegisterRequest{Name: "Doc", Email: "doc@clinic.example", Password: "right-password", Role: "DOCTOR"})
	require.NoError(t, err)

	_, wrongPassword := svc.Login(ctx, &model.LoginRequest{Email: "doc@clinic.example", Password: "wrong-password"})
	_, unknownEmail := svc.Login(ctx, &model.LoginRequest{Email: "nobody@clinic.example", Password: "right-password"})

	assert.ErrorIs(t, wrongPassword, apperrors.ErrUnauthorized)
	assert.ErrorIs(t, unknownEmail, apperrors.ErrUnauthorized)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
}

func TestAuthenticateRejectsBadToken(t *testing.T) {
	_, err := newService().Authenticate("not.a.token")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}
