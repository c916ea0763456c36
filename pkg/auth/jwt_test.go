package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
)

func testUser() *model.User {
	return &model.User{
		Base:  model.Base{ID: uuid.New()},
		Email: "frontdesk@clinic.test",
		Role:  model.RoleReceptionist,
	}
}

func TestGenerateAndValidate(t *testing.T) {
	svc := NewJWTService(Config{Secret: "s3cret", Issuer: "clinic-api", Expiry: time.Hour})
	user := testUser()

	token, ttl, err := svc.GenerateAccessToken(user)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, ttl)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, user.Email, claims.Email)
	assert.Equal(t, model.RoleReceptionist, claims.Role)
	assert.Equal(t, "clinic-api", claims.Issuer)
}

func TestValidateRejects(t *testing.T) {
	issued := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	user := testUser()

	signer := &jwtService{cfg: Config{Secret: "s3cret", Issuer: "clinic-api", Expiry: time.Hour}, now: func() time.Time { return issued }}
	token, _, err := signer.GenerateAccessToken(user)
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		v := &jwtService{cfg: signer.cfg, now: func() time.Time { return issued.Add(2 * time.Hour) }}
		_, err := v.ValidateToken(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("within leeway", func(t *testing.T) {
		cfg := signer.cfg
		cfg.Leeway = 2 * time.Minute
		v := &jwtService{cfg: cfg, now: func() time.Time { return issued.Add(time.Hour + time.Minute) }}
		_, err := v.ValidateToken(token)
		assert.NoError(t, err)
	})

	t.Run("wrong secret", func(t *testing.T) {
		v := &jwtService{cfg: Config{Secret: "other", Issuer: "clinic-api"}, now: signer.now}
		_, err := v.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		v := &jwtService{cfg: Config{Secret: "s3cret", Issuer: "someone-else"}, now: signer.now}
		_, err := v.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := signer.ValidateToken("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("other algorithm", func(t *testing.T) {
		claims := model.TokenClaims{UserID: user.ID, RegisteredClaims: jwt.RegisteredClaims{Issuer: "clinic-api"}}
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("s3cret"))
		require.NoError(t, err)
		_, err = signer.ValidateToken(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing user id", func(t *testing.T) {
		claims := model.TokenClaims{RegisteredClaims: jwt.RegisteredClaims{Issuer: "clinic-api"}}
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s3cret"))
		require.NoError(t, err)
		_, err = signer.ValidateToken(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestDefaultExpiry(t *testing.T) {
	_, ttl, err := NewJWTService(Config{Secret: "s"}).GenerateAccessToken(testUser())
	require.NoError(t, err)
	assert.Equal(t, 12*time.Hour, ttl)
}
