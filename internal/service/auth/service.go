package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/pkg/auth"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/security"
	"github.com/jwalitptl/clinic-api/pkg/validator"
)

// errInvalidCredentials is shared by unknown email and wrong password.
var errInvalidCredentials = apperrors.Unauthorized("invalid credentials")

type Service struct {
	users     repository.UserRepository
	jwtSvc    auth.JWTService
	hasher    security.PasswordHasher
	validator validator.Validator
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(users repository.UserRepository, jwtSvc auth.JWTService, hasher security.PasswordHasher, logger zerolog.Logger) *Service {
	return &Service{
		users:     users,
		jwtSvc:    jwtSvc,
		hasher:    hasher,
		validator: validator.New(),
		logger:    logger.With().Str("component", "auth_service").Logger(),
		now:       time.Now,
	}
}

func (s *Service) Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	role, err := model.ParseRole(req.Role)
	if err != nil {
		return nil, apperrors.Validation(err.Error(), map[string]string{"role": "must be ADMIN, DOCTOR or RECEPTIONIST"})
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooShort) {
			return nil, apperrors.Validation("password too short", map[string]string{"password": "must be at least 8 characters"})
		}
		return nil, apperrors.Internal(err)
	}

	user := &model.User{
		Base:         model.NewBase(s.now().UTC()),
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", user.ID.String()).Str("role", string(role)).Msg("user registered")
	return user, nil
}

func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (*model.LoginResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, err
	}
	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		s.logger.Warn().Str("user_id", user.ID.String()).Msg("failed login attempt")
		return nil, errInvalidCredentials
	}

	token, ttl, err := s.jwtSvc.GenerateAccessToken(user)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return &model.LoginResponse{
		Token:     token,
		ExpiresIn: int64(ttl.Seconds()),
		User:      user,
	}, nil
}

// Authenticate turns a bearer token into the caller identity.
func (s *Service) Authenticate(token string) (*model.Caller, error) {
	claims, err := s.jwtSvc.ValidateToken(token)
	if err != nil {
		return nil, apperrors.Unauthorized(err.Error())
	}
	return &model.Caller{UserID: claims.UserID, Email: claims.Email, Role: claims.Role}, nil
}
