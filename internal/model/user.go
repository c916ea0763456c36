package model

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin        Role = "ADMIN"
	RoleDoctor       Role = "DOCTOR"
	RoleReceptionist Role = "RECEPTIONIST"
)

func ParseRole(s string) (Role, error) {
	if strings.TrimSpace(s) == "" {
		return RoleReceptionist, nil
	}
	role := Role(strings.ToUpper(strings.TrimSpace(s)))
	switch role {
	case RoleAdmin, RoleDoctor, RoleReceptionist:
		return role, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// User is a staff account.
type User struct {
	Base
	Name         string `json:"name" db:"name"`
	Email        string `json:"email" db:"email"`
	PasswordHash string `json:"-" db:"password_hash"`
	Role         Role   `json:"role" db:"role"`
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=200"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
	User      *User  `json:"user"`
}

// Caller is the authenticated identity attached to a request.
type Caller struct {
	UserID uuid.UUID
	Email  string
	Role   Role
}
