package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/internal/model"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

const contextCaller = "caller"

// Authenticator resolves a bearer token to the calling staff member.
type Authenticator interface {
	Authenticate(token string) (*model.Caller, error)
}

// Auth requires a valid bearer token and stores the caller in the context.
// Failures go through the error middleware like any other error.
func Auth(authn Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abort(c, apperrors.Unauthorized("missing authorization header"))
			return
		}

		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			abort(c, apperrors.Unauthorized("invalid authorization format"))
			return
		}

		caller, err := authn.Authenticate(strings.TrimSpace(token))
		if err != nil {
			abort(c, err)
			return
		}

		c.Set(contextCaller, caller)
		c.Next()
	}
}

// RequireRole lets the request through only for the listed roles. It must run
// after Auth.
func RequireRole(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := CallerFrom(c)
		if !ok {
			abort(c, apperrors.Unauthorized("not authenticated"))
			return
		}
		for _, r := range roles {
			if caller.Role == r {
				c.Next()
				return
			}
		}
		abort(c, apperrors.Forbidden("role "+string(caller.Role)+" may not perform this action"))
	}
}

// CallerFrom returns the identity Auth attached to the request.
func CallerFrom(c *gin.Context) (*model.Caller, bool) {
	v, ok := c.Get(contextCaller)
	if !ok {
		return nil, false
	}
	caller, ok := v.(*model.Caller)
	return caller, ok && caller != nil
}

func abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
