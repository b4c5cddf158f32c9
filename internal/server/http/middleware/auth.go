package middleware

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	domainErrors "github.com/polkiloo/marketplace/internal/domain/errors"
	"github.com/polkiloo/marketplace/internal/domain/model"
	pkgAuth "github.com/polkiloo/marketplace/internal/pkg/auth"
	"github.com/polkiloo/marketplace/internal/server/http/dto"
)

const (
	// ActorContextKey is a gin context key for the authenticated actor.
	ActorContextKey = "actor"
	authCookieName  = "marketplace_token"
)

// TokenParser resolves a bearer token into an actor.
type TokenParser interface {
	ParseToken(token string) (model.Actor, error)
}

// Identify resolves the actor when a token is supplied. Requests without a
// token continue anonymously; an invalid token is rejected.
func Identify(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			c.Next()
			return
		}

		actor, err := parser.ParseToken(token)
		if err != nil {
			if errors.Is(err, pkgAuth.ErrInvalidToken) {
				abort(c, http.StatusUnauthorized, domainErrors.ErrUnauthorized)
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, dto.Envelope{Message: "internal server error", Kind: "internal"})
			return
		}

		c.Set(ActorContextKey, actor)
		c.Next()
	}
}

// RequireRoles lets the request through only for an identified actor holding one of roles.
func RequireRoles(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			abort(c, http.StatusUnauthorized, domainErrors.ErrUnauthorized)
			return
		}
		if !slices.Contains(roles, actor.Role) {
			abort(c, http.StatusForbidden, domainErrors.ErrForbidden)
			return
		}
		c.Next()
	}
}

// ActorFrom returns the actor stored by Identify.
func ActorFrom(c *gin.Context) (model.Actor, bool) {
	val, ok := c.Get(ActorContextKey)
	if !ok {
		return model.Actor{}, false
	}
	actor, ok := val.(model.Actor)
	return actor, ok
}

func abort(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, dto.Envelope{Message: err.Error(), Kind: domainErrors.Kind(err)})
}

func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}

	if cookie, err := c.Cookie(authCookieName); err == nil {
		return cookie
	}
	return ""
}
