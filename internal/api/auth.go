package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const actorKey = "actor_id"

// TokenVerifier resolves a bearer credential to a validated actor id. The
// business services never see credentials, only the id this yields.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (int64, error)
}

// AuthMiddleware extracts the bearer token, verifies it, and stashes the
// actor id for handlers.
func AuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing bearer token",
			})
			return
		}

		actorID, err := verifier.Verify(c.Request.Context(), strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid token",
			})
			return
		}

		c.Set(actorKey, actorID)
		c.Next()
	}
}

func actorID(c *gin.Context) int64 {
	return c.GetInt64(actorKey)
}

// InsecureVerifier treats the token as a literal numeric user id. It stands
// in for a real identity provider in development and tests.
type InsecureVerifier struct{}

func (InsecureVerifier) Verify(_ context.Context, token string) (int64, error) {
	return strconv.ParseInt(token, 10, 64)
}
