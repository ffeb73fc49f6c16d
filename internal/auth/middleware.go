package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const CtxClaimsKey = "auth_claims"

// Verifier checks a raw bearer token, including revocation.
type Verifier struct {
	Tokens TokenService
	Repo   *Repo
}

func (v Verifier) Verify(ctx context.Context, raw string) (*Claims, error) {
	claims, err := v.Tokens.Parse(raw)
	if err != nil {
		return nil, err
	}
	if v.Repo != nil {
		current, err := v.Repo.GetTokenVersion(ctx, claims.UserID)
		if err != nil {
			return nil, err
		}
		if current != claims.TokenVersion {
			return nil, errRevoked
		}
	}
	return claims, nil
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(h string) string {
	if len(h) < len("bearer ") || !strings.EqualFold(h[:len("bearer ")], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[len("bearer "):])
}

func AuthMiddleware(tokens TokenService, repo *Repo) gin.HandlerFunc {
	v := Verifier{Tokens: tokens, Repo: repo}
	return func(c *gin.Context) {
		raw := BearerToken(c.GetHeader("Authorization"))
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := v.Verify(c.Request.Context(), raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(CtxClaimsKey, claims)
		c.Next()
	}
}

func MustGetClaims(c *gin.Context) *Claims {
	v, ok := c.Get(CtxClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*Claims)
	return claims
}
