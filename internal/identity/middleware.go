package identity

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jmerrifield20/tenantedge/internal/tenancy/model"
)

const ctxIdentity = "identity"

// SessionCookie is read when no Authorization header is present.
const SessionCookie = "session"

// RequireSession rejects requests without a valid session token with 401
// and stores the identity for IdentityFromCtx.
func RequireSession(tokens *TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearer(c)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"errors": gin.H{"session": gin.H{"msg": "sign in required"}},
			})
			return
		}
		id, err := tokens.Verify(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"errors": gin.H{"session": gin.H{"msg": "session is invalid or expired"}},
			})
			return
		}
		c.Set(ctxIdentity, id)
		c.Next()
	}
}

// OptionalSession stores the identity when a valid token is present and
// lets the request through either way.
func OptionalSession(tokens *TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := bearer(c); raw != "" {
			if id, err := tokens.Verify(raw); err == nil {
				c.Set(ctxIdentity, id)
			}
		}
		c.Next()
	}
}

// IdentityFromCtx returns the identity set by RequireSession or
// OptionalSession, or the zero Identity.
func IdentityFromCtx(c *gin.Context) model.Identity {
	v, ok := c.Get(ctxIdentity)
	if !ok {
		return model.Identity{}
	}
	id, _ := v.(model.Identity)
	return id
}

func bearer(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if v, err := c.Cookie(SessionCookie); err == nil {
		return v
	}
	return ""
}
