package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// IdentityKey is the gin context key holding the caller's owner identity.
const IdentityKey = "ownerIdentity"

// IdentityQueryParam carries the identity for browser websocket upgrades,
// which cannot set custom headers.
const IdentityQueryParam = "identity"

// Identity extracts the opaque owner identity supplied by the auth layer in
// front of this service. Requests without one are rejected.
func Identity(header string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := strings.TrimSpace(c.GetHeader(header))
		if identity == "" {
			identity = strings.TrimSpace(c.Query(IdentityQueryParam))
		}
		if identity == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "missing owner identity",
			})
			c.Abort()
			return
		}
		c.Set(IdentityKey, identity)
		c.Next()
	}
}

// GetIdentity returns the identity set by Identity, or "".
func GetIdentity(c *gin.Context) string {
	return c.GetString(IdentityKey)
}
