// Package auth guards the ingest endpoint with HTTP Basic Auth.
//
// Events carry device and network identity; only trusted collectors may
// submit them. Credentials come from configuration, never from the database,
// so auth stays available even when the store is down.
package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Credentials is the single username/password pair accepted by the API.
type Credentials struct {
	Username string
	Password string
}

// Enabled reports whether auth is configured. An empty username disables
// enforcement (local development only).
func (c Credentials) Enabled() bool {
	return c.Username != ""
}

// Middleware enforces Basic Auth when credentials are configured.
// Comparison is constant-time to avoid leaking prefix matches.
func Middleware(creds Credentials) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !creds.Enabled() {
			c.Next()
			return
		}

		user, pass, ok := c.Request.BasicAuth()
		if !ok || !equal(user, creds.Username) || !equal(pass, creds.Password) {
			c.Header("WWW-Authenticate", `Basic realm="accessguard"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "unauthorized",
			})
			return
		}

		c.Next()
	}
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
