package middleware

import (
	"crypto/subtle"
	"net/http"
	"net/netip"
	"strings"

	"github.com/gin-gonic/gin"

	"fleet-command-server/internal/auth"
)

// TrustGate classifies a caller as internal. A caller passes with the
// shared internal token (header or query, constant-time compare), a valid
// service JWT signed with the internal secret, or a source address inside
// the configured private networks. Everyone else gets a bare forbidden.
type TrustGate struct {
	token    string
	networks []netip.Prefix
	jwt      auth.TokenConfig
}

func NewTrustGate(token string, networks []string, jwtCfg auth.TokenConfig) (*TrustGate, error) {
	prefixes, err := ParseNetworks(networks)
	if err != nil {
		return nil, err
	}
	return &TrustGate{token: token, networks: prefixes, jwt: jwtCfg}, nil
}

func ParseNetworks(networks []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(networks))
	for _, raw := range networks {
		prefix, err := netip.ParsePrefix(strings.TrimSpace(raw))
		if err != nil {
			return nil, err
		}
		prefixes = append(prefixes, prefix)
	}
	return prefixes, nil
}

func (g *TrustGate) tokenMatches(candidate string) bool {
	if candidate == "" || g.token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(g.token)) == 1
}

// Allowed reports whether the request may use internal endpoints.
func (g *TrustGate) Allowed(c *gin.Context) bool {
	candidate := c.GetHeader("X-Internal-Token")
	if candidate == "" {
		candidate = c.Query("token")
	}
	if g.tokenMatches(candidate) {
		return true
	}

	bearer := c.GetHeader("Authorization")
	if parts := strings.SplitN(bearer, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		if _, err := auth.VerifyServiceToken(parts[1], g.jwt); err == nil {
			return true
		}
	}
	// The websocket route can only carry credentials in the query string.
	if candidate != "" && !g.tokenMatches(candidate) {
		if _, err := auth.VerifyServiceToken(candidate, g.jwt); err == nil {
			return true
		}
	}

	addr, err := netip.ParseAddr(c.ClientIP())
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range g.networks {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// Require rejects non-internal callers with 403 and no detail.
func (g *TrustGate) Require() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !g.Allowed(c) {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			c.Abort()
			return
		}
		c.Next()
	}
}
