package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/victorcuaresmadev/MicroTrust-sub000/internal/auth"
)

const WalletAddressKey = "wallet_address"

// RequireWallet extracts the caller's account address from a bearer session
// token. Admin rights are not decided here; the lifecycle engine checks the
// address against its authorization policy.
func RequireWallet(jwt *auth.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		claims, err := jwt.Parse(strings.TrimSpace(token))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Set(WalletAddressKey, claims.Address)
		c.Next()
	}
}

// CallerAddress reads the address RequireWallet stored on the context.
func CallerAddress(c *gin.Context) string {
	if v, ok := c.Get(WalletAddressKey); ok {
		if addr, ok := v.(string); ok {
			return addr
		}
	}
	return ""
}
