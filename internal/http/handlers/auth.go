package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/victorcuaresmadev/MicroTrust-sub000/internal/auth"
	"github.com/victorcuaresmadev/MicroTrust-sub000/internal/wallet"
)

type AuthHandler struct {
	jwt        *auth.JWTManager
	sessionTTL time.Duration
}

func NewAuthHandler(jwt *auth.JWTManager, sessionTTL time.Duration) *AuthHandler {
	return &AuthHandler{jwt: jwt, sessionTTL: sessionTTL}
}

type sessionRequest struct {
	Address string `json:"address" binding:"required"`
}

// CreateSession mints a wallet-session token for a well-formed account
// address. Proof of key ownership happens in the wallet provider on the
// client side; the API trusts the connected address the dApp reports.
func (h *AuthHandler) CreateSession(c *gin.Context) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if !wallet.ValidAddress(req.Address) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_address"})
		return
	}

	token, err := h.jwt.Mint(req.Address, h.sessionTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_in": int(h.sessionTTL.Seconds()),
	})
}
