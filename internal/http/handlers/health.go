package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/victorcuaresmadev/MicroTrust-sub000/internal/storage"
)

type StoreHealth interface {
	Degraded() bool
}

type HealthHandler struct {
	kv    storage.KV
	store StoreHealth
}

func NewHealthHandler(kv storage.KV, store StoreHealth) *HealthHandler {
	return &HealthHandler{kv: kv, store: store}
}

func (h *HealthHandler) Health(c *gin.Context) {
	persistence := "ok"
	if h.store != nil && h.store.Degraded() {
		persistence = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"service":     "microtrust-backend",
		"persistence": persistence,
	})
}

func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if pinger, ok := h.kv.(storage.Pinger); ok {
		if pinger.Ping(ctx) != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"storage": "error",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ready",
		"storage": "ok",
	})
}
