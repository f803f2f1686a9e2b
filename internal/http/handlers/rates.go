package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	loandomain "github.com/victorcuaresmadev/MicroTrust-sub000/internal/domain/loan"
	"github.com/victorcuaresmadev/MicroTrust-sub000/internal/rates"
)

// RateHandler exposes the pure rate computation for borrower-side display.
type RateHandler struct{}

func NewRateHandler() *RateHandler {
	return &RateHandler{}
}

func (h *RateHandler) Quote(c *gin.Context) {
	category := loandomain.PurposeCategory(strings.TrimSpace(c.Query("category")))
	duration, err := strconv.Atoi(strings.TrimSpace(c.DefaultQuery("duration", "0")))
	if err != nil || duration <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_duration"})
		return
	}
	verified := strings.EqualFold(strings.TrimSpace(c.Query("verified")), "true")

	base := rates.BaseRate(category)
	final := rates.FinalRate(base, duration, verified, category)
	c.JSON(http.StatusOK, gin.H{
		"category":   category,
		"base_rate":  base,
		"final_rate": final,
	})
}
