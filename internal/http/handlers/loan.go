package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	loandomain "github.com/victorcuaresmadev/MicroTrust-sub000/internal/domain/loan"
	"github.com/victorcuaresmadev/MicroTrust-sub000/internal/http/middleware"
	"github.com/victorcuaresmadev/MicroTrust-sub000/internal/lifecycle"
	"github.com/victorcuaresmadev/MicroTrust-sub000/internal/settlement"
)

type LoanService interface {
	Create(ctx context.Context, in lifecycle.CreateInput) (*loandomain.Request, error)
	List(ctx context.Context) []loandomain.Request
	ByBorrower(ctx context.Context, address string) []loandomain.Request
	Get(ctx context.Context, loanID string) (*loandomain.Request, error)
	Approve(ctx context.Context, loanID, adminAddress string) (*lifecycle.TransitionResult, error)
	Reject(ctx context.Context, loanID, adminAddress, reason string) (*loandomain.Request, error)
	Repay(ctx context.Context, loanID, callerAddress string) (*lifecycle.TransitionResult, error)
	SetBusinessVerified(ctx context.Context, adminAddress, borrowerAddress string, verified bool) error
	ClearAll(ctx context.Context, adminAddress string) error
	Readiness(ctx context.Context) settlement.Readiness
}

type LoanHandler struct {
	loanService LoanService
}

func NewLoanHandler(loanService LoanService) *LoanHandler {
	return &LoanHandler{loanService: loanService}
}

type createLoanRequest struct {
	BorrowerName string  `json:"borrower_name" binding:"required"`
	Amount       float64 `json:"amount" binding:"required"`
	Purpose      string  `json:"purpose"`
	Category     string  `json:"category" binding:"required"`
	DurationDays int     `json:"duration_days" binding:"required"`
	Network      string  `json:"network" binding:"required"`
}

func (h *LoanHandler) CreateLoan(c *gin.Context) {
	var req createLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	rec, err := h.loanService.Create(c.Request.Context(), lifecycle.CreateInput{
		BorrowerName:    req.BorrowerName,
		BorrowerAddress: middleware.CallerAddress(c),
		Amount:          req.Amount,
		Purpose:         req.Purpose,
		Category:        loandomain.PurposeCategory(req.Category),
		DurationDays:    req.DurationDays,
		Network:         loandomain.Network(req.Network),
	})
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": errorCode(err)})
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (h *LoanHandler) ListLoans(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"items": h.loanService.List(c.Request.Context())})
}

func (h *LoanHandler) ListByBorrower(c *gin.Context) {
	items := h.loanService.ByBorrower(c.Request.Context(), c.Param("address"))
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *LoanHandler) GetLoan(c *gin.Context) {
	rec, err := h.loanService.Get(c.Request.Context(), c.Param("loanId"))
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": errorCode(err)})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *LoanHandler) ApproveLoan(c *gin.Context) {
	result, err := h.loanService.Approve(c.Request.Context(), c.Param("loanId"), middleware.CallerAddress(c))
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": errorCode(err)})
		return
	}
	// Settlement failures are a structured result, not an error: the admin UI
	// branches on declined vs failed.
	if !result.Success {
		c.JSON(http.StatusConflict, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

type rejectLoanRequest struct {
	Reason string `json:"reason"`
}

func (h *LoanHandler) RejectLoan(c *gin.Context) {
	var req rejectLoanRequest
	_ = c.ShouldBindJSON(&req)

	rec, err := h.loanService.Reject(c.Request.Context(), c.Param("loanId"), middleware.CallerAddress(c), req.Reason)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": errorCode(err)})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *LoanHandler) RepayLoan(c *gin.Context) {
	result, err := h.loanService.Repay(c.Request.Context(), c.Param("loanId"), middleware.CallerAddress(c))
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": errorCode(err)})
		return
	}
	if !result.Success {
		c.JSON(http.StatusConflict, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

type verifyBusinessRequest struct {
	BorrowerAddress string `json:"borrower_address" binding:"required"`
	Verified        bool   `json:"verified"`
}

func (h *LoanHandler) VerifyBusiness(c *gin.Context) {
	var req verifyBusinessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if err := h.loanService.SetBusinessVerified(c.Request.Context(), middleware.CallerAddress(c), req.BorrowerAddress, req.Verified); err != nil {
		c.JSON(statusForError(err), gin.H{"error": errorCode(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *LoanHandler) ClearLoans(c *gin.Context) {
	if err := h.loanService.ClearAll(c.Request.Context(), middleware.CallerAddress(c)); err != nil {
		c.JSON(statusForError(err), gin.H{"error": errorCode(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

func (h *LoanHandler) SettlementReadiness(c *gin.Context) {
	c.JSON(http.StatusOK, h.loanService.Readiness(c.Request.Context()))
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, lifecycle.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, lifecycle.ErrLoanNotFound):
		return http.StatusNotFound
	case errors.Is(err, lifecycle.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, lifecycle.ErrNotReady):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, lifecycle.ErrUnauthorized):
		return "unauthorized_caller"
	case errors.Is(err, lifecycle.ErrLoanNotFound):
		return "loan_not_found"
	case errors.Is(err, lifecycle.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, lifecycle.ErrUnknownNetwork):
		return "unknown_network"
	case errors.Is(err, lifecycle.ErrAmountOverLimit):
		return "amount_over_limit"
	case errors.Is(err, lifecycle.ErrNotReady):
		return "settlement_not_ready"
	case errors.Is(err, lifecycle.ErrInvalidInput):
		return "invalid_request"
	default:
		return "internal_error"
	}
}
