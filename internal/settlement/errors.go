package settlement

import (
	"errors"
	"strings"

	"github.com/victorcuaresmadev/MicroTrust-sub000/internal/wallet"
)

var (
	ErrProviderUnavailable = errors.New("wallet provider unavailable")
	ErrNoConnectedAccount  = errors.New("no connected account")
	ErrUserDeclined        = errors.New("user declined signing")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrProviderInternal    = errors.New("provider internal error")
)

// Classify maps a raw provider failure onto the settlement taxonomy so
// callers can branch on the expected user-declined outcome versus real
// faults. Unrecognized errors pass through unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var pe *wallet.ProviderError
	if !errors.As(err, &pe) {
		return err
	}
	switch {
	case pe.Code == wallet.CodeUserDeclined:
		return ErrUserDeclined
	case strings.Contains(strings.ToLower(pe.Message), "insufficient funds"):
		return ErrInsufficientFunds
	case pe.Code <= -32000 && pe.Code >= -32099:
		return ErrProviderInternal
	default:
		return err
	}
}
