package wallet

import (
	"fmt"
	"strings"

	"github.com/victorcuaresmadev/MicroTrust-sub000/internal/config"
)

func NewProviderFromConfig(cfg config.Config) (Provider, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.WalletMode))
	if mode == "" || mode == "stub" {
		return NewStubProvider(), nil
	}
	if mode != "real" {
		return nil, fmt.Errorf("invalid WALLET_MODE: %s", cfg.WalletMode)
	}
	return NewRPCProvider(cfg.ChainHTTPRPC)
}
