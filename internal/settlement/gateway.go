package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/victorcuaresmadev/MicroTrust-sub000/internal/wallet"
)

// Gas limit for a plain value transfer; no contract call is ever made.
const transferGasLimit = 21000

// Fixed priority premium biasing dynamic-fee submissions for fast inclusion.
var defaultPriorityFee = big.NewInt(2_000_000_000) // 2 gwei

// Minimum balance kept aside for fees before a disbursement attempt.
var defaultFeeReserve = big.NewInt(1_000_000_000_000_000) // 0.001 ether

type TransferKind int

const (
	KindDisbursement TransferKind = iota
	KindRepayment
)

type Readiness struct {
	Ready  bool   `json:"ready"`
	Reason string `json:"reason,omitempty"`
}

type Options struct {
	// Legacy gas premiums, percent over market price. Disbursement is priced
	// more aggressively than repayment on purpose.
	DisbursementPremiumPct int64
	RepaymentPremiumPct    int64
	PriorityFee            *big.Int
	FeeReserve             *big.Int
}

// Gateway submits native-asset transfers through the wallet provider and
// answers settlement queries for submitted transaction references.
type Gateway struct {
	provider wallet.Provider
	logger   *slog.Logger
	opts     Options
}

func NewGateway(provider wallet.Provider, logger *slog.Logger, opts Options) *Gateway {
	if opts.DisbursementPremiumPct <= 0 {
		opts.DisbursementPremiumPct = 50
	}
	if opts.RepaymentPremiumPct <= 0 {
		opts.RepaymentPremiumPct = 20
	}
	if opts.PriorityFee == nil {
		opts.PriorityFee = defaultPriorityFee
	}
	if opts.FeeReserve == nil {
		opts.FeeReserve = defaultFeeReserve
	}
	return &Gateway{provider: provider, logger: logger, opts: opts}
}

// SubmitTransfer sends amount (display units) from a connected account to the
// destination address and returns the provider-assigned transaction hash.
// Fee parameters prefer the dynamic fee market; if the provider rejects the
// dynamic shape the transfer is resubmitted with legacy gas pricing.
func (g *Gateway) SubmitTransfer(ctx context.Context, from, to string, amount float64, kind TransferKind) (string, error) {
	if g.provider == nil {
		return "", ErrProviderUnavailable
	}
	accounts, err := g.provider.Accounts(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if len(accounts) == 0 {
		return "", ErrNoConnectedAccount
	}
	sender := strings.TrimSpace(from)
	if sender == "" {
		sender = accounts[0]
	} else if !containsAddress(accounts, sender) {
		return "", fmt.Errorf("%w: %s not connected", ErrNoConnectedAccount, sender)
	}

	value := ToBaseUnits(amount)
	params := wallet.TxParams{
		From:     sender,
		To:       to,
		Value:    value,
		GasLimit: transferGasLimit,
	}

	if block, blockErr := g.provider.LatestBlock(ctx); blockErr == nil && block.BaseFee != nil {
		params.MaxFee = new(big.Int).Mul(block.BaseFee, big.NewInt(2))
		params.PriorityFee = g.opts.PriorityFee

		txHash, sendErr := g.provider.SendTransaction(ctx, params)
		if sendErr == nil {
			return txHash, nil
		}
		classified := Classify(sendErr)
		if !isFeeMarketRejection(sendErr) || errors.Is(classified, ErrUserDeclined) {
			return "", classified
		}
		g.logger.Warn("dynamic fee pricing rejected, falling back to legacy", "err", sendErr)
		params.MaxFee = nil
		params.PriorityFee = nil
	}

	gasPrice, err := g.provider.GasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	params.GasPrice = applyPremium(gasPrice, g.premiumPct(kind))

	txHash, err := g.provider.SendTransaction(ctx, params)
	if err != nil {
		return "", Classify(err)
	}
	return txHash, nil
}

// CheckSettled reports whether the transaction is finalized with a success
// status. A missing receipt means "not yet" and is not an error.
func (g *Gateway) CheckSettled(ctx context.Context, txHash string) (bool, error) {
	receipt, err := g.provider.TransactionReceipt(ctx, txHash)
	if err != nil {
		return false, err
	}
	if receipt == nil {
		return false, nil
	}
	return receipt.Succeeded, nil
}

// CheckReadiness is the informational preflight before a disbursement: the
// transfer may still fail even when it passes.
func (g *Gateway) CheckReadiness(ctx context.Context) Readiness {
	if g.provider == nil {
		return Readiness{Reason: "provider_unavailable"}
	}
	accounts, err := g.provider.Accounts(ctx)
	if err != nil {
		return Readiness{Reason: "provider_unavailable"}
	}
	if len(accounts) == 0 {
		return Readiness{Reason: "no_connected_account"}
	}
	balance, err := g.provider.Balance(ctx, accounts[0])
	if err != nil {
		return Readiness{Reason: "provider_unavailable"}
	}
	if balance.Cmp(g.opts.FeeReserve) < 0 {
		return Readiness{Reason: "insufficient_balance"}
	}
	return Readiness{Ready: true}
}

func (g *Gateway) premiumPct(kind TransferKind) int64 {
	if kind == KindRepayment {
		return g.opts.RepaymentPremiumPct
	}
	return g.opts.DisbursementPremiumPct
}

func applyPremium(price *big.Int, premiumPct int64) *big.Int {
	out := new(big.Int).Mul(price, big.NewInt(100+premiumPct))
	return out.Div(out, big.NewInt(100))
}

// isFeeMarketRejection detects providers that refuse the dynamic fee fields
// on legacy networks: an invalid-params response or an explicit complaint
// about the fields themselves.
func isFeeMarketRejection(err error) bool {
	var pe *wallet.ProviderError
	if !errors.As(err, &pe) {
		return false
	}
	if pe.Code == -32602 {
		return true
	}
	msg := strings.ToLower(pe.Message)
	return strings.Contains(msg, "maxfeepergas") || strings.Contains(msg, "eip-1559") || strings.Contains(msg, "1559")
}

func containsAddress(accounts []string, address string) bool {
	for _, a := range accounts {
		if wallet.EqualAddresses(a, address) {
			return true
		}
	}
	return false
}
