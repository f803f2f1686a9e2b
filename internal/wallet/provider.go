package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
)

// CodeUserDeclined is the provider error code for a human declining the
// signing prompt. It is an expected outcome, not a fault.
const CodeUserDeclined = 4001

type ProviderError struct {
	Code    int
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

// IsUserDeclined reports whether err carries the user-declined signing code.
func IsUserDeclined(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Code == CodeUserDeclined
}

// Block carries the subset of ledger block fields the fee strategy needs.
// BaseFee is nil on networks without a fee market.
type Block struct {
	Number  uint64
	BaseFee *big.Int
}

// Receipt is a finalized transaction receipt. Succeeded mirrors the ledger
// status flag.
type Receipt struct {
	TxHash      string
	BlockNumber uint64
	Succeeded   bool
}

// TxParams describes a plain value transfer. Either GasPrice (legacy) or
// MaxFee+PriorityFee (dynamic) is set, never both.
type TxParams struct {
	From        string
	To          string
	Value       *big.Int
	GasLimit    uint64
	GasPrice    *big.Int
	MaxFee      *big.Int
	PriorityFee *big.Int
}

// Provider is the injected wallet provider the settlement layer talks to.
// Submission may block indefinitely on human interaction; receipt lookups
// return (nil, nil) while the transaction is unmined.
type Provider interface {
	RequestAccounts(ctx context.Context) ([]string, error)
	Accounts(ctx context.Context) ([]string, error)
	ChainID(ctx context.Context) (string, error)
	GasPrice(ctx context.Context) (*big.Int, error)
	LatestBlock(ctx context.Context) (*Block, error)
	Balance(ctx context.Context, address string) (*big.Int, error)
	TransactionReceipt(ctx context.Context, txHash string) (*Receipt, error)
	SendTransaction(ctx context.Context, params TxParams) (string, error)
	SignMessage(ctx context.Context, message, account string) (string, error)
}
