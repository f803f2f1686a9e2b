package wallet

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"
)

// StubProvider fakes a connected wallet for local runs: one funded account,
// legacy fee market, receipts that settle after a couple of polls.
type StubProvider struct {
	mu           sync.Mutex
	accounts     []string
	balance      *big.Int
	receiptPolls map[string]int
	settleAfter  int
}

func NewStubProvider() *StubProvider {
	balance, _ := new(big.Int).SetString("56bc75e2d63100000", 16) // 100 ether
	return &StubProvider{
		accounts:     []string{"0x00000000000000000000000000000000000a11ce"},
		balance:      balance,
		receiptPolls: map[string]int{},
		settleAfter:  2,
	}
}

func (s *StubProvider) RequestAccounts(_ context.Context) ([]string, error) {
	return append([]string{}, s.accounts...), nil
}

func (s *StubProvider) Accounts(_ context.Context) ([]string, error) {
	return append([]string{}, s.accounts...), nil
}

func (s *StubProvider) ChainID(_ context.Context) (string, error) {
	return "0xaa36a7", nil
}

func (s *StubProvider) GasPrice(_ context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (s *StubProvider) LatestBlock(_ context.Context) (*Block, error) {
	return &Block{Number: uint64(time.Now().Unix()), BaseFee: nil}, nil
}

func (s *StubProvider) Balance(_ context.Context, _ string) (*big.Int, error) {
	return new(big.Int).Set(s.balance), nil
}

func (s *StubProvider) TransactionReceipt(_ context.Context, txHash string) (*Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receiptPolls[txHash]++
	if s.receiptPolls[txHash] < s.settleAfter {
		return nil, nil
	}
	return &Receipt{TxHash: txHash, BlockNumber: uint64(time.Now().Unix()), Succeeded: true}, nil
}

func (s *StubProvider) SendTransaction(_ context.Context, params TxParams) (string, error) {
	prefix := strings.TrimPrefix(params.To, "0x")
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return fmt.Sprintf("0xstub%s%x", prefix, time.Now().UTC().UnixNano()), nil
}

func (s *StubProvider) SignMessage(_ context.Context, message, _ string) (string, error) {
	return fmt.Sprintf("0xsig%x", len(message)), nil
}
