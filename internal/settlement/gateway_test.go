package settlement

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"testing"

	"github.com/victorcuaresmadev/MicroTrust-sub000/internal/wallet"
)

type fakeProvider struct {
	accounts  []string
	balance   *big.Int
	baseFee   *big.Int
	gasPrice  *big.Int
	receipt   *wallet.Receipt
	recErr    error
	sent      []wallet.TxParams
	sendErrs  []error
	accErr    error
	nextHash  string
	blockErr  error
	priceErr  error
	sendCalls int
}

func (f *fakeProvider) RequestAccounts(ctx context.Context) ([]string, error) {
	return f.Accounts(ctx)
}

func (f *fakeProvider) Accounts(_ context.Context) ([]string, error) {
	if f.accErr != nil {
		return nil, f.accErr
	}
	return f.accounts, nil
}

func (f *fakeProvider) ChainID(_ context.Context) (string, error) { return "0x1", nil }

func (f *fakeProvider) GasPrice(_ context.Context) (*big.Int, error) {
	if f.priceErr != nil {
		return nil, f.priceErr
	}
	if f.gasPrice == nil {
		return big.NewInt(1_000_000_000), nil
	}
	return f.gasPrice, nil
}

func (f *fakeProvider) LatestBlock(_ context.Context) (*wallet.Block, error) {
	if f.blockErr != nil {
		return nil, f.blockErr
	}
	return &wallet.Block{Number: 100, BaseFee: f.baseFee}, nil
}

func (f *fakeProvider) Balance(_ context.Context, _ string) (*big.Int, error) {
	if f.balance == nil {
		return big.NewInt(0), nil
	}
	return f.balance, nil
}

func (f *fakeProvider) TransactionReceipt(_ context.Context, _ string) (*wallet.Receipt, error) {
	return f.receipt, f.recErr
}

func (f *fakeProvider) SendTransaction(_ context.Context, params wallet.TxParams) (string, error) {
	f.sent = append(f.sent, params)
	idx := f.sendCalls
	f.sendCalls++
	if idx < len(f.sendErrs) && f.sendErrs[idx] != nil {
		return "", f.sendErrs[idx]
	}
	if f.nextHash == "" {
		return "0xhash", nil
	}
	return f.nextHash, nil
}

func (f *fakeProvider) SignMessage(_ context.Context, _, _ string) (string, error) {
	return "0xsig", nil
}

const testAccount = "0x00000000000000000000000000000000000a11ce"

func newGateway(p wallet.Provider) *Gateway {
	return NewGateway(p, slog.Default(), Options{})
}

func TestSubmitTransferDynamicFees(t *testing.T) {
	p := &fakeProvider{accounts: []string{testAccount}, baseFee: big.NewInt(10)}
	g := newGateway(p)

	hash, err := g.SubmitTransfer(context.Background(), testAccount, "0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB", 1.5, KindDisbursement)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if hash != "0xhash" {
		t.Fatalf("unexpected hash %s", hash)
	}
	tx := p.sent[0]
	if tx.MaxFee.Cmp(big.NewInt(20)) != 0 {
		t.Fatalf("max fee must be 2x base fee, got %v", tx.MaxFee)
	}
	if tx.PriorityFee.Cmp(defaultPriorityFee) != 0 {
		t.Fatalf("expected fixed priority fee, got %v", tx.PriorityFee)
	}
	if tx.GasPrice != nil {
		t.Fatalf("dynamic submission must not carry legacy gas price")
	}
	if tx.GasLimit != transferGasLimit {
		t.Fatalf("gas limit must be %d, got %d", transferGasLimit, tx.GasLimit)
	}
}

func TestSubmitTransferLegacyFallback(t *testing.T) {
	p := &fakeProvider{
		accounts: []string{testAccount},
		baseFee:  big.NewInt(10),
		gasPrice: big.NewInt(1000),
		sendErrs: []error{&wallet.ProviderError{Code: -32602, Message: "maxFeePerGas not supported"}},
	}
	g := newGateway(p)

	if _, err := g.SubmitTransfer(context.Background(), testAccount, "0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB", 1, KindDisbursement); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(p.sent) != 2 {
		t.Fatalf("expected dynamic attempt then legacy retry, got %d sends", len(p.sent))
	}
	legacy := p.sent[1]
	if legacy.MaxFee != nil || legacy.PriorityFee != nil {
		t.Fatalf("legacy retry must not carry dynamic fee fields")
	}
	// 50% premium on disbursement.
	if legacy.GasPrice.Cmp(big.NewInt(1500)) != 0 {
		t.Fatalf("expected 1500, got %v", legacy.GasPrice)
	}
}

func TestLegacyPremiumIsAsymmetric(t *testing.T) {
	p := &fakeProvider{accounts: []string{testAccount}, gasPrice: big.NewInt(1000)}
	g := newGateway(p)

	if _, err := g.SubmitTransfer(context.Background(), testAccount, "0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB", 1, KindRepayment); err != nil {
		t.Fatalf("submit: %v", err)
	}
	// No base fee on the network, so the first send is already legacy; 20%
	// premium for repayment.
	if p.sent[0].GasPrice.Cmp(big.NewInt(1200)) != 0 {
		t.Fatalf("expected 1200, got %v", p.sent[0].GasPrice)
	}
}

func TestSubmitTransferUserDeclined(t *testing.T) {
	p := &fakeProvider{
		accounts: []string{testAccount},
		baseFee:  big.NewInt(10),
		sendErrs: []error{&wallet.ProviderError{Code: wallet.CodeUserDeclined, Message: "user rejected"}},
	}
	g := newGateway(p)

	_, err := g.SubmitTransfer(context.Background(), testAccount, "0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB", 1, KindDisbursement)
	if !errors.Is(err, ErrUserDeclined) {
		t.Fatalf("expected ErrUserDeclined, got %v", err)
	}
	if len(p.sent) != 1 {
		t.Fatalf("a decline must not trigger a legacy retry")
	}
}

func TestSubmitTransferNoAccount(t *testing.T) {
	g := newGateway(&fakeProvider{})
	if _, err := g.SubmitTransfer(context.Background(), "", "0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB", 1, KindDisbursement); !errors.Is(err, ErrNoConnectedAccount) {
		t.Fatalf("expected ErrNoConnectedAccount, got %v", err)
	}
}

func TestSubmitTransferProviderDown(t *testing.T) {
	g := newGateway(&fakeProvider{accErr: errors.New("connection refused")})
	if _, err := g.SubmitTransfer(context.Background(), "", "0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB", 1, KindDisbursement); !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestClassifyInsufficientFunds(t *testing.T) {
	err := Classify(&wallet.ProviderError{Code: -32000, Message: "insufficient funds for gas * price + value"})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestCheckSettled(t *testing.T) {
	p := &fakeProvider{accounts: []string{testAccount}}
	g := newGateway(p)

	settled, err := g.CheckSettled(context.Background(), "0xhash")
	if err != nil || settled {
		t.Fatalf("no receipt must read as not-yet, got settled=%v err=%v", settled, err)
	}

	p.receipt = &wallet.Receipt{TxHash: "0xhash", Succeeded: false}
	if settled, _ = g.CheckSettled(context.Background(), "0xhash"); settled {
		t.Fatalf("failed receipt must not read as settled")
	}

	p.receipt = &wallet.Receipt{TxHash: "0xhash", Succeeded: true}
	if settled, _ = g.CheckSettled(context.Background(), "0xhash"); !settled {
		t.Fatalf("successful receipt must read as settled")
	}

	p.recErr = errors.New("connection reset")
	if _, err = g.CheckSettled(context.Background(), "0xhash"); err == nil {
		t.Fatalf("communication failure must surface as an error")
	}
}

func TestCheckReadiness(t *testing.T) {
	p := &fakeProvider{}
	g := newGateway(p)
	if r := g.CheckReadiness(context.Background()); r.Ready || r.Reason != "no_connected_account" {
		t.Fatalf("unexpected readiness %+v", r)
	}

	p.accounts = []string{testAccount}
	p.balance = big.NewInt(1) // below the fee reserve
	if r := g.CheckReadiness(context.Background()); r.Ready || r.Reason != "insufficient_balance" {
		t.Fatalf("unexpected readiness %+v", r)
	}

	p.balance = new(big.Int).Mul(defaultFeeReserve, big.NewInt(10))
	if r := g.CheckReadiness(context.Background()); !r.Ready {
		t.Fatalf("expected ready, got %+v", r)
	}
}

func TestToBaseUnits(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{1, "1000000000000000000"},
		{1.5, "1500000000000000000"},
		{0.000000000000000001, "1"},
		{2.3315, "2331500000000000000"},
		{0, "0"},
	}
	for _, tc := range cases {
		if got := ToBaseUnits(tc.in).String(); got != tc.want {
			t.Fatalf("ToBaseUnits(%v) = %s, want %s", tc.in, got, tc.want)
		}
	}
}
