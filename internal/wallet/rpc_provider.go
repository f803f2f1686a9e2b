package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RPCProvider speaks the JSON-RPC request/response protocol of an external
// wallet provider over HTTP.
type RPCProvider struct {
	httpURL    string
	httpClient *http.Client
}

func NewRPCProvider(httpURL string) (*RPCProvider, error) {
	if strings.TrimSpace(httpURL) == "" {
		return nil, fmt.Errorf("missing CHAIN_HTTP_RPC")
	}
	return &RPCProvider{
		httpURL:    strings.TrimSpace(httpURL),
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}, nil
}

func (p *RPCProvider) RequestAccounts(ctx context.Context) ([]string, error) {
	var out []string
	if err := p.rpc(ctx, "eth_requestAccounts", []any{}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *RPCProvider) Accounts(ctx context.Context) ([]string, error) {
	var out []string
	if err := p.rpc(ctx, "eth_accounts", []any{}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *RPCProvider) ChainID(ctx context.Context) (string, error) {
	var out string
	if err := p.rpc(ctx, "eth_chainId", []any{}, &out); err != nil {
		return "", err
	}
	return out, nil
}

func (p *RPCProvider) GasPrice(ctx context.Context) (*big.Int, error) {
	var out string
	if err := p.rpc(ctx, "eth_gasPrice", []any{}, &out); err != nil {
		return nil, err
	}
	return parseHexBig(out)
}

func (p *RPCProvider) LatestBlock(ctx context.Context) (*Block, error) {
	var raw struct {
		Number        string `json:"number"`
		BaseFeePerGas string `json:"baseFeePerGas"`
	}
	if err := p.rpc(ctx, "eth_getBlockByNumber", []any{"latest", false}, &raw); err != nil {
		return nil, err
	}
	number, err := parseHexUint64(raw.Number)
	if err != nil {
		return nil, fmt.Errorf("invalid block number: %w", err)
	}
	block := &Block{Number: number}
	if strings.TrimSpace(raw.BaseFeePerGas) != "" {
		baseFee, err := parseHexBig(raw.BaseFeePerGas)
		if err != nil {
			return nil, fmt.Errorf("invalid baseFeePerGas: %w", err)
		}
		block.BaseFee = baseFee
	}
	return block, nil
}

func (p *RPCProvider) Balance(ctx context.Context, address string) (*big.Int, error) {
	var out string
	if err := p.rpc(ctx, "eth_getBalance", []any{address, "latest"}, &out); err != nil {
		return nil, err
	}
	return parseHexBig(out)
}

func (p *RPCProvider) TransactionReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	var raw json.RawMessage
	if err := p.rpc(ctx, "eth_getTransactionReceipt", []any{txHash}, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var rec struct {
		TransactionHash string `json:"transactionHash"`
		BlockNumber     string `json:"blockNumber"`
		Status          string `json:"status"`
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	blockNum, err := parseHexUint64(rec.BlockNumber)
	if err != nil {
		return nil, fmt.Errorf("invalid blockNumber in receipt: %w", err)
	}
	return &Receipt{
		TxHash:      rec.TransactionHash,
		BlockNumber: blockNum,
		Succeeded:   strings.EqualFold(strings.TrimSpace(rec.Status), "0x1"),
	}, nil
}

func (p *RPCProvider) SendTransaction(ctx context.Context, params TxParams) (string, error) {
	txObj := map[string]string{
		"from":  params.From,
		"to":    params.To,
		"value": "0x" + params.Value.Text(16),
		"gas":   fmt.Sprintf("0x%x", params.GasLimit),
	}
	if params.GasPrice != nil {
		txObj["gasPrice"] = "0x" + params.GasPrice.Text(16)
	}
	if params.MaxFee != nil {
		txObj["maxFeePerGas"] = "0x" + params.MaxFee.Text(16)
	}
	if params.PriorityFee != nil {
		txObj["maxPriorityFeePerGas"] = "0x" + params.PriorityFee.Text(16)
	}

	var txHash string
	if err := p.rpc(ctx, "eth_sendTransaction", []any{txObj}, &txHash); err != nil {
		return "", err
	}
	if !strings.HasPrefix(txHash, "0x") {
		return "", fmt.Errorf("invalid tx hash response")
	}
	return txHash, nil
}

func (p *RPCProvider) SignMessage(ctx context.Context, message, account string) (string, error) {
	var out string
	if err := p.rpc(ctx, "personal_sign", []any{message, account}, &out); err != nil {
		return "", err
	}
	return out, nil
}

func (p *RPCProvider) rpc(ctx context.Context, method string, params []any, out any) error {
	reqBody, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.httpURL, bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var payload struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return err
	}
	if payload.Error != nil {
		return &ProviderError{Code: payload.Error.Code, Message: payload.Error.Message}
	}
	if out == nil {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = payload.Result
		return nil
	}
	if len(payload.Result) == 0 {
		return fmt.Errorf("rpc empty result")
	}
	if err := json.Unmarshal(payload.Result, out); err != nil {
		return err
	}
	return nil
}

func parseHexUint64(v string) (uint64, error) {
	clean := strings.TrimSpace(strings.ToLower(v))
	clean = strings.TrimPrefix(clean, "0x")
	if clean == "" {
		return 0, fmt.Errorf("empty hex value")
	}
	return strconv.ParseUint(clean, 16, 64)
}

func parseHexBig(v string) (*big.Int, error) {
	clean := strings.TrimSpace(strings.ToLower(v))
	clean = strings.TrimPrefix(clean, "0x")
	if clean == "" {
		return nil, fmt.Errorf("empty hex value")
	}
	out, ok := new(big.Int).SetString(clean, 16)
	if !ok {
		return nil, fmt.Errorf("invalid hex value %q", v)
	}
	return out, nil
}
