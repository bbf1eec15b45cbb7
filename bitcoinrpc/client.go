// Package bitcoinrpc is a thin JSON-RPC client for the external bitcoind
// the node anchors to. Only the handful of calls the sync path needs are
// exposed.
package bitcoinrpc

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/google/uuid"

	"cube/params"
)

var (
	ErrWrongChain        = errors.New("bitcoinrpc: node runs a different chain")
	ErrNotSynced         = errors.New("bitcoinrpc: node is still in initial block download")
	ErrMalformedResponse = errors.New("bitcoinrpc: malformed response")
	ErrNoFeeEstimate     = errors.New("bitcoinrpc: node has no fee estimate yet")
)

// Config holds the bitcoind endpoint credentials.
type Config struct {
	URL      string
	User     string
	Password string
}

// Client talks JSON-RPC 1.0 to one bitcoind instance.
type Client struct {
	log  *slog.Logger
	cfg  Config
	http *http.Client
}

// New returns a client for the configured endpoint.
func New(cfg Config, log *slog.Logger) *Client {
	return &Client{
		log: log.With("component", "bitcoin_rpc"),
		cfg: cfg,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
	ID     string          `json:"id"`
}

func (c *Client) call(ctx context.Context, method string, params []any, result any) error {
	id := uuid.NewString()
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "1.0",
		ID:      id,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.cfg.User, c.cfg.Password)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("bitcoinrpc: %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("bitcoinrpc: %s: %w", method, err)
	}

	var decoded rpcResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedResponse, method, err)
	}
	if decoded.Error != nil {
		return fmt.Errorf("bitcoinrpc: %s: rpc error %d: %s",
			method, decoded.Error.Code, decoded.Error.Message)
	}
	if decoded.ID != id {
		return fmt.Errorf("%w: %s: response id mismatch", ErrMalformedResponse, method)
	}
	if result != nil {
		if err := json.Unmarshal(decoded.Result, result); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrMalformedResponse, method, err)
		}
	}
	return nil
}

type blockchainInfo struct {
	Chain                string `json:"chain"`
	Blocks               uint64 `json:"blocks"`
	InitialBlockDownload bool   `json:"initialblockdownload"`
}

// Validate checks that the endpoint serves the expected chain and has
// left initial block download.
func (c *Client) Validate(ctx context.Context, chain params.Chain) error {
	var info blockchainInfo
	if err := c.call(ctx, "getblockchaininfo", nil, &info); err != nil {
		return err
	}
	if info.Chain != chain.BitcoinNetworkName() {
		return fmt.Errorf("%w: node on %q, expected %q",
			ErrWrongChain, info.Chain, chain.BitcoinNetworkName())
	}
	if info.InitialBlockDownload {
		return ErrNotSynced
	}
	return nil
}

// GetChainTip returns the node's best height and whether it considers
// itself synced.
func (c *Client) GetChainTip(ctx context.Context) (uint64, bool, error) {
	var info blockchainInfo
	if err := c.call(ctx, "getblockchaininfo", nil, &info); err != nil {
		return 0, false, err
	}
	return info.Blocks, !info.InitialBlockDownload, nil
}

type smartFeeResult struct {
	FeeRate float64  `json:"feerate"`
	Errors  []string `json:"errors"`
}

// EstimateFeeRate asks the node for a fee estimate targeting confirmation
// within confTarget blocks and returns it in satoshi per vbyte, floored
// at 1. The estimator answers with no feerate while it warms up; that is
// reported as ErrNoFeeEstimate.
func (c *Client) EstimateFeeRate(ctx context.Context, confTarget uint64) (uint64, error) {
	var result smartFeeResult
	if err := c.call(ctx, "estimatesmartfee", []any{confTarget}, &result); err != nil {
		return 0, err
	}
	if result.FeeRate <= 0 {
		return 0, fmt.Errorf("%w: %v", ErrNoFeeEstimate, result.Errors)
	}
	perKVB, err := btcutil.NewAmount(result.FeeRate)
	if err != nil {
		return 0, fmt.Errorf("%w: estimatesmartfee: %v", ErrMalformedResponse, err)
	}
	satPerVB := uint64(perKVB) / 1000
	if satPerVB == 0 {
		satPerVB = 1
	}
	return satPerVB, nil
}

// GetBlock fetches and parses the block at the given height.
func (c *Client) GetBlock(ctx context.Context, height uint64) (*btcutil.Block, error) {
	var hash string
	if err := c.call(ctx, "getblockhash", []any{height}, &hash); err != nil {
		return nil, err
	}

	var rawHex string
	if err := c.call(ctx, "getblock", []any{hash, 0}, &rawHex); err != nil {
		return nil, err
	}
	raw, err := hex.DecodeString(rawHex)
	if err != nil {
		return nil, fmt.Errorf("%w: getblock: %v", ErrMalformedResponse, err)
	}
	block, err := btcutil.NewBlockFromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: getblock: %v", ErrMalformedResponse, err)
	}
	block.SetHeight(int32(height))
	return block, nil
}
