package bitcoinrpc

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"cube/params"
)

type fakeNode struct {
	t        *testing.T
	chain    string
	blocks   uint64
	ibd      bool
	rawBlock string
	feeRate  float64
}

func (n *fakeNode) handler(w http.ResponseWriter, r *http.Request) {
	user, pass, ok := r.BasicAuth()
	require.True(n.t, ok)
	require.Equal(n.t, "rpcuser", user)
	require.Equal(n.t, "rpcpass", pass)

	var req rpcRequest
	require.NoError(n.t, json.NewDecoder(r.Body).Decode(&req))
	require.NotEmpty(n.t, req.ID)

	var result any
	switch req.Method {
	case "getblockchaininfo":
		result = map[string]any{
			"chain":                n.chain,
			"blocks":               n.blocks,
			"initialblockdownload": n.ibd,
		}
	case "getblockhash":
		result = "00000000000000000000000000000000000000000000000000000000000000aa"
	case "getblock":
		result = n.rawBlock
	case "estimatesmartfee":
		if n.feeRate > 0 {
			result = map[string]any{"feerate": n.feeRate, "blocks": 2}
		} else {
			result = map[string]any{"errors": []string{"Insufficient data or no feerate found"}}
		}
	default:
		n.t.Fatalf("unexpected method %s", req.Method)
	}

	raw, err := json.Marshal(result)
	require.NoError(n.t, err)
	require.NoError(n.t, json.NewEncoder(w).Encode(rpcResponse{
		Result: raw,
		ID:     req.ID,
	}))
}

func newTestClient(t *testing.T, node *fakeNode) *Client {
	t.Helper()
	node.t = t
	srv := httptest.NewServer(http.HandlerFunc(node.handler))
	t.Cleanup(srv.Close)
	return New(Config{URL: srv.URL, User: "rpcuser", Password: "rpcpass"}, slog.Default())
}

func TestValidate(t *testing.T) {
	c := newTestClient(t, &fakeNode{chain: "signet", blocks: 212_000})
	require.NoError(t, c.Validate(context.Background(), params.ChainSignet))
	require.NoError(t, c.Validate(context.Background(), params.ChainTestbed))
	require.ErrorIs(t, c.Validate(context.Background(), params.ChainMainnet), ErrWrongChain)
}

func TestValidateNotSynced(t *testing.T) {
	c := newTestClient(t, &fakeNode{chain: "signet", ibd: true})
	require.ErrorIs(t, c.Validate(context.Background(), params.ChainSignet), ErrNotSynced)
}

func TestGetChainTip(t *testing.T) {
	c := newTestClient(t, &fakeNode{chain: "main", blocks: 900_123})
	height, synced, err := c.GetChainTip(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(900_123), height)
	require.True(t, synced)
}

func TestEstimateFeeRate(t *testing.T) {
	// 0.00021 BTC/kvB is 21000 sat/kvB, 21 sat/vB.
	c := newTestClient(t, &fakeNode{chain: "signet", feeRate: 0.00021})
	rate, err := c.EstimateFeeRate(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, uint64(21), rate)
}

func TestEstimateFeeRateFloorsAtOne(t *testing.T) {
	c := newTestClient(t, &fakeNode{chain: "signet", feeRate: 0.00000100})
	rate, err := c.EstimateFeeRate(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, uint64(1), rate)
}

func TestEstimateFeeRateWarmup(t *testing.T) {
	c := newTestClient(t, &fakeNode{chain: "signet"})
	_, err := c.EstimateFeeRate(context.Background(), 2)
	require.ErrorIs(t, err, ErrNoFeeEstimate)
}

func TestGetBlock(t *testing.T) {
	msg := wire.NewMsgBlock(wire.NewBlockHeader(2,
		&chainhash.Hash{}, &chainhash.Hash{}, 0x1d00ffff, 0x12345678))
	msg.Header.Timestamp = time.Unix(1_700_000_000, 0)

	var buf bytes.Buffer
	require.NoError(t, msg.Serialize(&buf))

	c := newTestClient(t, &fakeNode{
		chain:    "signet",
		rawBlock: hex.EncodeToString(buf.Bytes()),
	})

	block, err := c.GetBlock(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, int32(42), block.Height())
	require.Equal(t, msg.Header.BlockHash(), *block.Hash())
}
