package chain_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsedelta/backend/internal/chain"
)

// rpcNode answers eth_blockNumber and eth_chainId.
func rpcNode(t *testing.T, chainID string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		switch req.Method {
		case "eth_blockNumber":
			resp["result"] = "0x1b4"
		case "eth_chainId":
			resp["result"] = chainID
		default:
			resp["error"] = map[string]any{"code": -32601, "message": "method not found"}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClient_BlockNumber(t *testing.T) {
	srv := rpcNode(t, "0xaef3")
	c, err := chain.Dial(context.Background(), chain.Config{RPCURL: srv.URL, ChainID: 44787, Network: "alfajores"}, discard())
	require.NoError(t, err)
	defer c.Close()

	n, err := c.BlockNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(436), n)
	assert.NoError(t, c.Ping(context.Background()))
	assert.NoError(t, c.VerifyNetwork(context.Background()))
}

func TestClient_VerifyNetworkMismatch(t *testing.T) {
	srv := rpcNode(t, "0x1")
	c, err := chain.Dial(context.Background(), chain.Config{RPCURL: srv.URL, ChainID: 44787, Network: "alfajores"}, discard())
	require.NoError(t, err)
	defer c.Close()

	err = c.VerifyNetwork(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chain id 1")
}

func TestClient_Unreachable(t *testing.T) {
	srv := rpcNode(t, "0x1")
	url := srv.URL
	srv.Close()

	c, err := chain.Dial(context.Background(), chain.Config{RPCURL: url}, discard())
	require.NoError(t, err)
	defer c.Close()
	assert.Error(t, c.Ping(context.Background()))
}
