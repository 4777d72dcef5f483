package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testClientConfig(baseURL string) *ClientConfig {
	return &ClientConfig{
		BaseURL:       baseURL,
		RateLimit:     100,
		Timeout:       5 * time.Second,
		RetryAttempts: 1,
		RetryDelay:    time.Millisecond,
	}
}

func TestClient_GetTipHeight(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/blocks/tip/height" {
			w.Write([]byte("850123"))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := NewClient(testClientConfig(server.URL))

	height, err := client.GetTipHeight(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(850123), height)
}

func TestClient_GetAddressUTXOs(t *testing.T) {
	t.Parallel()

	want := []UTXOResponse{
		{TxID: "aa", Vout: 0, Value: 50000},
	}
	want[0].Status.Confirmed = true
	want[0].Status.BlockHeight = 800000

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/address/bc1qtest/utxo" {
			json.NewEncoder(w).Encode(want)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := NewClient(testClientConfig(server.URL))

	got, err := client.GetAddressUTXOs(context.Background(), "bc1qtest")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "aa", got[0].TxID)
	require.True(t, got[0].Status.Confirmed)
}

func TestClient_NotFound(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := NewClient(testClientConfig(server.URL))

	_, err := client.GetTxStatus(context.Background(), "deadbeef")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestClient_TransientRetry(t *testing.T) {
	t.Parallel()

	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("99"))
	}))
	defer server.Close()

	cfg := testClientConfig(server.URL)
	cfg.RetryAttempts = 3
	client := NewClient(cfg)

	height, err := client.GetTipHeight(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(99), height)
	require.Equal(t, 2, attempts)
}

func TestClient_BroadcastTx(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/tx" && r.Method == http.MethodPost {
			w.Write([]byte("abcd1234"))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := NewClient(testClientConfig(server.URL))

	txid, err := client.BroadcastTx(context.Background(), "0200000001...")
	require.NoError(t, err)
	require.Equal(t, "abcd1234", txid)
}

func TestClient_GetMerkleProof(t *testing.T) {
	t.Parallel()

	want := MerkleProofResponse{
		BlockHeight: 800000,
		Merkle:      []string{"aa", "bb"},
		Pos:         3,
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/tx/deadbeef/merkle-proof" {
			json.NewEncoder(w).Encode(want)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := NewClient(testClientConfig(server.URL))

	got, err := client.GetMerkleProof(context.Background(), "deadbeef")
	require.NoError(t, err)
	require.Equal(t, want.BlockHeight, got.BlockHeight)
	require.Equal(t, want.Pos, got.Pos)
}
