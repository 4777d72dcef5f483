package frost

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleCommitmentHex() string {
	d := scalarBaseMult(newScalar(big.NewInt(7)))
	e := scalarBaseMult(newScalar(big.NewInt(11)))
	c := Commitment{D: d.liftEvenY(), E: e.liftEvenY()}
	return hex.EncodeToString(c.Bytes())
}

func TestHTTPSignerClient_Healthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			json.NewEncoder(w).Encode(healthResponse{Status: "ok", KeyLoaded: true})
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := NewHTTPSignerClient(HTTPSignerClientConfig{BaseURL: server.URL, SignerID: 1})
	require.True(t, client.Healthy(context.Background()))
}

func TestHTTPSignerClient_HealthyFalseOnKeyNotLoaded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(healthResponse{Status: "ok", KeyLoaded: false})
	}))
	defer server.Close()

	client := NewHTTPSignerClient(HTTPSignerClientConfig{BaseURL: server.URL, SignerID: 1})
	require.False(t, client.Healthy(context.Background()))
}

func TestHTTPSignerClient_HealthyFalseOnUnreachable(t *testing.T) {
	client := NewHTTPSignerClient(HTTPSignerClientConfig{BaseURL: "http://127.0.0.1:1", SignerID: 1})
	require.False(t, client.Healthy(context.Background()))
}

func TestHTTPSignerClient_SignRound1DecodesCommitment(t *testing.T) {
	commitmentHex := sampleCommitmentHex()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/round1", r.URL.Path)
		json.NewEncoder(w).Encode(round1Response{
			Commitment: commitmentHex,
			SignerID:   "2",
			Identifier: "2",
		})
	}))
	defer server.Close()

	client := NewHTTPSignerClient(HTTPSignerClientConfig{BaseURL: server.URL, SignerID: 2})

	var sighash [32]byte
	commitment, id, err := client.SignRound1(context.Background(), "session-1", sighash, nil)
	require.NoError(t, err)
	require.Equal(t, Identifier(2), id)
	require.Equal(t, commitmentHex, hex.EncodeToString(commitment.Bytes()))
}

func TestHTTPSignerClient_SignRound2DecodesShare(t *testing.T) {
	share := newScalar(big.NewInt(42))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/round2", r.URL.Path)
		json.NewEncoder(w).Encode(round2Response{
			SignatureShare: hex.EncodeToString(share.bytes()),
			SignerID:       "1",
		})
	}))
	defer server.Close()

	client := NewHTTPSignerClient(HTTPSignerClientConfig{BaseURL: server.URL, SignerID: 1})

	var sighash [32]byte
	got, err := client.SignRound2(context.Background(), "session-1", sighash, nil, map[Identifier]Commitment{}, []Identifier{1})
	require.NoError(t, err)
	require.Equal(t, share.bytes(), got.bytes())
}

func TestHTTPSignerClient_SurfacesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"KEY_NOT_LOADED"}`))
	}))
	defer server.Close()

	client := NewHTTPSignerClient(HTTPSignerClientConfig{BaseURL: server.URL, SignerID: 1})

	var sighash [32]byte
	_, _, err := client.SignRound1(context.Background(), "session-1", sighash, nil)
	require.ErrorIs(t, err, ErrSignerHTTP)
}
