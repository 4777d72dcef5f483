package frost

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestServer_HealthReflectsKeyState(t *testing.T) {
	signer := mustNewSigner(t)
	srv := httptest.NewServer(NewServer(signer, nil).Handler())
	defer srv.Close()

	client := NewHTTPSignerClient(HTTPSignerClientConfig{BaseURL: srv.URL, SignerID: 1})
	require.False(t, client.Healthy(context.Background()))

	signers := []*Signer{signer, mustNewSigner(t), mustNewSigner(t)}
	runDKG(t, signers, 2, 3)

	require.True(t, client.Healthy(context.Background()))
}

func TestServer_SignRound1And2ProducesConsistentShare(t *testing.T) {
	signers := []*Signer{mustNewSigner(t), mustNewSigner(t), mustNewSigner(t)}
	runDKG(t, signers, 2, 3)

	srv1 := httptest.NewServer(NewServer(signers[0], nil).Handler())
	defer srv1.Close()
	srv2 := httptest.NewServer(NewServer(signers[1], nil).Handler())
	defer srv2.Close()

	client1 := NewHTTPSignerClient(HTTPSignerClientConfig{BaseURL: srv1.URL, SignerID: 1})
	client2 := NewHTTPSignerClient(HTTPSignerClientConfig{BaseURL: srv2.URL, SignerID: 2})

	ctx := context.Background()
	sessionID := "http-session-1"
	sighash := sha256.Sum256([]byte("message"))

	c1, id1, err := client1.SignRound1(ctx, sessionID, sighash, nil)
	require.NoError(t, err)
	c2, id2, err := client2.SignRound1(ctx, sessionID, sighash, nil)
	require.NoError(t, err)

	commitments := map[Identifier]Commitment{id1: c1, id2: c2}
	identifiers := []Identifier{id1, id2}

	share1, err := client1.SignRound2(ctx, sessionID, sighash, nil, commitments, identifiers)
	require.NoError(t, err)
	require.False(t, share1.isZero())

	share2, err := client2.SignRound2(ctx, sessionID, sighash, nil, commitments, identifiers)
	require.NoError(t, err)
	require.False(t, share2.isZero())
}

func TestServer_SignRound2RejectsUnknownSession(t *testing.T) {
	signers := []*Signer{mustNewSigner(t), mustNewSigner(t), mustNewSigner(t)}
	runDKG(t, signers, 2, 3)

	srv := httptest.NewServer(NewServer(signers[0], nil).Handler())
	defer srv.Close()
	client := NewHTTPSignerClient(HTTPSignerClientConfig{BaseURL: srv.URL, SignerID: 1})

	var sighash [32]byte
	_, err := client.SignRound2(context.Background(), "never-started", sighash, nil, nil, nil)
	require.Error(t, err)
}

func TestServer_DKGRound1And2ExchangePackagesOverHTTP(t *testing.T) {
	srvA := httptest.NewServer(NewServer(mustNewSigner(t), nil).Handler())
	defer srvA.Close()
	srvB := httptest.NewServer(NewServer(mustNewSigner(t), nil).Handler())
	defer srvB.Close()

	respA := postJSON(t, srvA.URL+"/dkg/round1", dkgRound1Request{
		CeremonyID: "ceremony-http", Self: "1", Threshold: 2, Total: 2,
	})
	var r1A dkgRound1Response
	require.NoError(t, json.Unmarshal(respA, &r1A))

	respB := postJSON(t, srvB.URL+"/dkg/round1", dkgRound1Request{
		CeremonyID: "ceremony-http", Self: "2", Threshold: 2, Total: 2,
	})
	var r1B dkgRound1Response
	require.NoError(t, json.Unmarshal(respB, &r1B))

	round1Packages := map[string]string{"1": r1A.Package, "2": r1B.Package}

	respA2 := postJSON(t, srvA.URL+"/dkg/round2", dkgRound2Request{
		CeremonyID:     "ceremony-http",
		Round1Packages: round1Packages,
	})
	var r2A dkgRound2Response
	require.NoError(t, json.Unmarshal(respA2, &r2A))
	require.Len(t, r2A.Packages, 1)
	require.Contains(t, r2A.Packages, "2")
}

func postJSON(t *testing.T, url string, payload any) []byte {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return buf.Bytes()
}
