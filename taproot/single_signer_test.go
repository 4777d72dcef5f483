package taproot

import (
	"context"
	"crypto/sha256"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/require"
)

func TestSingleKeySigner_SignWithoutTweakVerifies(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	signer := NewSingleKeySigner(priv)
	sighash := sha256.Sum256([]byte("message"))

	sig, err := signer.SignWithThreshold(context.Background(), sighash, nil)
	require.NoError(t, err)

	outputKey := txscript.ComputeTaprootOutputKey(signer.PublicKey(), nil)

	parsed, err := schnorr.ParseSignature(sig[:])
	require.NoError(t, err)
	require.True(t, parsed.Verify(sighash[:], outputKey))
}

func TestSingleKeySigner_SignWithTweakProducesDifferentSignature(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	signer := NewSingleKeySigner(priv)

	sighash := sha256.Sum256([]byte("message"))
	var tweak [32]byte
	copy(tweak[:], []byte("some-commitment-bytes-32-long!!"))

	untweaked, err := signer.SignWithThreshold(context.Background(), sighash, nil)
	require.NoError(t, err)

	tweaked, err := signer.SignWithThreshold(context.Background(), sighash, &tweak)
	require.NoError(t, err)

	require.NotEqual(t, untweaked, tweaked)
}
