package deposit

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"

	"github.com/btcshield/bridge/taproot"
)

// pkScriptForAddress returns the scriptPubKey for addr, used to build
// the prevout commitment the sweep transaction's sighash depends on.
func pkScriptForAddress(addr btcutil.Address) ([]byte, error) {
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, fmt.Errorf("deriving script for address: %w", err)
	}
	return script, nil
}

// serializeTx hex-encodes utx's wire-format transaction bytes for
// broadcast.
func serializeTx(utx *taproot.UnsignedTx) (string, error) {
	var buf bytes.Buffer
	if err := utx.Tx.Serialize(&buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf.Bytes()), nil
}
