package taproot

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/btcsuite/btcd/btcec/v2"
)

// keystoreKDFContext mirrors frost's keystore KDF tag, applied to the
// single-key deployment's private key file instead of a FROST share.
const keystoreKDFContext = "frost-keystore-v1"

// singleKeyEnvelope is the on-disk JSON shape for a single-key
// deployment's encrypted private key, matching the FROST keystore
// envelope's fields (spec.md §6) with the key package replaced by a
// raw 32-byte private key.
type singleKeyEnvelope struct {
	Version    int    `json:"version"`
	Salt       string `json:"salt"`   // hex(16)
	Nonce      string `json:"nonce"`  // hex(12)
	Ciphertext string `json:"ciphertext"`
	PublicKey  string `json:"public_key"` // hex(33), compressed
}

func deriveKeystoreKey(password string, salt []byte) [32]byte {
	h := sha256.New()
	h.Write([]byte(password))
	h.Write(salt)
	h.Write([]byte(keystoreKDFContext))
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// SaveSingleKey encrypts priv with password and writes it to path, for
// development/test deployments that sign with a single key instead of a
// FROST signer set.
func SaveSingleKey(path, password string, priv *btcec.PrivateKey) error {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("taproot: generating salt: %w", err)
	}
	nonce := make([]byte, 12)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("taproot: generating nonce: %w", err)
	}

	key := deriveKeystoreKey(password, salt)
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return fmt.Errorf("taproot: building cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("taproot: building gcm: %w", err)
	}

	plaintext := priv.Serialize()
	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	envelope := singleKeyEnvelope{
		Version:    1,
		Salt:       hex.EncodeToString(salt),
		Nonce:      hex.EncodeToString(nonce),
		Ciphertext: hex.EncodeToString(ciphertext),
		PublicKey:  hex.EncodeToString(priv.PubKey().SerializeCompressed()),
	}

	envelopeBytes, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return fmt.Errorf("taproot: marshaling envelope: %w", err)
	}

	return os.WriteFile(path, envelopeBytes, 0600)
}

// LoadSingleKey reads and decrypts the private key file at path.
func LoadSingleKey(path, password string) (*btcec.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("taproot: reading key file: %w", err)
	}

	var envelope singleKeyEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: parsing envelope: %v", ErrKeystoreCorrupt, err)
	}

	salt, err := hex.DecodeString(envelope.Salt)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding salt: %v", ErrKeystoreCorrupt, err)
	}
	nonce, err := hex.DecodeString(envelope.Nonce)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding nonce: %v", ErrKeystoreCorrupt, err)
	}
	ciphertext, err := hex.DecodeString(envelope.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding ciphertext: %v", ErrKeystoreCorrupt, err)
	}

	key := deriveKeystoreKey(password, salt)
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("taproot: building cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("taproot: building gcm: %w", err)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: decryption failed: %v", ErrKeystoreCorrupt, err)
	}

	priv, _ := btcec.PrivKeyFromBytes(plaintext)
	return priv, nil
}
