package frost

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
)

// keystoreKDFContext is the context tag mixed into the password-derived
// key, per spec.md §6: SHA-256(password || salt || "frost-keystore-v1").
const keystoreKDFContext = "frost-keystore-v1"

// keystoreEnvelope is the on-disk JSON shape described in spec.md §6.
type keystoreEnvelope struct {
	Version        int    `json:"version"`
	SignerID       string `json:"signer_id"`
	Salt           string `json:"salt"`   // hex(16)
	Nonce          string `json:"nonce"`  // hex(12)
	Ciphertext     string `json:"ciphertext"`
	GroupPublicKey string `json:"group_public_key"`
}

// keystorePlaintext is the authenticated-encrypted payload.
type keystorePlaintext struct {
	KeyPackage       keyPackageWire `json:"key_package"`
	PublicKeyPackage publicKeyPackageWire `json:"public_key_package"`
}

type keyPackageWire struct {
	Identifier  uint16 `json:"identifier"`
	SecretShare string `json:"secret_share"` // hex(32)
	Threshold   int    `json:"threshold"`
	Total       int    `json:"total"`
}

type publicKeyPackageWire struct {
	GroupPublicKey      string            `json:"group_public_key"` // hex(32), x-only
	VerificationShares  map[string]string `json:"verification_shares"`
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

// SaveKeystore encrypts kp with password and writes the envelope to path.
func SaveKeystore(path, signerID, password string, kp *KeyPackage) error {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("frost: generating salt: %w", err)
	}
	nonce := make([]byte, 12)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("frost: generating nonce: %w", err)
	}

	plain := keystorePlaintext{
		KeyPackage: keyPackageWire{
			Identifier:  uint16(kp.Identifier),
			SecretShare: hex.EncodeToString(kp.SecretShare.bytes()),
			Threshold:   kp.Threshold,
			Total:       kp.TotalParticipants,
		},
		PublicKeyPackage: publicKeyPackageWire{
			GroupPublicKey:     hex.EncodeToString(kp.GroupPublicKey.xOnlyBytes()),
			VerificationShares: make(map[string]string, len(kp.VerificationShares)),
		},
	}
	for id, p := range kp.VerificationShares {
		plain.PublicKeyPackage.VerificationShares[fmt.Sprintf("%d", id)] = hex.EncodeToString(p.xOnlyBytes())
	}

	plainBytes, err := json.Marshal(plain)
	if err != nil {
		return fmt.Errorf("frost: marshaling key package: %w", err)
	}

	key := deriveKeystoreKey(password, salt)
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return fmt.Errorf("frost: building cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("frost: building gcm: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, plainBytes, nil)

	envelope := keystoreEnvelope{
		Version:        1,
		SignerID:       signerID,
		Salt:           hex.EncodeToString(salt),
		Nonce:          hex.EncodeToString(nonce),
		Ciphertext:     hex.EncodeToString(ciphertext),
		GroupPublicKey: hex.EncodeToString(kp.GroupPublicKey.xOnlyBytes()),
	}

	envelopeBytes, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return fmt.Errorf("frost: marshaling envelope: %w", err)
	}

	return os.WriteFile(path, envelopeBytes, 0600)
}

// LoadKeystore reads and decrypts the keystore envelope at path.
func LoadKeystore(path, password string) (*KeyPackage, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var envelope keystoreEnvelope
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
		return nil, fmt.Errorf("frost: building cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("frost: building gcm: %w", err)
	}

	plainBytes, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: decryption failed: %v", ErrKeystoreCorrupt, err)
	}

	var plain keystorePlaintext
	if err := json.Unmarshal(plainBytes, &plain); err != nil {
		return nil, fmt.Errorf("%w: parsing plaintext: %v", ErrKeystoreCorrupt, err)
	}

	secretBytes, err := hex.DecodeString(plain.KeyPackage.SecretShare)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding secret share: %v", ErrKeystoreCorrupt, err)
	}

	groupPubBytes, err := hex.DecodeString(plain.PublicKeyPackage.GroupPublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding group public key: %v", ErrKeystoreCorrupt, err)
	}

	secretShare := scalarFromBytes(secretBytes)
	groupPubPoint, err := xOnlyToPoint(groupPubBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeystoreCorrupt, err)
	}

	verificationShares := make(map[Identifier]point, len(plain.PublicKeyPackage.VerificationShares))
	for idStr, hexPoint := range plain.PublicKeyPackage.VerificationShares {
		var id uint16
		if _, err := fmt.Sscanf(idStr, "%d", &id); err != nil {
			continue
		}
		b, err := hex.DecodeString(hexPoint)
		if err != nil {
			continue
		}
		p, err := xOnlyToPoint(b)
		if err != nil {
			continue
		}
		verificationShares[Identifier(id)] = p
	}

	return &KeyPackage{
		Identifier:         Identifier(plain.KeyPackage.Identifier),
		SecretShare:        secretShare,
		GroupPublicKey:     groupPubPoint,
		VerificationShares: verificationShares,
		Threshold:          plain.KeyPackage.Threshold,
		TotalParticipants:  plain.KeyPackage.Total,
	}, nil
}

// xOnlyToPoint lifts a 32-byte x-only coordinate to an even-Y point,
// matching BIP-340's lifting rule.
func xOnlyToPoint(x []byte) (point, error) {
	if len(x) != 32 {
		return point{}, fmt.Errorf("x-only coordinate must be 32 bytes, got %d", len(x))
	}
	xi := new(big.Int).SetBytes(x)

	// y^2 = x^3 + 7 mod p
	ySq := new(big.Int).Exp(xi, big.NewInt(3), curve.P)
	ySq.Add(ySq, big.NewInt(7))
	ySq.Mod(ySq, curve.P)

	y := new(big.Int).ModSqrt(ySq, curve.P)
	if y == nil {
		return point{}, fmt.Errorf("invalid x coordinate: not on curve")
	}

	p := point{x: xi, y: y}
	return p.liftEvenY(), nil
}

// KeystoreExists reports whether a keystore file is present at path.
func KeystoreExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
