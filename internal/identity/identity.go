// Package identity loads and derives the ed25519 keypairs that sign
// voting transactions.
package identity

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/hkdf"
)

const hkdfInfoChild = "votectl/identity/child/v1"

var (
	ErrInvalidSecretKey = errors.New("identity: invalid secret key")
	ErrInvalidMnemonic  = errors.New("identity: invalid mnemonic")
)

// FromSecret derives a deterministic keypair whose seed is sha256(secret).
// Meant for fixtures where a readable name stands in for a wallet.
func FromSecret(secret []byte) solana.PrivateKey {
	seed := sha256.Sum256(secret)
	return solana.PrivateKey(ed25519.NewKeyFromSeed(seed[:]))
}

// FromSeed builds a keypair from a 32-byte ed25519 seed.
func FromSeed(seed []byte) (solana.PrivateKey, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: seed is %d bytes, want %d", ErrInvalidSecretKey, len(seed), ed25519.SeedSize)
	}
	return solana.PrivateKey(ed25519.NewKeyFromSeed(seed)), nil
}

// FromBase58 parses a base58 encoded 64-byte secret key.
func FromBase58(encoded string) (solana.PrivateKey, error) {
	raw, err := base58.Decode(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSecretKey, err)
	}
	return fromSecretKey(raw)
}

// LoadKeygenFile reads a keypair stored as a JSON array of 64 byte values,
// the layout the ledger's keygen tool writes.
func LoadKeygenFile(path string) (solana.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("identity: read %s: %w", path, err)
	}
	var values []uint16
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSecretKey, path, err)
	}
	key := make([]byte, len(values))
	for i, v := range values {
		if v > 0xff {
			return nil, fmt.Errorf("%w: %s: byte %d out of range", ErrInvalidSecretKey, path, i)
		}
		key[i] = byte(v)
	}
	return fromSecretKey(key)
}

// WriteKeygenFile stores key in the keygen JSON layout with owner-only
// permissions.
func WriteKeygenFile(path string, key solana.PrivateKey) error {
	values := make([]uint16, len(key))
	for i, b := range key {
		values[i] = uint16(b)
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("identity: create dir for %s: %w", path, err)
	}
	return os.WriteFile(path, raw, 0o600)
}

// NewMnemonic returns a fresh 24-word recovery phrase.
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}

// FromMnemonic recovers a keypair from a BIP-39 phrase: the first 32 bytes
// of the BIP-39 seed are the ed25519 seed.
func FromMnemonic(mnemonic, passphrase string) (solana.PrivateKey, error) {
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	seed := bip39.NewSeed(mnemonic, passphrase)
	return FromSeed(seed[:ed25519.SeedSize])
}

// DeriveChild expands seed into a labeled child keypair with HKDF-SHA256.
// The same seed and label always yield the same key.
func DeriveChild(seed []byte, label string) (solana.PrivateKey, error) {
	reader := hkdf.New(sha256.New, seed, nil, []byte(hkdfInfoChild+"/"+label))
	child := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(reader, child); err != nil {
		return nil, err
	}
	return FromSeed(child)
}

func fromSecretKey(raw []byte) (solana.PrivateKey, error) {
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: %d bytes, want %d", ErrInvalidSecretKey, len(raw), ed25519.PrivateKeySize)
	}
	key := solana.PrivateKey(raw)
	// The trailing half must be the public key of the leading seed.
	want := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
	if !key.PublicKey().Equals(solana.PublicKeyFromBytes(want[ed25519.SeedSize:])) {
		return nil, fmt.Errorf("%w: public half does not match seed", ErrInvalidSecretKey)
	}
	return key, nil
}
