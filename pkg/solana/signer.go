package solana

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	bloctotypes "github.com/blocto/solana-go-sdk/types"
	"github.com/gagliardetto/solana-go"
)

// Signer holds one wallet's signing key. It is the only capability the
// execution layer receives; key custody stays inside this package.
type Signer struct {
	privateKey solana.PrivateKey
}

// NewSignerFromBase58 builds a signer from a base58-encoded private key.
func NewSignerFromBase58(encoded string) (*Signer, error) {
	key, err := solana.PrivateKeyFromBase58(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &Signer{privateKey: key}, nil
}

// PublicKey returns the wallet address.
func (s *Signer) PublicKey() solana.PublicKey {
	return s.privateKey.PublicKey()
}

// SignTransaction signs every required signature slot owned by this wallet.
func (s *Signer) SignTransaction(tx *solana.Transaction) error {
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(s.privateKey.PublicKey()) {
			return &s.privateKey
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}
	return nil
}

// KeystoreEntry is the on-disk format for an encrypted wallet key.
type KeystoreEntry struct {
	Address      string `json:"address"`
	EncryptedKey string `json:"encrypted_key"`
	Version      int    `json:"version"`
}

// GenerateWallet creates a fresh keypair and returns the address plus the
// base58 private key. Generation uses the blocto SDK account helper.
func GenerateWallet() (address string, privateKey string) {
	account := bloctotypes.NewAccount()
	return account.PublicKey.ToBase58(), base58Encode(account.PrivateKey)
}

func base58Encode(key []byte) string {
	return solana.PrivateKey(key).String()
}

// EncryptPrivateKey encrypts a private key with AES-256-GCM using a key
// derived from password.
func EncryptPrivateKey(privateKey []byte, password string) (string, error) {
	block, err := aes.NewCipher(deriveKey(password))
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	// nonce is prepended to the ciphertext for storage
	ciphertext := gcm.Seal(nonce, nonce, privateKey, nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// DecryptPrivateKey reverses EncryptPrivateKey.
func DecryptPrivateKey(encryptedKey string, password string) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encryptedKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}

	block, err := aes.NewCipher(deriveKey(password))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	plaintext, err := gcm.Open(nil, nonce, ciphertext[gcm.NonceSize():], nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}

// SaveKeystore writes an encrypted key entry to path as JSON.
func SaveKeystore(entry KeystoreEntry, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create keystore dir: %w", err)
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal keystore entry: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// LoadKeystore reads an encrypted key entry from path.
func LoadKeystore(path string) (*KeystoreEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keystore file: %w", err)
	}
	var entry KeystoreEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to parse keystore file: %w", err)
	}
	return &entry, nil
}

// NewSignerFromKeystore decrypts the keystore entry at path and returns a signer.
func NewSignerFromKeystore(path, password string) (*Signer, error) {
	entry, err := LoadKeystore(path)
	if err != nil {
		return nil, err
	}
	raw, err := DecryptPrivateKey(entry.EncryptedKey, password)
	if err != nil {
		return nil, err
	}
	return &Signer{privateKey: solana.PrivateKey(raw)}, nil
}

func deriveKey(password string) []byte {
	hash := sha256.Sum256([]byte(password))
	return hash[:]
}
