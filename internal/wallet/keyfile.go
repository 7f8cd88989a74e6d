// Package wallet loads the oracle signing key, either raw from configuration
// or from a password-protected key file.
package wallet

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 480_000
	saltLen          = 16
	aesKeyLen        = 32
	keyFileVersion   = 1
)

// ErrNoKey is returned by LoadKey when no key source is configured.
var ErrNoKey = errors.New("wallet: no private key configured")

// keyFile is the on-disk format written by EncryptKey. Binary fields are
// standard base64.
type keyFile struct {
	Version    int    `json:"version"`
	Address    string `json:"address,omitempty"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// KeySource says where the oracle key comes from. A raw key wins over a key
// file.
type KeySource struct {
	RawKey   string
	KeyFile  string
	Password string
}

// NormalizeKey strips an optional 0x prefix and checks that the rest is a
// 32-byte hex string.
func NormalizeKey(raw string) (string, []byte, error) {
	hexKey := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	b, err := hex.DecodeString(hexKey)
	if err != nil {
		return "", nil, fmt.Errorf("wallet: private key is not hex: %w", err)
	}
	if len(b) != 32 {
		return "", nil, fmt.Errorf("wallet: private key must be 32 bytes, got %d", len(b))
	}
	return hexKey, b, nil
}

func deriveGCM(password string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, aesKeyLen, sha256.New))
	if err != nil {
		return nil, fmt.Errorf("wallet: create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("wallet: create gcm: %w", err)
	}
	return gcm, nil
}

// EncryptKey seals a private key with a password (PBKDF2-SHA256 and
// AES-256-GCM) and returns the JSON key file contents.
func EncryptKey(rawKey, password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("wallet: password must not be empty")
	}
	hexKey, keyBytes, err := NormalizeKey(rawKey)
	if err != nil {
		return nil, err
	}
	addr, err := AddressFromKey(hexKey)
	if err != nil {
		return nil, err
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("wallet: generate salt: %w", err)
	}
	gcm, err := deriveGCM(password, salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("wallet: generate nonce: %w", err)
	}

	return json.MarshalIndent(keyFile{
		Version:    keyFileVersion,
		Address:    addr.Hex(),
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(gcm.Seal(nil, nonce, keyBytes, nil)),
	}, "", "  ")
}

// DecryptKey opens a key file produced by EncryptKey and returns the key as
// hex without the 0x prefix.
func DecryptKey(data []byte, password string) (string, error) {
	if password == "" {
		return "", errors.New("wallet: password must not be empty")
	}
	var kf keyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return "", fmt.Errorf("wallet: parse key file: %w", err)
	}
	if kf.Version != keyFileVersion {
		return "", fmt.Errorf("wallet: unsupported key file version %d", kf.Version)
	}

	fields := make([][]byte, 3)
	for i, enc := range []string{kf.Salt, kf.Nonce, kf.Ciphertext} {
		b, err := base64.StdEncoding.DecodeString(enc)
		if err != nil {
			return "", fmt.Errorf("wallet: decode key file field %d: %w", i, err)
		}
		fields[i] = b
	}
	gcm, err := deriveGCM(password, fields[0])
	if err != nil {
		return "", err
	}
	if len(fields[1]) != gcm.NonceSize() {
		return "", fmt.Errorf("wallet: nonce must be %d bytes", gcm.NonceSize())
	}
	plain, err := gcm.Open(nil, fields[1], fields[2], nil)
	if err != nil {
		return "", fmt.Errorf("wallet: decrypt key (wrong password?): %w", err)
	}
	return hex.EncodeToString(plain), nil
}

// LoadKey resolves the oracle key from src. It returns ErrNoKey when src
// names no source.
func LoadKey(src KeySource) (string, error) {
	if src.RawKey != "" {
		hexKey, _, err := NormalizeKey(src.RawKey)
		return hexKey, err
	}
	if src.KeyFile != "" {
		data, err := os.ReadFile(src.KeyFile)
		if err != nil {
			return "", fmt.Errorf("wallet: read key file: %w", err)
		}
		return DecryptKey(data, src.Password)
	}
	return "", ErrNoKey
}
