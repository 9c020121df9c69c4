// Package crypto provides authenticated encryption for Crewdesk secrets.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/scrypt"
)

const (
	// KeySize is the size of the AES-256 key (32 bytes).
	KeySize = 32

	// IVSize is the size of the random IV generated per encryption (16 bytes).
	IVSize = 16

	// TagSize is the size of the GCM authentication tag (16 bytes).
	TagSize = 16
)

// kdfSalt is the fixed salt used when stretching a passphrase into a master
// key. It must never change: past ciphertexts depend on the derivation being
// deterministic.
var kdfSalt = []byte("crewdesk-master-key-v1")

var (
	// ErrInvalidKeySize indicates the master key is not the correct size.
	ErrInvalidKeySize = errors.New("master key must be 32 bytes")
	// ErrAuthenticationFailed indicates the ciphertext failed tag
	// verification: tampered or corrupted data, or the wrong key.
	ErrAuthenticationFailed = errors.New("secret authentication failed")
	// ErrMalformedSecret indicates an EncryptedSecret with fields that do
	// not decode or have impossible lengths.
	ErrMalformedSecret = errors.New("malformed encrypted secret")
)

// EncryptedSecret is an encrypted value at rest. It is opaque to all callers
// except the SecretCipher: none of its fields can be reconstructed into the
// plaintext without the master key.
type EncryptedSecret struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
	AuthTag    string `json:"auth_tag"`
}

// SecretCipher performs authenticated symmetric encryption with a master key
// derived once at process start. It is immutable after construction and safe
// for unbounded concurrent use.
type SecretCipher struct {
	aead cipher.AEAD
}

// NewSecretCipher creates a SecretCipher from a raw 32-byte master key.
func NewSecretCipher(masterKey []byte) (*SecretCipher, error) {
	if len(masterKey) != KeySize {
		return nil, ErrInvalidKeySize
	}
	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, IVSize)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return &SecretCipher{aead: aead}, nil
}

// DeriveMasterKey turns the externally-supplied master secret into a raw
// AES-256 key. A value that decodes (hex or base64) to exactly 32 bytes is
// used directly; anything else is treated as a passphrase and stretched
// through scrypt with a fixed salt, so operators can supply a human-chosen
// value without weakening the key.
func DeriveMasterKey(secret string) ([]byte, error) {
	if secret == "" {
		return nil, errors.New("master key secret is empty")
	}

	if decoded, err := hex.DecodeString(secret); err == nil && len(decoded) == KeySize {
		return decoded, nil
	}
	if decoded, err := base64.StdEncoding.DecodeString(secret); err == nil && len(decoded) == KeySize {
		return decoded, nil
	}
	if len(secret) == KeySize {
		return []byte(secret), nil
	}

	key, err := scrypt.Key([]byte(secret), kdfSalt, 32768, 8, 1, KeySize)
	if err != nil {
		return nil, fmt.Errorf("derive master key: %w", err)
	}
	return key, nil
}

// GenerateMasterKey generates a new random master key. This is done once
// during initial server setup and stored securely by the operator.
func GenerateMasterKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("generate master key: %w", err)
	}
	return key, nil
}

// Encrypt encrypts plaintext with a fresh random IV. The IV is generated
// from crypto/rand on every call; reusing an IV under the same key breaks
// GCM confidentiality entirely, so there is no caller-supplied variant.
func (sc *SecretCipher) Encrypt(plaintext []byte) (*EncryptedSecret, error) {
	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("generate iv: %w", err)
	}

	sealed := sc.aead.Seal(nil, iv, plaintext, nil)
	// Seal appends the tag; split it out so the stored record carries
	// ciphertext, iv, and tag as separate fields.
	tagStart := len(sealed) - TagSize
	return &EncryptedSecret{
		Ciphertext: base64.StdEncoding.EncodeToString(sealed[:tagStart]),
		IV:         base64.StdEncoding.EncodeToString(iv),
		AuthTag:    base64.StdEncoding.EncodeToString(sealed[tagStart:]),
	}, nil
}

// Decrypt decrypts an EncryptedSecret. It fails with ErrAuthenticationFailed
// when the authentication tag does not verify; there is no degraded mode.
func (sc *SecretCipher) Decrypt(secret *EncryptedSecret) ([]byte, error) {
	if secret == nil {
		return nil, ErrMalformedSecret
	}

	ciphertext, err := base64.StdEncoding.DecodeString(secret.Ciphertext)
	if err != nil {
		return nil, ErrMalformedSecret
	}
	iv, err := base64.StdEncoding.DecodeString(secret.IV)
	if err != nil || len(iv) != IVSize {
		return nil, ErrMalformedSecret
	}
	tag, err := base64.StdEncoding.DecodeString(secret.AuthTag)
	if err != nil || len(tag) != TagSize {
		return nil, ErrMalformedSecret
	}

	plaintext, err := sc.aead.Open(nil, iv, append(ciphertext, tag...), nil)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return plaintext, nil
}

// EncryptString encrypts a string value.
func (sc *SecretCipher) EncryptString(plaintext string) (*EncryptedSecret, error) {
	return sc.Encrypt([]byte(plaintext))
}

// DecryptString decrypts an EncryptedSecret into a string.
func (sc *SecretCipher) DecryptString(secret *EncryptedSecret) (string, error) {
	plaintext, err := sc.Decrypt(secret)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// EncryptObject serializes v to JSON and encrypts the whole document as one
// atomic ciphertext, so a multi-field credential bundle does not leak its
// structure through field-by-field encryption.
func (sc *SecretCipher) EncryptObject(v any) (*EncryptedSecret, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal secret object: %w", err)
	}
	return sc.Encrypt(data)
}

// DecryptObject decrypts an EncryptedSecret and unmarshals the plaintext
// into v.
func (sc *SecretCipher) DecryptObject(secret *EncryptedSecret, v any) error {
	plaintext, err := sc.Decrypt(secret)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(plaintext, v); err != nil {
		return fmt.Errorf("unmarshal secret object: %w", err)
	}
	return nil
}
