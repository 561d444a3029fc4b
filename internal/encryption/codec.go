// Package encryption seals archive metadata with a key derived from a
// user credential.
//
// Keys are derived with PBKDF2-HMAC-SHA256 and data is sealed with AES-256-GCM
// (12-byte IV, 128-bit tag). Each Seal call draws a fresh salt and IV.
package encryption

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"

	apperrors "photovault/internal/errors"
)

const (
	EnvelopeVersion   = 1
	Algorithm         = "AES-256-GCM"
	KDF               = "PBKDF2-SHA256"
	DefaultIterations = 10000
	MaxIterations     = 10_000_000
	KeyLen            = 32
	SaltLen           = 16
	IVLen             = 12
)

// Params records how the envelope was sealed.
type Params struct {
	Algorithm  string `json:"algorithm"`
	KDF        string `json:"kdf"`
	Salt       string `json:"salt"` // base64
	IV         string `json:"iv"`   // base64
	Iterations int    `json:"iterations"`
}

// Envelope is the JSON document that replaces plaintext metadata in an
// encrypted archive.
type Envelope struct {
	Version    int    `json:"version"`
	Encrypted  bool   `json:"encrypted"`
	Encryption Params `json:"encryption"`
	Data       string `json:"data"`     // base64 ciphertext including the GCM tag
	Checksum   string `json:"checksum"` // hex SHA-256 of the plaintext
}

// DeriveKey stretches credential into a 256-bit key.
func DeriveKey(credential string, salt []byte, iterations int) []byte {
	return pbkdf2.Key([]byte(credential), salt, iterations, KeyLen, sha256.New)
}

// Encrypt seals plaintext under key with a random IV.
func Encrypt(plaintext, key []byte) (ciphertext, iv []byte, err error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}
	iv = make([]byte, IVLen)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, nil, fmt.Errorf("generating iv: %w", err)
	}
	return gcm.Seal(nil, iv, plaintext, nil), iv, nil
}

// Decrypt opens ciphertext. Any tampering or a wrong key yields ErrBadCredential.
func Decrypt(ciphertext, key, iv []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(iv) != gcm.NonceSize() {
		return nil, fmt.Errorf("iv must be %d bytes, got %d", gcm.NonceSize(), len(iv))
	}
	plaintext, err := gcm.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, apperrors.ErrBadCredential
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeyLen {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeyLen, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating gcm: %w", err)
	}
	return gcm, nil
}

// Seal derives a key from credential and encrypts plaintext into an Envelope.
func Seal(plaintext []byte, credential string, iterations int) (*Envelope, error) {
	if credential == "" {
		return nil, apperrors.ErrCredentialRequired
	}
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	if iterations > MaxIterations {
		return nil, fmt.Errorf("iteration count %d exceeds %d", iterations, MaxIterations)
	}

	salt := make([]byte, SaltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}

	key := DeriveKey(credential, salt, iterations)
	ciphertext, iv, err := Encrypt(plaintext, key)
	if err != nil {
		return nil, fmt.Errorf("encrypting: %w", err)
	}

	sum := sha256.Sum256(plaintext)
	return &Envelope{
		Version:   EnvelopeVersion,
		Encrypted: true,
		Encryption: Params{
			Algorithm:  Algorithm,
			KDF:        KDF,
			Salt:       base64.StdEncoding.EncodeToString(salt),
			IV:         base64.StdEncoding.EncodeToString(iv),
			Iterations: iterations,
		},
		Data:     base64.StdEncoding.EncodeToString(ciphertext),
		Checksum: hex.EncodeToString(sum[:]),
	}, nil
}

// Open decrypts env with credential and verifies the plaintext checksum.
func Open(env *Envelope, credential string) ([]byte, error) {
	if credential == "" {
		return nil, apperrors.ErrCredentialRequired
	}
	if env.Version != EnvelopeVersion {
		return nil, fmt.Errorf("unsupported envelope version: %d", env.Version)
	}
	if env.Encryption.Algorithm != Algorithm || env.Encryption.KDF != KDF {
		return nil, fmt.Errorf("unsupported encryption %s/%s", env.Encryption.Algorithm, env.Encryption.KDF)
	}
	if n := env.Encryption.Iterations; n <= 0 || n > MaxIterations {
		return nil, apperrors.Validationf("iteration count %d outside 1..%d", n, MaxIterations)
	}

	salt, err := base64.StdEncoding.DecodeString(env.Encryption.Salt)
	if err != nil {
		return nil, fmt.Errorf("decoding salt: %w", err)
	}
	iv, err := base64.StdEncoding.DecodeString(env.Encryption.IV)
	if err != nil {
		return nil, fmt.Errorf("decoding iv: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.Data)
	if err != nil {
		return nil, fmt.Errorf("decoding data: %w", err)
	}

	key := DeriveKey(credential, salt, env.Encryption.Iterations)
	plaintext, err := Decrypt(ciphertext, key, iv)
	if err != nil {
		return nil, err
	}

	if env.Checksum != "" {
		sum := sha256.Sum256(plaintext)
		if subtle.ConstantTimeCompare([]byte(hex.EncodeToString(sum[:])), []byte(env.Checksum)) != 1 {
			return nil, &apperrors.IntegrityError{File: "metadata", Expected: env.Checksum, Actual: hex.EncodeToString(sum[:])}
		}
	}
	return plaintext, nil
}

// Marshal encodes env as indented JSON.
func (env *Envelope) Marshal() ([]byte, error) {
	return json.MarshalIndent(env, "", "  ")
}

// ParseEnvelope decodes data as an Envelope.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding envelope: %w", err)
	}
	if !env.Encrypted {
		return nil, errors.New("document is not an encryption envelope")
	}
	return &env, nil
}

// IsEnvelope reports whether data looks like an encrypted envelope rather
// than a plaintext manifest.
func IsEnvelope(data []byte) bool {
	if !bytes.Contains(data, []byte(`"encrypted"`)) {
		return false
	}
	var head struct {
		Encrypted  bool    `json:"encrypted"`
		Encryption *Params `json:"encryption"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return false
	}
	return head.Encrypted && head.Encryption != nil
}
