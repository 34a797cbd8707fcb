// Package cryptox implements the credential security primitives of the API:
// peppered argon2id password hashing, AES-128-CBC field encryption for
// personally identifying columns, salt generation and lookup indexes.
//
// Every failure of an underlying primitive is reported as common.ErrSecurity
// so that callers can only ever surface the fixed generic message; the
// wrapped cause is meant for the internal log.
package cryptox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/bookclub/internal/common"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
)

// Argon2id cost parameters used for every new password hash.
const (
	argonTime    uint32 = 1
	argonMemory  uint32 = 64 * 1024
	argonThreads uint8  = 4
	argonKeyLen  uint32 = 32
)

// SaltSize is the number of random bytes in a password salt (hex doubles it).
const SaltSize = 32

// EncryptionKeySize is the AES-128 key length in bytes.
const EncryptionKeySize = 16

// randReader is a test seam for crypto/rand.
var randReader io.Reader = rand.Reader

// ErrInvalidKey is returned by NewSecurityManager for a key of the wrong size.
var ErrInvalidKey = errors.New("encryption key must be 16 bytes")

// SecurityManager bundles the process-wide secrets (pepper and field key)
// with the operations that need them. It is safe for concurrent use.
type SecurityManager struct {
	pepper   []byte
	block    cipher.Block
	indexKey []byte
}

// NewSecurityManager builds a SecurityManager from the pepper and a 16-byte
// AES key.
func NewSecurityManager(pepper string, encryptionKey []byte) (*SecurityManager, error) {
	if len(encryptionKey) != EncryptionKeySize {
		return nil, ErrInvalidKey
	}

	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrSecurity, err)
	}

	indexKey := make([]byte, 32)
	kdf := hkdf.New(sha256.New, encryptionKey, []byte(pepper), []byte("bookclub lookup index v1"))
	if _, err := io.ReadFull(kdf, indexKey); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrSecurity, err)
	}

	return &SecurityManager{pepper: []byte(pepper), block: block, indexKey: indexKey}, nil
}

// GenerateSalt returns SaltSize random bytes rendered as lowercase hex.
func (m *SecurityManager) GenerateSalt() (string, error) {
	b := make([]byte, SaltSize)
	if _, err := io.ReadFull(randReader, b); err != nil {
		return "", fmt.Errorf("%w: generating salt: %v", common.ErrSecurity, err)
	}
	return hex.EncodeToString(b), nil
}

// HashPassword hashes password‖salt‖pepper with argon2id. The salt is also
// used as the argon2 salt, so the result is deterministic for identical
// inputs. The returned value is a PHC-formatted string that records the
// cost parameters.
func (m *SecurityManager) HashPassword(password, salt string) (string, error) {
	if salt == "" {
		return "", fmt.Errorf("%w: empty salt", common.ErrSecurity)
	}
	p := params{time: argonTime, memory: argonMemory, threads: argonThreads}
	key := m.derive(password, salt, p, argonKeyLen)
	return p.encode([]byte(salt), key), nil
}

// VerifyPassword reports whether candidate matches storedHash for the given
// salt. A malformed storedHash, or one produced for a different salt, yields
// false without an error.
func (m *SecurityManager) VerifyPassword(candidate, storedHash, salt string) (bool, error) {
	p, storedSalt, want, err := decodeHash(storedHash)
	if err != nil {
		return false, nil
	}
	if subtle.ConstantTimeCompare(storedSalt, []byte(salt)) != 1 {
		return false, nil
	}

	got := m.derive(candidate, salt, p, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

func (m *SecurityManager) derive(password, salt string, p params, keyLen uint32) []byte {
	input := make([]byte, 0, len(password)+len(salt)+len(m.pepper))
	input = append(input, password...)
	input = append(input, salt...)
	input = append(input, m.pepper...)
	defer common.WipeByteArray(input)

	return argon2.IDKey(input, []byte(salt), p.time, p.memory, p.threads, keyLen)
}

// EncryptField encrypts plaintext with AES-128-CBC under a fresh random IV.
// The result is base64(IV ‖ ciphertext).
func (m *SecurityManager) EncryptField(plaintext string) (string, error) {
	bs := m.block.BlockSize()
	padded := pkcs7Pad([]byte(plaintext), bs)

	out := make([]byte, bs+len(padded))
	iv := out[:bs]
	if _, err := io.ReadFull(randReader, iv); err != nil {
		return "", fmt.Errorf("%w: generating iv: %v", common.ErrSecurity, err)
	}

	cipher.NewCBCEncrypter(m.block, iv).CryptBlocks(out[bs:], padded)
	return base64.StdEncoding.EncodeToString(out), nil
}

// DecryptField reverses EncryptField. Malformed or tampered input fails
// with common.ErrSecurity.
func (m *SecurityManager) DecryptField(blob string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", fmt.Errorf("%w: decoding field: %v", common.ErrSecurity, err)
	}

	bs := m.block.BlockSize()
	if len(raw) < 2*bs || len(raw)%bs != 0 {
		return "", fmt.Errorf("%w: field has invalid length %d", common.ErrSecurity, len(raw))
	}

	iv, ct := raw[:bs], raw[bs:]
	plain := make([]byte, len(ct))
	cipher.NewCBCDecrypter(m.block, iv).CryptBlocks(plain, ct)

	unpadded, err := pkcs7Unpad(plain, bs)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrSecurity, err)
	}
	return string(unpadded), nil
}

// BlindIndex returns a keyed, deterministic digest of value suitable for
// equality lookups on encrypted columns. The value is trimmed and
// lower-cased first, so "A@B.com " and "a@b.com" share an index.
func (m *SecurityManager) BlindIndex(value string) string {
	mac := hmac.New(sha256.New, m.indexKey)
	mac.Write([]byte(strings.ToLower(strings.TrimSpace(value))))
	return hex.EncodeToString(mac.Sum(nil))
}

// EqualFold compares two secrets in constant time after the same
// normalization BlindIndex applies.
func EqualFold(a, b string) bool {
	na := []byte(strings.ToLower(strings.TrimSpace(a)))
	nb := []byte(strings.ToLower(strings.TrimSpace(b)))
	return subtle.ConstantTimeCompare(na, nb) == 1
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	return append(bytes.Clone(b), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, errors.New("invalid padded length")
	}
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize {
		return nil, errors.New("invalid padding")
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, errors.New("invalid padding")
		}
	}
	return b[:len(b)-n], nil
}
