// Package crypto provides the hashing and signing capability used by the
// ledger and consensus engine: SHA-256 content hashing and ECDSA P-256
// signatures, both hex-encoded.
package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrCryptoFailure marks every key, encoding, or signing failure raised by
// this package.
var ErrCryptoFailure = errors.New("crypto primitive failure")

// Hash returns the hex-encoded SHA-256 digest of data.
func Hash(data string) string {
	sum := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", sum)
}

// GenerateKey creates a fresh P-256 key pair.
func GenerateKey() (*ecdsa.PrivateKey, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %v: %w", err, ErrCryptoFailure)
	}
	return key, nil
}

// EncodePublicKey renders a public key as a hex string suitable for the
// wire.
func EncodePublicKey(pub *ecdsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("failed to marshal public key: %v: %w", err, ErrCryptoFailure)
	}
	return hex.EncodeToString(der), nil
}

// DecodePublicKey parses a hex-encoded public key.
func DecodePublicKey(encoded string) (*ecdsa.PublicKey, error) {
	der, err := hex.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode public key: %v: %w", err, ErrCryptoFailure)
	}
	key, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %v: %w", err, ErrCryptoFailure)
	}
	pub, ok := key.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not ECDSA: %w", ErrCryptoFailure)
	}
	return pub, nil
}

// Sign signs the SHA-256 digest of message and returns the signature as hex.
func Sign(message string, priv *ecdsa.PrivateKey) (string, error) {
	digest := sha256.Sum256([]byte(message))
	sig, err := ecdsa.SignASN1(rand.Reader, priv, digest[:])
	if err != nil {
		return "", fmt.Errorf("failed to sign message: %v: %w", err, ErrCryptoFailure)
	}
	return hex.EncodeToString(sig), nil
}

// Verify checks a hex-encoded signature over message against a hex-encoded
// public key. Any decoding failure counts as an invalid signature.
func Verify(message, signature, publicKey string) bool {
	pub, err := DecodePublicKey(publicKey)
	if err != nil {
		return false
	}
	sig, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	digest := sha256.Sum256([]byte(message))
	return ecdsa.VerifyASN1(pub, digest[:], sig)
}

// StdVerifier adapts the package-level Verify to the engine's Verifier
// interface.
type StdVerifier struct{}

func (StdVerifier) Verify(message, signature, publicKey string) bool {
	return Verify(message, signature, publicKey)
}
