package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// Canonicalize returns the RFC 8785 (JCS) canonical form of JSON input.
func Canonicalize(input []byte) ([]byte, error) {
	return jcs.Transform(input)
}

// Digest canonicalizes JSON and returns its sha256 hex digest.
func Digest(input []byte) (string, error) {
	canonical, err := Canonicalize(input)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Of marshals v to JSON and digests it. Values that marshal to the same
// JSON object, whatever the key order, share a fingerprint.
func Of(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal fingerprint input: %w", err)
	}
	digest, err := Digest(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize fingerprint input: %w", err)
	}
	return digest, nil
}
