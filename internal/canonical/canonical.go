package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// JSON returns the RFC 8785 (JCS) canonical form of JSON input.
func JSON(input []byte) ([]byte, error) {
	return jcs.Transform(input)
}

// Marshal encodes v and canonicalizes the result.
func Marshal(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	return JSON(raw)
}

// Digest canonicalizes JSON input and returns its sha256 hex digest.
func Digest(input []byte) (string, error) {
	canonical, err := JSON(input)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
