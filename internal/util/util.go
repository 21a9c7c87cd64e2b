package util

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
)

func Ptr[T any](v T) *T {
	return &v
}

// HashJson is a stable fingerprint of any json-serializable value. map
// keys are sorted by encoding/json so equal inputs hash equally
func HashJson(v any) ([]byte, error) {
	bytes, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value for hashing: %w", err)
	}
	sum := sha256.Sum256(bytes)
	return sum[:], nil
}
