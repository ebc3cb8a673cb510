package wire

import (
	"encoding/json"
	"fmt"
)

// Encode produces the canonical byte form of a message value. Go's
// json.Marshal on a struct is deterministic (field order follows the
// struct definition), which is exactly the property hash_list and
// signature verification rely on: the same logical value encodes to
// the same bytes everywhere.
func Encode(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("wire: encode: %w", err)
	}
	return b, nil
}

// Decode unmarshals bytes produced by Encode into the given pointer.
func Decode(b []byte, v any) error {
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("wire: decode: %w", err)
	}
	return nil
}
