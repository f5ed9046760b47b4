// Package cursor encodes opaque page tokens for item listings. A token
// pins the listing offset together with hashes of the filter and order so
// a page cannot be resumed under different query parameters.
package cursor

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Cursor is the decoded form of a page token.
type Cursor struct {
	Offset     int    `json:"offset"`
	FilterHash string `json:"filter_hash,omitempty"`
	OrderHash  string `json:"order_hash,omitempty"`
}

// New returns a cursor for the given offset bound to a filter and order.
func New(offset int, filter, orderBy string) Cursor {
	return Cursor{
		Offset:     offset,
		FilterHash: HashFilter(filter),
		OrderHash:  HashFilter(orderBy),
	}
}

// Encode serializes the cursor into an opaque page token.
func Encode(c Cursor) (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal cursor: %w", err)
	}
	return base64.URLEncoding.EncodeToString(raw), nil
}

// Decode parses an opaque page token back into a cursor.
func Decode(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, fmt.Errorf("empty page token")
	}

	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("decode page token: %w", err)
	}

	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cursor{}, fmt.Errorf("unmarshal page token: %w", err)
	}
	if c.Offset < 0 {
		return Cursor{}, fmt.Errorf("negative page offset")
	}
	return c, nil
}

// HashFilter returns a short stable hash of a filter or order expression.
// An empty expression hashes to the empty string.
func HashFilter(expr string) string {
	if expr == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(expr))
	return hex.EncodeToString(sum[:])[:16]
}

// ValidateFilterHash verifies the cursor was issued under the same filter.
func ValidateFilterHash(c Cursor, filter string) error {
	if c.FilterHash != HashFilter(filter) {
		return fmt.Errorf("page token filter mismatch")
	}
	return nil
}

// ValidateOrderHash verifies the cursor was issued under the same order.
func ValidateOrderHash(c Cursor, orderBy string) error {
	if c.OrderHash != HashFilter(orderBy) {
		return fmt.Errorf("page token order mismatch")
	}
	return nil
}
