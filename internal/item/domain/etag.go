package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// NewEtag returns a fresh weak entity tag. Every successful transition
// carries a tag that differs from the one it replaced.
func NewEtag() (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate etag: %w", err)
	}
	return fmt.Sprintf("W/%q", u.String()), nil
}
