package domain

import (
	"regexp"
	"strings"

	"github.com/plantworks/manufacturing/internal/errors"
	"github.com/plantworks/manufacturing/internal/platform/id"
)

// idPattern follows resource-id conventions: lowercase alphanumerics and
// hyphens, not starting or ending with a hyphen, 63 chars max.
var idPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// ParseID validates a caller-supplied item id.
func ParseID(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errors.New(errors.CodeItemIDEmpty, "item id is required")
	}
	if !idPattern.MatchString(trimmed) {
		return "", errors.WithMetadata(errors.CodeItemIDInvalid, "item id format is invalid", map[string]string{
			"id": trimmed,
		})
	}
	return trimmed, nil
}

// NewID generates a server-chosen item id.
func NewID() (string, error) {
	return id.NewID()
}
