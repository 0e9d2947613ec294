package models

import (
	"fmt"

	"github.com/google/uuid"
)

// NewID returns a short unique identifier of the form "<prefix>_<12 hex>".
// With an empty prefix the bare 12-hex string is returned.
func NewID(prefix string) string {
	uid := uuid.New()
	hex := fmt.Sprintf("%x", [16]byte(uid))[:12]
	if prefix == "" {
		return hex
	}
	return prefix + "_" + hex
}
