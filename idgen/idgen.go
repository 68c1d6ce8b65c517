// Package idgen generates the identifiers of guides, steps and playback
// sessions. IDs are UUIDv7 (time-sortable) with a type prefix.
package idgen

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator of RFC 9562 UUID v7 strings.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed prepends prefix to every ID of gen.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Generators used across relocate.
var (
	Guide   = Prefixed("gd_", UUIDv7())
	Step    = Prefixed("st_", UUIDv7())
	Session = Prefixed("pb_", UUIDv7())
	Audit   = Prefixed("au_", UUIDv7())
)

// Parse checks that id is prefix followed by a UUID and returns the UUID.
func Parse(prefix, id string) (string, error) {
	rest, ok := strings.CutPrefix(id, prefix)
	if !ok {
		return "", fmt.Errorf("idgen: %q: missing prefix %q", id, prefix)
	}
	u, err := uuid.Parse(rest)
	if err != nil {
		return "", fmt.Errorf("idgen: %q: %w", id, err)
	}
	return u.String(), nil
}
