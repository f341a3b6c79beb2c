package manager

import (
	"strings"

	"github.com/google/uuid"
)

const clientOrderPrefix = "gx"

// newClientOrderID returns a venue-safe id (<=36 chars of [a-z0-9]).
func newClientOrderID() string {
	return clientOrderPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}
