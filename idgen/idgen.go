// Package idgen supplies the default correlation-id generator for
// outbound RPC requests: a cryptographically random UUID, per the
// configuration surface's documented default for generateId.
package idgen

import "github.com/google/uuid"

// Generator produces a fresh correlation id on every call. It must be
// safe for concurrent use, since multiple outbound RPCs may be in
// flight at once.
type Generator func() string

// Default is the UUID v4 generator used when runtime.Options.GenerateID
// is left unset.
func Default() string {
	return uuid.NewString()
}
