// Package sessionid generates the globally unique, opaque, UUID-shaped
// session identifiers spec.md §3 requires for Session.session_id.
//
// The teacher's equivalent (service.connectionService) hands out a dense
// int64 built from an atomic counter plus a gate id in the high bits —
// a fine scheme for its own int64 SID type, but spec.md is explicit that
// session_id must be a UUID-shaped opaque string, so this package swaps
// the counter for github.com/google/uuid instead of adapting the bit
// layout.
package sessionid

import "github.com/google/uuid"

// New returns a new random (v4) session id.
func New() string {
	return uuid.NewString()
}
