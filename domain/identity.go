// Package domain contains core concepts of the messaging system.
// This file defines Identity and related invariants.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"sort"
	"strings"
)

// Identity is the opaque stable identifier of a participant.
// It exists independently of any live connection.
type Identity string

// PairKey builds the canonical key of a two-party conversation.
// Both orderings of the same pair map to the same key, so the log
// can index a conversation under a single prefix.
func PairKey(a, b Identity) string {
	pair := []string{string(a), string(b)}
	sort.Strings(pair)
	return strings.Join(pair, "|")
}
