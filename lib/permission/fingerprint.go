// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package permission

import (
	"encoding/hex"
	"fmt"
	"maps"
	"slices"

	"github.com/bureau-foundation/sentinel/lib/codec"
)

// Fingerprint returns a stable digest of ac: the blake3 hash of its
// deterministic CBOR encoding after sorting and de-duplicating each
// role's actions. Equal access controls have equal fingerprints
// regardless of map or slice order. A nil access control has the empty
// fingerprint.
func Fingerprint(ac AccessControl) (string, error) {
	if ac == nil {
		return "", nil
	}
	canonical := make(map[string][]string, len(ac))
	for _, role := range slices.Sorted(maps.Keys(ac)) {
		actions := make([]string, 0, len(ac[role]))
		for _, action := range ac[role] {
			actions = append(actions, string(action))
		}
		slices.Sort(actions)
		canonical[role] = slices.Compact(actions)
	}

	sum, err := codec.Digest(canonical)
	if err != nil {
		return "", fmt.Errorf("permission: fingerprint: %w", err)
	}
	return hex.EncodeToString(sum[:]), nil
}
