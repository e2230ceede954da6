// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds sentinel's CBOR encoding configuration.
//
// The permission store persists each resource's declared access
// control as a CBOR blob, and the fingerprint used to detect changed
// declarations is a hash over the same encoding. Both depend on Core
// Deterministic Encoding (RFC 8949 §4.2): sorted map keys, smallest
// integer encoding, no indefinite-length items. The same logical map
// always produces the same bytes regardless of Go map iteration order.
//
//	data, err := codec.Marshal(accessControl)
//	err = codec.Unmarshal(data, &accessControl)
//	sum, err := codec.Digest(accessControl)
package codec
