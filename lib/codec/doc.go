// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides krystal's standard CBOR encoding configuration.
//
// Archive headers are CBOR. Pipeline definitions and CLI --json output
// are JSON. Types that appear in both (codec specs, archive headers)
// carry `json` struct tags only: fxamacker/cbor v2 reads `json` tags
// when `cbor` tags are absent, so one tag controls field naming and
// omitempty for both formats.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items. The
// same header always produces identical bytes.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
package codec
