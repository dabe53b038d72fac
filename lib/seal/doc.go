// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

// Package seal provides authenticated encryption as pipeline stages.
//
// A sealed stream opens with a preamble, followed by one frame per
// block of plaintext:
//
//	preamble: u8 version | 16-byte salt
//	frame:    u32 length | u8 flags | 24-byte nonce | ciphertext + 16-byte tag
//
// length counts everything after the length field. Bit 0 of flags
// marks the final frame; every stream ends with exactly one, even when
// the plaintext is empty.
//
// The stream key is derived with HKDF-SHA256 from a 32-byte master key
// and the preamble salt, so no two streams share a key. Each frame is
// encrypted with XChaCha20-Poly1305 under a random nonce. The additional
// authenticated data binds the version, the frame's position in the
// stream and its flags, so reordered, dropped, duplicated or truncated
// frames fail to open.
package seal
