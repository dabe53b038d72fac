// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed wraps archive master keys to age x25519 recipients.
//
// An archive sealed for recipients carries its randomly generated master
// key in the header, encrypted with filippo.io/age to every recipient's
// public key. Any one of the matching identities recovers it.
//
// Key exports:
//
//   - [GenerateKeypair] -- new age x25519 keypair, private half in a secret.Buffer
//   - [WrapKey] / [UnwrapKey] -- encrypt a master key to recipients and back
//   - [ReadIdentityFile] / [FormatIdentity] -- age-keygen style identity files
//   - [ParseRecipients] -- recipient validation
//
// Private keys and unwrapped master keys live in [secret.Buffer] memory.
package sealed
