// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

// Package codecs is the registry of codecs a pipeline can be built
// from.
//
// A [Spec] names a codec and its options; it is what pipeline
// definition files, configuration profiles and archive headers store.
// [Resolve] validates a Spec and fills in defaults, and [Build] turns
// a resolved chain into encoding stages, or into the inverse decoding
// chain.
package codecs
