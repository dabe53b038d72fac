// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

// Krystal is the command-line front end for the chunked codec pipeline.
// It compresses files into self-describing archives (compress), restores
// and verifies them (decompress), shows archive headers (inspect), lists
// codecs and configured profiles, validates pipeline definitions and
// configuration, and generates key material for sealed archives.
package main
