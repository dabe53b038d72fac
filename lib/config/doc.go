// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for krystal.
//
// Configuration is loaded from a single file specified by either the
// KRYSTAL_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no ~/.config discovery and no file search.
// [LoadOrDefault] is the CLI entry point: it uses the explicit path,
// then KRYSTAL_CONFIG, and otherwise the built-in defaults.
//
// The configuration file supports environment-specific sections
// (development, staging, production) that override base values when
// [Config].Environment matches. Production defaults to JSON logs.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${KRYSTAL_ROOT}, and ${VAR:-default} patterns are expanded.
//
// Key exports:
//
//   - [Config] -- master struct with Logging, Pipeline, Paths, Profiles
//   - [Profile] -- a named codec chain selectable with --profile
//   - [Default] -- returns a Config with development defaults
//   - [Load], [LoadFile] and [LoadOrDefault] -- the entry points
package config
