// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package pipelinedef

import (
	"fmt"
	"regexp"

	"github.com/dylanclarke890/krystal/lib/codecs"
)

// MaxChunkSize bounds Definition.ChunkSize.
const MaxChunkSize = 1 << 30

// namePattern matches valid pipeline names: a letter or digit followed
// by letters, digits, dots, underscores or hyphens.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Validate checks a Definition for structural issues. Returns a list of
// human-readable issue descriptions. An empty list means the definition
// is valid.
//
// Structural checks include:
//   - At least one stage is required
//   - The name, when set, must match namePattern
//   - ChunkSize must be within [0, MaxChunkSize]
//   - Each stage must name a registered codec with valid options
//   - A seal stage must be last
func Validate(definition *Definition) []string {
	var issues []string

	if len(definition.Stages) == 0 {
		issues = append(issues, "pipeline has no stages (at least one stage is required)")
	}
	if definition.Name != "" && !namePattern.MatchString(definition.Name) {
		issues = append(issues, fmt.Sprintf("name %q must match %s", definition.Name, namePattern))
	}
	if definition.ChunkSize < 0 || definition.ChunkSize > MaxChunkSize {
		issues = append(issues, fmt.Sprintf("chunk_size %d outside [0, %d]", definition.ChunkSize, MaxChunkSize))
	}

	for index, spec := range definition.Stages {
		prefix := fmt.Sprintf("stages[%d]", index)
		if spec.Codec == "" {
			issues = append(issues, fmt.Sprintf("%s: codec is required", prefix))
			continue
		}
		codec, err := codecs.Lookup(spec.Codec)
		if err != nil {
			issues = append(issues, fmt.Sprintf("%s: %v", prefix, err))
			continue
		}
		if _, err := codecs.Resolve(spec); err != nil {
			issues = append(issues, fmt.Sprintf("%s: %v", prefix, err))
		}
		if codec.Keyed && index != len(definition.Stages)-1 {
			issues = append(issues, fmt.Sprintf("%s %q: must be the last stage (ciphertext does not compress)", prefix, spec.Codec))
		}
	}

	return issues
}
