// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

// Package pipelinedef parses and validates pipeline definition files.
//
// A definition names a codec chain and the chunk size to run it with.
// Definitions are authored as JSONC (JSON with // line comments,
// /* block comments */ and trailing commas):
//
//	{
//	  // text-heavy logs
//	  "name": "logs",
//	  "chunk_size": 131072,
//	  "stages": [
//	    {"codec": "rle"},
//	    {"codec": "lz77", "options": {"window_size": 4096}},
//	    {"codec": "huffman"},
//	  ],
//	}
//
// The typical flow:
//
//  1. ReadFile or Parse: JSONC bytes → Definition
//  2. Validate: structural checks, returned as a list of issues
//  3. codecs.Build on Definition.Stages
package pipelinedef

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/dylanclarke890/krystal/lib/codecs"
)

// Definition is a named codec chain.
type Definition struct {
	// Name identifies the pipeline in logs and archive headers. When
	// empty, ReadFile derives it from the file name.
	Name string `json:"name,omitempty"`

	// Description is free text for listings.
	Description string `json:"description,omitempty"`

	// ChunkSize is the number of source bytes per chunk. Zero selects
	// the pipeline default.
	ChunkSize int `json:"chunk_size,omitempty"`

	// Stages is the encoding chain, in order.
	Stages []codecs.Spec `json:"stages"`
}

// Parse strips JSONC comments and trailing commas from data, then
// unmarshals the result. Unknown fields are rejected so that a
// misspelled option is not silently ignored.
func Parse(data []byte) (*Definition, error) {
	decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	decoder.DisallowUnknownFields()

	var definition Definition
	if err := decoder.Decode(&definition); err != nil {
		return nil, fmt.Errorf("parsing pipeline: %w", err)
	}
	return &definition, nil
}

// ReadFile reads and parses a JSONC pipeline file. A definition without
// a name takes it from the file name.
func ReadFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	definition, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if definition.Name == "" {
		definition.Name = NameFromPath(path)
	}
	return definition, nil
}

// NameFromPath extracts a pipeline name from a file path by stripping
// the directory prefix and the file extension. For example,
// "pipelines/text-logs.jsonc" returns "text-logs".
func NameFromPath(path string) string {
	base := filepath.Base(path)
	extension := filepath.Ext(base)
	return strings.TrimSuffix(base, extension)
}
