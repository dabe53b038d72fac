// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"encoding/json"
	"io"
	"os"
)

// JSONOutput adds a --json flag to a params struct. Listing commands
// embed it and call EmitJSON before their table output.
type JSONOutput struct {
	OutputJSON bool `json:"-" flag:"json" desc:"output as JSON"`
}

// EmitJSON writes result to stdout when --json was given. handled
// reports whether it did, in which case err is the write error and the
// caller stops.
func (j *JSONOutput) EmitJSON(result any) (handled bool, err error) {
	if !j.OutputJSON {
		return false, nil
	}
	return true, WriteJSON(os.Stdout, result)
}

// WriteJSON writes value to w as two-space indented JSON.
func WriteJSON(w io.Writer, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}
