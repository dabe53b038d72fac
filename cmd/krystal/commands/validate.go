// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dylanclarke890/krystal/cmd/krystal/cli"
	"github.com/dylanclarke890/krystal/lib/config"
	"github.com/dylanclarke890/krystal/lib/pipelinedef"
)

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:    "validate",
		Summary: "Check pipeline definitions and configuration files",
		Description: `Validate local files without running anything. JSONC files are checked
as pipeline definitions: well-formed, at least one stage, every codec
known, every option in range, and a keyed codec only in last place.
YAML files are checked as krystal configuration.

Pipeline files use JSONC: JSON extended with // line comments,
/* block comments */, and trailing commas.

Exits 1 when any file has issues; each issue is printed to stderr.`,
		Usage: "krystal validate <file>...",
		Examples: []cli.Example{
			{
				Description: "Validate a pipeline definition",
				Command:     "krystal validate pipelines/text-logs.jsonc",
			},
			{
				Description: "Validate the configuration",
				Command:     "krystal validate $KRYSTAL_CONFIG",
			},
		},
		Run: func(_ context.Context, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("usage: krystal validate <file>...")
			}
			failed := 0
			for _, path := range args {
				if !validateFile(os.Stdout, os.Stderr, path) {
					failed++
				}
			}
			if failed > 0 {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}

// validateFile reports on one file and returns whether it is valid.
func validateFile(stdout, stderr io.Writer, path string) bool {
	var issues []string
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		cfg, err := config.LoadFile(path)
		if err != nil {
			issues = []string{err.Error()}
			break
		}
		if err := cfg.Validate(); err != nil {
			issues = joinedMessages(err)
		}
	default:
		definition, err := pipelinedef.ReadFile(path)
		if err != nil {
			issues = []string{err.Error()}
			break
		}
		issues = pipelinedef.Validate(definition)
	}

	if len(issues) > 0 {
		fmt.Fprintf(stderr, "%s: %d issue(s):\n", path, len(issues))
		for _, issue := range issues {
			fmt.Fprintf(stderr, "  - %s\n", issue)
		}
		return false
	}
	fmt.Fprintf(stdout, "%s: valid\n", path)
	return true
}

// joinedMessages splits an errors.Join result into its messages.
func joinedMessages(err error) []string {
	var joined interface{ Unwrap() []error }
	if !errors.As(err, &joined) {
		return []string{err.Error()}
	}
	var messages []string
	for _, inner := range joined.Unwrap() {
		messages = append(messages, inner.Error())
	}
	return messages
}
