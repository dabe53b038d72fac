// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/dylanclarke890/krystal/cmd/krystal/cli"
	"github.com/dylanclarke890/krystal/lib/codecs"
	"github.com/dylanclarke890/krystal/lib/config"
)

type codecInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Format      string          `json:"format"`
	Keyed       bool            `json:"keyed"`
	Parameters  []parameterInfo `json:"parameters"`
}

type parameterInfo struct {
	Name    string `json:"name"`
	Default int    `json:"default"`
	Min     int    `json:"min"`
	Max     int    `json:"max"`
}

func listCodecs() []codecInfo {
	all := codecs.All()
	infos := make([]codecInfo, 0, len(all))
	for _, codec := range all {
		info := codecInfo{
			Name:        codec.Name,
			Description: codec.Description,
			Format:      string(codec.Format),
			Keyed:       codec.Keyed,
			Parameters:  make([]parameterInfo, 0, len(codec.Parameters)),
		}
		for _, parameter := range codec.Parameters {
			info.Parameters = append(info.Parameters, parameterInfo(parameter))
		}
		infos = append(infos, info)
	}
	return infos
}

func codecsCommand() *cli.Command {
	var params struct {
		cli.JSONOutput
	}
	return &cli.Command{
		Name:    "codecs",
		Summary: "List the available codecs",
		Description: `List every codec that --stages, pipeline definitions and profiles can
name, with the element type its encoder produces and the options it
accepts (default and range). A default of 0 means the codec chooses.`,
		Usage: "krystal codecs [--json]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("codecs", &params)
		},
		Run: func(_ context.Context, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("codecs takes no positional arguments, got %q", args[0])
			}
			infos := listCodecs()
			if done, err := params.EmitJSON(infos); done {
				return err
			}
			return writeCodecs(os.Stdout, infos)
		},
	}
}

func writeCodecs(w io.Writer, infos []codecInfo) error {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "CODEC\tFORMAT\tOPTIONS\tDESCRIPTION")
	for _, info := range infos {
		options := make([]string, len(info.Parameters))
		for index, parameter := range info.Parameters {
			options[index] = fmt.Sprintf("%s=%d [%d..%d]", parameter.Name, parameter.Default, parameter.Min, parameter.Max)
		}
		description := info.Description
		if info.Keyed {
			description += " (needs a key)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", info.Name, info.Format, strings.Join(options, " "), description)
	}
	return tw.Flush()
}

type profileInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ChunkSize   int    `json:"chunk_size"`
	Stages      string `json:"stages"`
	Default     bool   `json:"default"`
}

func listProfiles(cfg *config.Config) []profileInfo {
	names := cfg.ProfileNames()
	infos := make([]profileInfo, 0, len(names))
	for _, name := range names {
		profile := cfg.Profiles[name]
		infos = append(infos, profileInfo{
			Name:        name,
			Description: profile.Description,
			ChunkSize:   cfg.ChunkSizeFor(profile),
			Stages:      describeStages(profile.Stages),
			Default:     name == cfg.Pipeline.DefaultProfile,
		})
	}
	return infos
}

func profilesCommand() *cli.Command {
	var params struct {
		Globals
		cli.JSONOutput
	}
	return &cli.Command{
		Name:    "profiles",
		Summary: "List the configured profiles",
		Description: `List the named codec chains compress --profile accepts: the built-in
profiles merged with those in the configuration file. The default
profile is marked with *.`,
		Usage: "krystal profiles [--json] [--config file]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("profiles", &params)
		},
		Run: func(_ context.Context, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("profiles takes no positional arguments, got %q", args[0])
			}
			cfg, _, err := params.session("profiles")
			if err != nil {
				return err
			}
			infos := listProfiles(cfg)
			if done, err := params.EmitJSON(infos); done {
				return err
			}
			return writeProfiles(os.Stdout, infos)
		},
	}
}

func writeProfiles(w io.Writer, infos []profileInfo) error {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "PROFILE\tCHUNK\tSTAGES\tDESCRIPTION")
	for _, info := range infos {
		name := info.Name
		if info.Default {
			name += " *"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", name, info.ChunkSize, info.Stages, info.Description)
	}
	return tw.Flush()
}
