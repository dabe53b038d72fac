// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/dylanclarke890/krystal/cmd/krystal/cli"
	"github.com/dylanclarke890/krystal/lib/secret"
	"github.com/dylanclarke890/krystal/lib/sealed"
)

type keygenParams struct {
	OutputFlags
	Age bool `flag:"age" desc:"generate an age identity instead of a master key"`
}

func keygenCommand() *cli.Command {
	var params keygenParams
	return &cli.Command{
		Name:    "keygen",
		Summary: "Generate a master key or an age identity",
		Description: `Generate key material for sealed archives.

By default a random 32-byte master key is written as hex, for use with
--key-file. With --age an age x25519 identity is written in age-keygen
layout and its public key (the recipient for compress --recipient) is
printed to stderr.

Files are created with mode 0600. Without --output the key goes to
stdout.`,
		Usage: "krystal keygen [--age] [-o file]",
		Examples: []cli.Example{
			{
				Description: "Create a master key file",
				Command:     "krystal keygen -o ~/.config/krystal/master.key",
			},
			{
				Description: "Create an age identity",
				Command:     "krystal keygen --age -o ~/.config/krystal/identity.txt",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("keygen", &params)
		},
		Run: func(_ context.Context, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("keygen takes no positional arguments, got %q", args[0])
			}
			return runKeygen(&params, os.Stdout, os.Stderr)
		},
	}
}

func runKeygen(params *keygenParams, stdout, stderr io.Writer) error {
	var material []byte
	if params.Age {
		keypair, err := sealed.GenerateKeypair()
		if err != nil {
			return err
		}
		defer keypair.Close()
		material = sealed.FormatIdentity(keypair)
		fmt.Fprintf(stderr, "Public key: %s\n", keypair.PublicKey)
	} else {
		key, err := secret.GenerateKey()
		if err != nil {
			return err
		}
		defer key.Close()
		material = secret.FormatKey(key)
	}
	defer secret.Zero(material)

	if params.Output == "" || params.Output == "-" {
		_, err := stdout.Write(material)
		return err
	}
	return writeKeyFile(params.Output, material, params.Force)
}

// writeKeyFile writes material to a new 0600 file, replacing an
// existing one only when force is set.
func writeKeyFile(path string, material []byte, force bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	file, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		return err
	}
	if _, err := file.Write(material); err != nil {
		file.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return file.Close()
}
