// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package codecs

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/dylanclarke890/krystal/lib/dataflow"
	"github.com/dylanclarke890/krystal/lib/secret"
)

var (
	// ErrUnknownCodec is wrapped by errors naming a codec that is not
	// registered.
	ErrUnknownCodec = errors.New("unknown codec")

	// ErrKeyRequired is returned by [Build] when a chain contains a
	// keyed codec and no key was supplied.
	ErrKeyRequired = errors.New("codec requires a key")
)

// Options are the tunables a codec may accept. Zero fields select the
// codec's defaults. A codec rejects non-zero options it does not use.
type Options struct {
	BlockSize  int `json:"block_size,omitempty"  yaml:"block_size,omitempty"`
	WindowSize int `json:"window_size,omitempty" yaml:"window_size,omitempty"`
	MaxMatch   int `json:"max_match,omitempty"   yaml:"max_match,omitempty"`
	Level      int `json:"level,omitempty"       yaml:"level,omitempty"`
}

// Spec is one codec in a chain.
type Spec struct {
	Codec   string  `json:"codec"             yaml:"codec"`
	Options Options `json:"options,omitzero"  yaml:"options,omitempty"`
}

// String renders the spec as name(option=value, ...), omitting zero
// options.
func (s Spec) String() string {
	var parts []string
	for _, field := range optionFields {
		if value := *field.value(&s.Options); value != 0 {
			parts = append(parts, field.name+"="+strconv.Itoa(value))
		}
	}
	if len(parts) == 0 {
		return s.Codec
	}
	return s.Codec + "(" + strings.Join(parts, ", ") + ")"
}

// optionField names one field of Options.
type optionField struct {
	name  string
	value func(*Options) *int
}

var optionFields = []optionField{
	{"block_size", func(o *Options) *int { return &o.BlockSize }},
	{"window_size", func(o *Options) *int { return &o.WindowSize }},
	{"max_match", func(o *Options) *int { return &o.MaxMatch }},
	{"level", func(o *Options) *int { return &o.Level }},
}

// Env carries what keyed codecs need beyond their options.
type Env struct {
	// Key is the master key for the seal codec. Borrowed.
	Key *secret.Buffer

	// Random supplies salts and nonces. Nil selects crypto/rand.
	Random io.Reader
}

// Direction selects which half of a codec Build instantiates.
type Direction int

const (
	Encode Direction = iota
	Decode
)

func (d Direction) String() string {
	if d == Decode {
		return "decode"
	}
	return "encode"
}

// Parameter describes one option a codec accepts.
type Parameter struct {
	// Name is the option's key in Options.
	Name string

	// Default is the value a zero option resolves to. Zero means the
	// codec chooses internally.
	Default int

	// Min and Max bound explicit values.
	Min, Max int
}

type stageFactory func(options Options, env Env) (dataflow.Stage, error)

// Codec describes a registered codec.
type Codec struct {
	// Name is the identifier used in specs.
	Name string

	// Description is a one-line summary for listings.
	Description string

	// Format is the element type the encoder produces.
	Format dataflow.ElementType

	// Parameters lists the accepted options.
	Parameters []Parameter

	// Keyed codecs need Env.Key.
	Keyed bool

	encoder stageFactory
	decoder stageFactory
}

func (c *Codec) parameter(name string) (Parameter, bool) {
	for _, parameter := range c.Parameters {
		if parameter.Name == name {
			return parameter, true
		}
	}
	return Parameter{}, false
}

var registry = map[string]*Codec{}

func register(codec *Codec) {
	if _, exists := registry[codec.Name]; exists {
		panic("codecs: duplicate registration of " + codec.Name)
	}
	registry[codec.Name] = codec
}

// Lookup returns the codec registered under name.
func Lookup(name string) (*Codec, error) {
	codec, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownCodec, name)
	}
	return codec, nil
}

// Names returns every registered codec name, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// All returns every registered codec, sorted by name.
func All() []*Codec {
	names := Names()
	all := make([]*Codec, len(names))
	for index, name := range names {
		all[index] = registry[name]
	}
	return all
}

// Resolve validates spec against its codec and fills defaults. The
// result is what archive headers record, so decoding never depends on
// defaults that may change.
func Resolve(spec Spec) (Spec, error) {
	codec, err := Lookup(spec.Codec)
	if err != nil {
		return spec, err
	}

	var errs []error
	for _, field := range optionFields {
		value := field.value(&spec.Options)
		parameter, accepted := codec.parameter(field.name)
		if !accepted {
			if *value != 0 {
				errs = append(errs, fmt.Errorf("takes no %s option", field.name))
			}
			continue
		}
		if *value == 0 {
			*value = parameter.Default
			continue
		}
		if *value < parameter.Min || *value > parameter.Max {
			errs = append(errs, fmt.Errorf("%s %d outside [%d, %d]",
				field.name, *value, parameter.Min, parameter.Max))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return spec, fmt.Errorf("codec %s: %w", spec.Codec, err)
	}
	return spec, nil
}

// ResolveAll resolves every spec in a chain.
func ResolveAll(specs []Spec) ([]Spec, error) {
	resolved := make([]Spec, len(specs))
	for index, spec := range specs {
		var err error
		resolved[index], err = Resolve(spec)
		if err != nil {
			return nil, fmt.Errorf("stage %d: %w", index, err)
		}
	}
	return resolved, nil
}

// ParseNames parses a comma-separated list of codec names into specs
// with default options.
func ParseNames(list string) ([]Spec, error) {
	var specs []Spec
	for name := range strings.SplitSeq(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, err := Lookup(name); err != nil {
			return nil, err
		}
		specs = append(specs, Spec{Codec: name})
	}
	if len(specs) == 0 {
		return nil, errors.New("no codecs named")
	}
	return specs, nil
}

// Keyed reports whether any codec in specs needs a key.
func Keyed(specs []Spec) bool {
	for _, spec := range specs {
		if codec, err := Lookup(spec.Codec); err == nil && codec.Keyed {
			return true
		}
	}
	return false
}
