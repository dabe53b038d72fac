// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package codecs

import (
	"fmt"

	"github.com/dylanclarke890/krystal/lib/dataflow"
)

// Build resolves specs and instantiates their stages. Encode returns
// the encoders in chain order. Decode returns the decoders in reverse
// order, each retyped to produce the element type its encoder consumed,
// so the decoding chain type-checks as the mirror of the encoding one.
func Build(specs []Spec, direction Direction, env Env) ([]dataflow.Stage, error) {
	resolved, err := ResolveAll(specs)
	if err != nil {
		return nil, err
	}

	// upstream[i] is the element type flowing into encoder i.
	upstream := make([]dataflow.ElementType, len(resolved))
	current := dataflow.Bytes
	codecs := make([]*Codec, len(resolved))
	for index, spec := range resolved {
		codec, _ := Lookup(spec.Codec)
		if codec.Keyed && env.Key == nil {
			return nil, fmt.Errorf("stage %d: %s: %w", index, codec.Name, ErrKeyRequired)
		}
		codecs[index] = codec
		upstream[index] = current
		current = outputOf(codec, current)
	}

	stages := make([]dataflow.Stage, 0, len(resolved))
	if direction == Encode {
		for index, spec := range resolved {
			stage, err := codecs[index].encoder(spec.Options, env)
			if err != nil {
				return nil, fmt.Errorf("stage %d: %s: %w", index, spec, err)
			}
			stages = append(stages, stage)
		}
		return stages, nil
	}

	for index := len(resolved) - 1; index >= 0; index-- {
		spec := resolved[index]
		stage, err := codecs[index].decoder(spec.Options, env)
		if err != nil {
			return nil, fmt.Errorf("stage %d: %s: %w", index, spec, err)
		}
		if stage.OutputType() != upstream[index] {
			stage = &restored{Stage: stage, output: upstream[index]}
		}
		stages = append(stages, stage)
	}
	return stages, nil
}

// OutputType returns the element type an encoding chain produces, which
// is the input type of its decoding pipeline. Unknown codecs are
// skipped; Build reports them.
func OutputType(specs []Spec) dataflow.ElementType {
	current := dataflow.Bytes
	for _, spec := range specs {
		if codec, err := Lookup(spec.Codec); err == nil {
			current = outputOf(codec, current)
		}
	}
	return current
}

// outputOf is the element type after codec encodes a stream of type
// input. Pass-through codecs keep the input type.
func outputOf(codec *Codec, input dataflow.ElementType) dataflow.ElementType {
	if codec.Format == dataflow.Bytes {
		return input
	}
	return codec.Format
}

// restored relabels a decoder's output with the element type its
// encoder consumed.
type restored struct {
	dataflow.Stage
	output dataflow.ElementType
}

func (r *restored) OutputType() dataflow.ElementType {
	return r.output
}
