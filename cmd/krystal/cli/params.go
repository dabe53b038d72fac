// Copyright 2026 The Krystal Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/spf13/pflag"
)

// FlagsFromParams returns a flag set named after the command with every
// tagged field of params bound. It panics if params cannot be bound,
// which is a bug in the command definition.
func FlagsFromParams(name string, params any) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	if err := BindFlags(params, flagSet); err != nil {
		panic(fmt.Sprintf("cli.FlagsFromParams(%q): %v", name, err))
	}
	return flagSet
}

// BindFlags registers a flag for each field of the struct params points
// to that carries a flag tag:
//
//	Output string `flag:"output,o" desc:"output path" default:"-"`
//
// The tag holds the long name and an optional one-letter shorthand.
// Fields may be string, bool, int or []string (a comma-separated
// default). Embedded structs are bound recursively.
func BindFlags(params any, flagSet *pflag.FlagSet) error {
	value := reflect.ValueOf(params)
	if value.Kind() != reflect.Pointer || value.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("params must be a pointer to a struct, got %T", params)
	}
	return bindStruct(value.Elem(), flagSet)
}

func bindStruct(structValue reflect.Value, flagSet *pflag.FlagSet) error {
	structType := structValue.Type()
	for index := range structType.NumField() {
		field, fieldValue := structType.Field(index), structValue.Field(index)
		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			if err := bindStruct(fieldValue, flagSet); err != nil {
				return fmt.Errorf("embedded %s: %w", field.Name, err)
			}
			continue
		}
		tag, ok := field.Tag.Lookup("flag")
		if !ok {
			continue
		}
		if !field.IsExported() {
			return fmt.Errorf("field %s: flag fields must be exported", field.Name)
		}
		name, shorthand, _ := strings.Cut(tag, ",")
		if err := bindField(fieldValue, flagSet, name, shorthand, field.Tag.Get("desc"), field.Tag.Get("default")); err != nil {
			return fmt.Errorf("field %s: %w", field.Name, err)
		}
	}
	return nil
}

func bindField(fieldValue reflect.Value, flagSet *pflag.FlagSet, name, shorthand, usage, defaultValue string) error {
	switch target := fieldValue.Addr().Interface().(type) {
	case *string:
		flagSet.StringVarP(target, name, shorthand, defaultValue, usage)
		return nil
	case *[]string:
		var items []string
		if defaultValue != "" {
			items = strings.Split(defaultValue, ",")
		}
		flagSet.StringSliceVarP(target, name, shorthand, items, usage)
		return nil
	case *bool:
		flagSet.BoolVarP(target, name, shorthand, false, usage)
	case *int:
		flagSet.IntVarP(target, name, shorthand, 0, usage)
	default:
		return fmt.Errorf("unsupported type %s for flag --%s", fieldValue.Type(), name)
	}

	// Scalar defaults go through the flag's own parser.
	if defaultValue == "" {
		return nil
	}
	flag := flagSet.Lookup(name)
	if err := flag.Value.Set(defaultValue); err != nil {
		return fmt.Errorf("default for --%s: %w", name, err)
	}
	flag.DefValue = flag.Value.String()
	return nil
}
