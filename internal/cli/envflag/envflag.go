// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package envflag provides a wrapper around the standard flag package, allowing
// flags to be overridden by environment variables.
package envflag

import (
	"flag"
	"fmt"
	"strconv"
)

// Type is a constraint that permits only types supported by envflag package.
type Type interface {
	int | bool | string
}

// Var sets up a flag with the given name, default value, and usage
// information, storing its value in p.
//
// If the environment variable specified by envName is set to a value that
// parses as T, it overrides the flag's default value. Values that do not
// parse are ignored and the default is kept.
func Var[T Type](
	p *T, name, envName string, value T, usage string,
	fs *flag.FlagSet, getenv func(string) string,
) {
	*p = value
	if envValue := getenv(envName); envValue != "" {
		if parsed, err := parse[T](envValue); err == nil {
			*p = parsed
		}
	}
	usage += " Can be overridden by " + envName + " environment variable."
	fs.Var(&flagValue[T]{value: p}, name, usage)
}

// Value is like [Var], but allocates the storage and returns a pointer to it.
func Value[T Type](
	name, envName string, value T, usage string,
	fs *flag.FlagSet, getenv func(string) string,
) *T {
	p := new(T)
	Var(p, name, envName, value, usage, fs, getenv)
	return p
}

// Alias registers short as another name for the already defined flag long.
// Both names set the same value.
func Alias(fs *flag.FlagSet, short, long string) {
	f := fs.Lookup(long)
	if f == nil {
		panic(fmt.Sprintf("envflag: alias %q for undefined flag %q", short, long))
	}
	fs.Var(f.Value, short, "Shorthand for -"+long+".")
}

func parse[T Type](s string) (T, error) {
	var zero T
	switch any(zero).(type) {
	case int:
		v, err := strconv.Atoi(s)
		if err != nil {
			return zero, err
		}
		return any(v).(T), nil
	case bool:
		v, err := strconv.ParseBool(s)
		if err != nil {
			return zero, err
		}
		return any(v).(T), nil
	default:
		return any(s).(T), nil
	}
}

type flagValue[T Type] struct {
	value *T
}

func (f *flagValue[T]) String() string {
	if f.value == nil {
		return ""
	}
	return fmt.Sprint(*f.value)
}

func (f *flagValue[T]) Set(s string) error {
	v, err := parse[T](s)
	if err != nil {
		return err
	}
	*f.value = v
	return nil
}

// IsBoolFlag lets boolean flags be passed without a value, like -tls.
func (f *flagValue[T]) IsBoolFlag() bool {
	_, ok := any(*new(T)).(bool)
	return ok
}
