// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package config loads provisioning settings from a Starlark file.
//
// The file calls the provision builtin at most once:
//
//	provision(
//	    python = "custom",
//	    custom_path = "/opt/python3.12/bin/python3",
//	    venv = "bot-venv",
//	    service = True,
//	    tls = True,
//	    cn = "nad-bot.example.org",
//	)
//
// Arbitrary Starlark (variables, conditionals, loops) may be used to compute
// the arguments; print output goes to the log.
package config

import (
	"errors"
	"fmt"
	"os"

	"go.astrophena.name/botenv/internal/logger"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// ErrInvalid is returned, wrapped, for files that don't describe valid
// settings.
var ErrInvalid = errors.New("invalid provisioning file")

// Settings are the values set by a provisioning file. Nil fields were not
// set.
type Settings struct {
	Python        *string
	CustomPath    *string
	Venv          *string
	CreateService *bool
	TLS           *bool
	CommonName    *string
}

// Load reads and evaluates the provisioning file at path.
func Load(path string, logf logger.Logf) (*Settings, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(path, src, logf)
}

// Parse evaluates a provisioning file. filename is used in error messages.
func Parse(filename string, src []byte, logf logger.Logf) (*Settings, error) {
	if logf == nil {
		logf = logger.Discard
	}

	var (
		s      *Settings
		called bool
	)
	provision := starlark.NewBuiltin("provision", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if called {
			return nil, fmt.Errorf("%s: called more than once", b.Name())
		}
		called = true
		if len(args) > 0 {
			return nil, fmt.Errorf("%s: unexpected positional arguments", b.Name())
		}
		var err error
		s, err = unpack(b.Name(), kwargs)
		if err != nil {
			return nil, err
		}
		return starlark.None, nil
	})

	thread := &starlark.Thread{
		Name:  filename,
		Print: func(_ *starlark.Thread, msg string) { logf("%s: %s", filename, msg) },
	}
	if _, err := starlark.ExecFileOptions(
		&syntax.FileOptions{
			TopLevelControl: true,
			GlobalReassign:  true,
		},
		thread,
		filename,
		src,
		starlark.StringDict{
			"provision": provision,
		},
	); err != nil {
		var evalErr *starlark.EvalError
		if errors.As(err, &evalErr) {
			return nil, fmt.Errorf("%w: %s", ErrInvalid, evalErr.Backtrace())
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if s == nil {
		return new(Settings), nil
	}
	return s, nil
}

func unpack(fnName string, kwargs []starlark.Tuple) (*Settings, error) {
	var (
		python, customPath, venv, cn starlark.Value = starlark.None, starlark.None, starlark.None, starlark.None
		service, tls                 starlark.Value = starlark.None, starlark.None
	)
	if err := starlark.UnpackArgs(fnName, nil, kwargs,
		"python?", &python,
		"custom_path?", &customPath,
		"venv?", &venv,
		"service?", &service,
		"tls?", &tls,
		"cn?", &cn,
	); err != nil {
		return nil, err
	}

	s := new(Settings)
	var err error
	if s.Python, err = optString(fnName, "python", python); err != nil {
		return nil, err
	}
	if s.CustomPath, err = optString(fnName, "custom_path", customPath); err != nil {
		return nil, err
	}
	if s.Venv, err = optString(fnName, "venv", venv); err != nil {
		return nil, err
	}
	if s.CommonName, err = optString(fnName, "cn", cn); err != nil {
		return nil, err
	}
	if s.CreateService, err = optBool(fnName, "service", service); err != nil {
		return nil, err
	}
	if s.TLS, err = optBool(fnName, "tls", tls); err != nil {
		return nil, err
	}
	return s, nil
}

func optString(fnName, param string, v starlark.Value) (*string, error) {
	if v == starlark.None {
		return nil, nil
	}
	s, ok := starlark.AsString(v)
	if !ok {
		return nil, fmt.Errorf("%s: for parameter %s: got %s, want string", fnName, param, v.Type())
	}
	if s == "" {
		return nil, fmt.Errorf("%s: for parameter %s: must not be empty", fnName, param)
	}
	return &s, nil
}

func optBool(fnName, param string, v starlark.Value) (*bool, error) {
	if v == starlark.None {
		return nil, nil
	}
	b, ok := v.(starlark.Bool)
	if !ok {
		return nil, fmt.Errorf("%s: for parameter %s: got %s, want bool", fnName, param, v.Type())
	}
	val := bool(b)
	return &val, nil
}
