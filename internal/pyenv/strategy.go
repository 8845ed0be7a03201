// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package pyenv

import (
	"fmt"
	"strings"

	"go.astrophena.name/botenv/internal/cli"
	"go.astrophena.name/botenv/internal/prereq"
)

// Strategy selects how the Python interpreter is found.
type Strategy int

const (
	// System uses the first python3 on the search path.
	System Strategy = iota
	// Custom uses a path supplied by the user.
	Custom
	// NAD uses the interpreter bundled with PT NAD at [NADPath].
	NAD
)

// NADPath is where the PT NAD bundled interpreter lives.
const NADPath = "/opt/ptsecurity/nad/python3/bin/python3"

var strategyNames = map[Strategy]string{
	System: "system",
	Custom: "custom",
	NAD:    "nad",
}

func (s Strategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

// ParseStrategy parses one of "system", "custom" or "nad".
func ParseStrategy(s string) (Strategy, error) {
	for strategy, name := range strategyNames {
		if strings.EqualFold(s, name) {
			return strategy, nil
		}
	}
	return 0, fmt.Errorf("%w: unsupported interpreter type %q, want system, custom or nad", cli.ErrInvalidArgs, s)
}

// Request describes which interpreter to resolve.
type Request struct {
	Strategy   Strategy
	CustomPath string // required for Custom
	PathEnv    string // search path for System, in PATH syntax
}

var resolvers = map[Strategy]func(Request) (string, error){
	System: resolveSystem,
	Custom: resolveCustom,
	NAD:    resolveNAD,
}

// Resolve returns the path of the interpreter selected by req. The path is
// guaranteed to name an existing regular file.
func Resolve(req Request) (string, error) {
	resolve, ok := resolvers[req.Strategy]
	if !ok {
		return "", fmt.Errorf("%w: unsupported interpreter type %v", cli.ErrInvalidArgs, req.Strategy)
	}
	path, err := resolve(req)
	if err != nil {
		return "", err
	}
	if err := prereq.File(path, "Python interpreter"); err != nil {
		return "", err
	}
	return path, nil
}

func resolveSystem(req Request) (string, error) {
	path, err := prereq.LookPath("python3", req.PathEnv)
	if err != nil {
		return "", fmt.Errorf("%w; install Python 3 or use -python custom", err)
	}
	return path, nil
}

func resolveCustom(req Request) (string, error) {
	if req.CustomPath == "" {
		return "", fmt.Errorf("%w: -custom-path is required with -python custom", cli.ErrInvalidArgs)
	}
	return req.CustomPath, nil
}

func resolveNAD(Request) (string, error) { return NADPath, nil }
