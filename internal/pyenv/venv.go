// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package pyenv

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"go.astrophena.name/botenv/internal/logger"
	"go.astrophena.name/botenv/internal/prereq"
)

// ErrDeactivated is returned when a deactivated [Activation] is used.
var ErrDeactivated = errors.New("environment is deactivated")

// Venv is a provisioned Python environment on disk.
type Venv struct {
	// Dir is the absolute path of the environment directory.
	Dir string
	// Logf receives output of long-running commands. If nil, it is
	// discarded.
	Logf logger.Logf
}

// Open returns the environment at dir. It fails with [prereq.ErrMissing] if
// dir is not a directory. Whether the environment is complete is not
// checked.
func Open(dir string) (*Venv, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := prereq.Dir(abs, "Python environment"); err != nil {
		return nil, err
	}
	return &Venv{Dir: abs}, nil
}

// BinDir returns the directory with the environment's executables.
func (v *Venv) BinDir() string { return filepath.Join(v.Dir, "bin") }

// Python returns the path of the environment's interpreter.
func (v *Venv) Python() string { return filepath.Join(v.BinDir(), "python") }

// Activate returns a handle that runs commands inside the environment, like
// sourcing bin/activate does for a shell. base is the environment the
// commands would otherwise get, usually [os.Environ].
//
// The process environment is left alone. Release the handle with
// [Activation.Deactivate] when done.
func (v *Venv) Activate(base []string) *Activation {
	env := environ(base, "VIRTUAL_ENV", v.Dir)
	env = unsetenv(env, "PYTHONHOME")
	path := v.BinDir()
	for _, kv := range base {
		if old, ok := strings.CutPrefix(kv, "PATH="); ok && old != "" {
			path += string(filepath.ListSeparator) + old
		}
	}
	env = environ(env, "PATH", path)
	return &Activation{venv: v, env: env}
}

// Activation is an activated [Venv].
type Activation struct {
	venv *Venv

	mu          sync.Mutex
	env         []string
	deactivated bool
}

// Environ returns the environment variables of the activated environment.
func (a *Activation) Environ() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.env...)
}

// Command returns a command that runs the environment's interpreter with
// args. When ctx is canceled the interpreter is interrupted and, if it does
// not exit in time, killed.
func (a *Activation) Command(ctx context.Context, args ...string) (*exec.Cmd, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.deactivated {
		return nil, ErrDeactivated
	}
	return command(ctx, a.env, a.venv.Python(), args...), nil
}

// Install installs the packages listed in the manifest with pip.
func (a *Activation) Install(ctx context.Context, manifest string) error {
	cmd, err := a.Command(ctx, "-m", "pip", "install", "-r", manifest)
	if err != nil {
		return err
	}
	logf := a.venv.Logf
	if logf == nil {
		logf = logger.Discard
	}
	if err := stream(cmd, logf, "pip: "); err != nil {
		return fmt.Errorf("installing dependencies from %s: %w", manifest, err)
	}
	return nil
}

// Deactivate releases the handle. Commands can no longer be created from
// it. Calling Deactivate more than once is fine.
func (a *Activation) Deactivate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.deactivated = true
	a.env = nil
}
