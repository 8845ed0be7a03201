// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package pyenv finds a Python interpreter, checks it and manages the
// isolated environment (venv) the bot runs in.
package pyenv

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.astrophena.name/botenv/internal/logger"
	"go.astrophena.name/botenv/internal/prereq"
)

// waitDelay is how long a child process gets to exit after being
// interrupted before it is killed.
const waitDelay = 10 * time.Second

// Interpreter is a Python interpreter outside of any environment.
type Interpreter struct {
	// Path is the path to the interpreter binary.
	Path string
	// Env is the environment the interpreter runs with, as "key=value"
	// pairs. If nil, it inherits the environment of the current process.
	Env []string
	// Logf receives output of long-running commands. If nil, it is
	// discarded.
	Logf logger.Logf
}

func (i *Interpreter) logf() logger.Logf {
	if i.Logf == nil {
		return logger.Discard
	}
	return i.Logf
}

// Version runs "python --version" and parses its output. Old interpreters
// print it to stderr, so both streams are read.
func (i *Interpreter) Version(ctx context.Context) (Version, error) {
	out, err := command(ctx, i.Env, i.Path, "--version").CombinedOutput()
	if err != nil {
		return Version{}, fmt.Errorf("running %s --version: %w: %s", i.Path, err, bytes.TrimSpace(out))
	}
	return ParseVersion(string(out))
}

// CheckPip checks that "python -m pip" works.
func (i *Interpreter) CheckPip(ctx context.Context) error {
	out, err := command(ctx, i.Env, i.Path, "-m", "pip", "--version").CombinedOutput()
	if err != nil {
		return fmt.Errorf(
			"%w: pip is not available for %s (%v: %s); install it with 'sudo apt install python3-pip' or '%s -m ensurepip --upgrade'",
			prereq.ErrMissing, i.Path, err, bytes.TrimSpace(out), i.Path,
		)
	}
	return nil
}

// CreateVenv runs "python -m venv dir" and opens the result.
func (i *Interpreter) CreateVenv(ctx context.Context, dir string) (*Venv, error) {
	if err := stream(command(ctx, i.Env, i.Path, "-m", "venv", dir), i.logf(), "venv: "); err != nil {
		return nil, fmt.Errorf("creating environment %s: %w", dir, err)
	}
	v, err := Open(dir)
	if err != nil {
		return nil, err
	}
	v.Logf = i.Logf
	return v, nil
}

func command(ctx context.Context, env []string, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = env
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = waitDelay
	return cmd
}

// stream runs cmd relaying its output line by line to logf.
func stream(cmd *exec.Cmd, logf logger.Logf, prefix string) error {
	w := logger.Lines(logf, prefix)
	cmd.Stdout = w
	cmd.Stderr = w
	err := cmd.Run()
	w.Close()
	return err
}

// environ returns base with key set to value, replacing any earlier
// definition.
func environ(base []string, key, value string) []string {
	out := unsetenv(base, key)
	return append(out, key+"="+value)
}

func unsetenv(base []string, key string) []string {
	out := make([]string, 0, len(base)+1)
	for _, kv := range base {
		if k, _, _ := strings.Cut(kv, "="); k == key {
			continue
		}
		out = append(out, kv)
	}
	return out
}
