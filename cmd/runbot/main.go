// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"go.astrophena.name/botenv/internal/cli"
	"go.astrophena.name/botenv/internal/filelock"
	"go.astrophena.name/botenv/internal/prereq"
	"go.astrophena.name/botenv/internal/pyenv"
)

func main() { cli.Main(new(app)) }

const (
	entryPointFile = "main.py"
	defaultVenv    = "bot-venv"
	lockFile       = ".setupenv.lock" // held by setupenv while provisioning
)

type app struct {
	dir string // working directory, os.Getwd if empty
}

func (a *app) Run(ctx context.Context) error {
	env := cli.GetEnv(ctx)

	if len(env.Args) > 0 {
		return fmt.Errorf("%w: runbot takes no arguments", cli.ErrInvalidArgs)
	}

	dir := a.dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		dir = wd
	}

	entryPoint := filepath.Join(dir, entryPointFile)
	if err := prereq.File(entryPoint, "entry point"); err != nil {
		return err
	}

	held, err := filelock.Held(filepath.Join(dir, lockFile))
	if err != nil {
		return err
	}
	if held {
		return fmt.Errorf("%w: setupenv is still provisioning %s", filelock.ErrLocked, dir)
	}

	name := env.Getenv("BOT_VENV")
	if name == "" {
		name = defaultVenv
	}
	if !filepath.IsAbs(name) {
		name = filepath.Join(dir, name)
	}
	venv, err := pyenv.Open(name)
	if err != nil {
		return fmt.Errorf("%w (run setupenv first)", err)
	}
	if err := prereq.File(venv.Python(), "Python interpreter"); err != nil {
		return fmt.Errorf("%w (run setupenv again)", err)
	}

	act := venv.Activate(env.Environ())
	defer act.Deactivate()

	cmd, err := act.Command(ctx, entryPoint)
	if err != nil {
		return err
	}
	cmd.Dir = dir
	cmd.Stdin = env.Stdin
	cmd.Stdout = env.Stdout
	cmd.Stderr = env.Stderr
	err = cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// The bot reported its failure itself; exit with its code.
		return cli.Unprintable(err)
	}
	if err != nil {
		return fmt.Errorf("starting %s: %w", entryPointFile, err)
	}
	return nil
}
