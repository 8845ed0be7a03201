// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.astrophena.name/botenv/internal/cli"
	"go.astrophena.name/botenv/internal/cli/envflag"
	"go.astrophena.name/botenv/internal/config"
	"go.astrophena.name/botenv/internal/filelock"
	"go.astrophena.name/botenv/internal/prereq"
	"go.astrophena.name/botenv/internal/pyenv"
	"go.astrophena.name/botenv/internal/systemd"
	"go.astrophena.name/botenv/internal/tlscert"
)

func main() { cli.Main(new(app)) }

const (
	manifestFile   = "requirements.txt"
	entryPointFile = "main.py"
	serviceName    = "nad-alert-bot"
	defaultVenv    = "bot-venv"
	defaultCN      = "localhost"
	lockFile       = ".setupenv.lock"
)

type app struct {
	// configuration
	python     string
	customPath string
	venvName   string
	service    bool
	tls        bool
	cn         string
	configFile string

	// set in tests
	dir     string // working directory, os.Getwd if empty
	unitDir string // systemd.UnitDir if empty

	flags  *flag.FlagSet
	getenv func(string) string
}

// flagEnv maps long flag names to environment variables that override them.
var flagEnv = map[string]string{
	"python":         "BOT_PYTHON",
	"custom-path":    "BOT_PYTHON_PATH",
	"venv-name":      "BOT_VENV",
	"create-service": "BOT_SERVICE",
	"tls":            "BOT_TLS",
	"cn":             "BOT_TLS_CN",
}

func (a *app) EnvFlags(fs *flag.FlagSet, getenv func(string) string) {
	a.flags, a.getenv = fs, getenv

	envflag.Var(&a.python, "python", flagEnv["python"], "system", "Interpreter `type`: system, custom or nad.", fs, getenv)
	envflag.Var(&a.customPath, "custom-path", flagEnv["custom-path"], "", "`Path` to the interpreter for -python custom.", fs, getenv)
	envflag.Var(&a.venvName, "venv-name", flagEnv["venv-name"], defaultVenv, "Environment directory `name`.", fs, getenv)
	envflag.Var(&a.service, "create-service", flagEnv["create-service"], false, "Install a systemd service (needs root).", fs, getenv)
	envflag.Var(&a.tls, "tls", flagEnv["tls"], false, "Generate a self-signed TLS certificate (needs openssl).", fs, getenv)
	envflag.Var(&a.cn, "cn", flagEnv["cn"], defaultCN, "Certificate common `name`.", fs, getenv)
	fs.StringVar(&a.configFile, "config", "", "Read settings from Starlark `file`.")

	envflag.Alias(fs, "p", "python")
	envflag.Alias(fs, "c", "custom-path")
	envflag.Alias(fs, "v", "venv-name")
	envflag.Alias(fs, "s", "create-service")
	envflag.Alias(fs, "t", "tls")
}

func (a *app) Run(ctx context.Context) error {
	env := cli.GetEnv(ctx)

	if len(env.Args) > 0 {
		return fmt.Errorf("%w: unexpected arguments %q", cli.ErrInvalidArgs, env.Args)
	}
	dir, err := a.workdir()
	if err != nil {
		return err
	}
	if a.configFile != "" {
		if err := a.loadConfig(env, dir); err != nil {
			return err
		}
	}

	strategy, err := pyenv.ParseStrategy(a.python)
	if err != nil {
		return err
	}
	if a.venvName == "" {
		return fmt.Errorf("%w: environment name must not be empty", cli.ErrInvalidArgs)
	}
	if a.flags != nil && a.flags.NFlag() == 0 {
		a.printSummary(env.Stdout, a.fromEnv())
	}

	// Interpreter.
	path, err := pyenv.Resolve(pyenv.Request{
		Strategy:   strategy,
		CustomPath: a.customPath,
		PathEnv:    env.Getenv("PATH"),
	})
	if err != nil {
		return err
	}
	py := &pyenv.Interpreter{Path: path, Env: env.Environ(), Logf: env.Logf}
	v, err := py.Version(ctx)
	if err != nil {
		return err
	}
	if err := pyenv.CheckVersion(v); err != nil {
		return err
	}
	env.Logf("Using Python %v at %s.", v, path)
	if err := py.CheckPip(ctx); err != nil {
		return err
	}

	manifest := filepath.Join(dir, manifestFile)
	if err := prereq.File(manifest, "dependency manifest"); err != nil {
		return err
	}

	// Environment.
	lock, err := filelock.Acquire(filepath.Join(dir, lockFile))
	if errors.Is(err, filelock.ErrLocked) {
		return fmt.Errorf("another setupenv is running: %w", err)
	}
	if err != nil {
		return err
	}
	defer lock.Release()

	venvDir := a.venvName
	if !filepath.IsAbs(venvDir) {
		venvDir = filepath.Join(dir, venvDir)
	}
	env.Logf("Creating environment %s.", venvDir)
	venv, err := py.CreateVenv(ctx, venvDir)
	if err != nil {
		return err
	}
	act := venv.Activate(env.Environ())
	defer act.Deactivate()
	env.Logf("Installing dependencies from %s.", manifest)
	if err := act.Install(ctx, manifest); err != nil {
		return err
	}
	env.Logf("Environment %s is ready.", venvDir)

	if a.service {
		if err := a.installService(env, dir, venv); err != nil {
			return err
		}
	}
	if a.tls {
		if err := a.generateTLS(ctx, env, dir); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) workdir() (string, error) {
	if a.dir != "" {
		return filepath.Abs(a.dir)
	}
	return os.Getwd()
}

// loadConfig applies the provisioning file to options that were set neither
// by a flag nor by an environment variable. Relative paths are resolved
// against dir.
func (a *app) loadConfig(env *cli.Env, dir string) error {
	path := a.configFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	s, err := config.Load(path, env.Logf)
	if err != nil {
		return fmt.Errorf("%w: %v", cli.ErrInvalidArgs, err)
	}

	explicit := make(map[string]bool)
	if a.flags != nil {
		aliases := make(map[flag.Value]string)
		for long := range flagEnv {
			if f := a.flags.Lookup(long); f != nil {
				aliases[f.Value] = long
			}
		}
		a.flags.Visit(func(f *flag.Flag) {
			if long, ok := aliases[f.Value]; ok {
				explicit[long] = true
			}
		})
	}
	if a.getenv != nil {
		for long, envName := range flagEnv {
			if a.getenv(envName) != "" {
				explicit[long] = true
			}
		}
	}

	setString := func(name string, dst *string, v *string) {
		if v != nil && !explicit[name] {
			*dst = *v
		}
	}
	setBool := func(name string, dst *bool, v *bool) {
		if v != nil && !explicit[name] {
			*dst = *v
		}
	}
	setString("python", &a.python, s.Python)
	setString("custom-path", &a.customPath, s.CustomPath)
	setString("venv-name", &a.venvName, s.Venv)
	setBool("create-service", &a.service, s.CreateService)
	setBool("tls", &a.tls, s.TLS)
	setString("cn", &a.cn, s.CommonName)
	return nil
}

// fromEnv reports whether any option was set by an environment variable.
func (a *app) fromEnv() bool {
	if a.getenv == nil {
		return false
	}
	for _, envName := range flagEnv {
		if a.getenv(envName) != "" {
			return true
		}
	}
	return false
}

func (a *app) printSummary(w io.Writer, fromEnv bool) {
	interp := a.python
	switch a.python {
	case "system":
		interp += " (first python3 in PATH)"
	case "nad":
		interp += " (" + pyenv.NADPath + ")"
	case "custom":
		interp += " (" + a.customPath + ")"
	}
	yesNo := func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	}
	if fromEnv {
		fmt.Fprintf(w, "No flags given, using settings from the environment:\n")
	} else {
		fmt.Fprintf(w, "No options given, using defaults:\n")
	}
	fmt.Fprintf(w, "  interpreter:      %s\n", interp)
	fmt.Fprintf(w, "  environment:      %s\n", a.venvName)
	fmt.Fprintf(w, "  systemd service:  %s\n", yesNo(a.service))
	fmt.Fprintf(w, "  TLS certificate:  %s\n", yesNo(a.tls))
	fmt.Fprintf(w, "Run with -h to see all options.\n\n")
}

func (a *app) installService(env *cli.Env, dir string, venv *pyenv.Venv) error {
	entryPoint := filepath.Join(dir, entryPointFile)
	if err := prereq.File(entryPoint, "entry point"); err != nil {
		return fmt.Errorf("cannot create service: %w", err)
	}
	user, err := systemd.InvokingUser(env.Getenv)
	if err != nil {
		return err
	}

	unitDir := a.unitDir
	if unitDir == "" {
		unitDir = systemd.UnitDir
	}
	path, err := systemd.Install(unitDir, serviceName, systemd.Unit{
		Description:      "PT NAD alert Telegram bot",
		User:             user,
		WorkingDirectory: dir,
		ExecStart:        []string{venv.Python(), entryPoint},
		Environment:      []string{"PYTHONUNBUFFERED=1"},
	})
	if err != nil {
		return err
	}
	env.Logf("Installed service %s.", path)

	fmt.Fprintf(env.Stdout, "To enable and start the service, run:\n\n")
	for _, cmd := range systemd.FollowUp(serviceName) {
		fmt.Fprintf(env.Stdout, "\t%s\n", cmd)
	}
	fmt.Fprintln(env.Stdout)
	return nil
}

func (a *app) generateTLS(ctx context.Context, env *cli.Env, dir string) error {
	openssl, err := prereq.LookPath("openssl", env.Getenv("PATH"))
	if err != nil {
		return fmt.Errorf("cannot generate TLS certificate: %w; install it with 'sudo apt install openssl'", err)
	}
	cn := strings.TrimSpace(a.cn)
	if cn == "" {
		return fmt.Errorf("%w: certificate common name must not be empty", cli.ErrInvalidArgs)
	}

	env.Logf("Generating TLS certificate for %s.", cn)
	pair, err := tlscert.Generate(ctx, tlscert.Options{
		Openssl:    openssl,
		CommonName: cn,
		Dir:        dir,
		Env:        env.Environ(),
	})
	if err != nil {
		return err
	}
	info, err := tlscert.Inspect(pair.CertPath)
	if err != nil {
		return err
	}
	env.Logf("Wrote %s and %s (%v).", pair.CertPath, pair.KeyPath, info)
	return nil
}
