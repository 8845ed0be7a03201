// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"flag"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.astrophena.name/botenv/internal/cli"
	"go.astrophena.name/botenv/internal/cli/clitest"
	"go.astrophena.name/botenv/internal/filelock"
	"go.astrophena.name/botenv/internal/prereq"
	"go.astrophena.name/botenv/internal/pyenv"
	"go.astrophena.name/botenv/internal/pyenv/pyenvtest"
	"go.astrophena.name/botenv/internal/testutil"
)

// fakeOpenssl copies the certificate kept next to it to the -out path and
// writes a placeholder key to the -keyout path.
const fakeOpenssl = `#!/bin/sh
PATH="$PATH:/usr/bin:/bin"
while [ $# -gt 0 ]; do
	case "$1" in
	-keyout) echo "KEY" > "$2"; shift ;;
	-out) cp "$(dirname "$0")/cert.pem" "$2"; shift ;;
	esac
	shift
done
`

func TestSetupenv(t *testing.T) {
	// Bin directories outlive the parallel subtests.
	goodBin := t.TempDir()
	pyenvtest.Write(t, goodBin, "python3", pyenvtest.Options{})
	custom := pyenvtest.Write(t, t.TempDir(), "python3.12", pyenvtest.Options{Version: "3.12.1"})

	oldBin := t.TempDir()
	pyenvtest.Write(t, oldBin, "python3", pyenvtest.Options{Version: "3.8.10"})

	noPipBin := t.TempDir()
	pyenvtest.Write(t, noPipBin, "python3", pyenvtest.Options{NoPip: true})

	failBin := t.TempDir()
	pyenvtest.Write(t, failBin, "python3", pyenvtest.Options{FailInstall: true})

	tlsBin := t.TempDir()
	pyenvtest.Write(t, tlsBin, "python3", pyenvtest.Options{})
	testutil.WriteExecutable(t, tlsBin, "openssl", fakeOpenssl)
	writeCert(t, filepath.Join(tlsBin, "cert.pem"), "bot.example.org")

	good := map[string]string{"PATH": goodBin, "SUDO_USER": "bot"}

	exists := func(t *testing.T, a *app, path string) bool {
		t.Helper()
		return testutil.Exists(t, filepath.Join(a.dir, path))
	}

	clitest.Run(t, func(t *testing.T) *app {
		dir := testutil.Tree(t, `
-- requirements.txt --
python-telegram-bot==21.0
`)
		return &app{dir: dir, unitDir: t.TempDir()}
	}, map[string]clitest.Case[*app]{
		"defaults": {
			Env:          good,
			WantInStdout: "No options given, using defaults",
			CheckFunc: func(t *testing.T, a *app) {
				b, err := os.ReadFile(filepath.Join(a.dir, "bot-venv", pyenvtest.InstalledFile))
				if err != nil {
					t.Fatal(err)
				}
				testutil.AssertEqual(t, string(b), "python-telegram-bot==21.0\n")
			},
		},
		"help": {
			Args:         []string{"-h"},
			WantErr:      flag.ErrHelp,
			WantInStderr: "Available flags",
		},
		"unknown flag": {
			Args:         []string{"-frobnicate"},
			WantExitCode: 1,
			WantInStderr: "flag provided but not defined",
		},
		"positional arguments": {
			Args:    []string{"now"},
			Env:     good,
			WantErr: cli.ErrInvalidArgs,
		},
		"invalid interpreter type": {
			Args:    []string{"-p", "conda"},
			Env:     good,
			WantErr: cli.ErrInvalidArgs,
			CheckFunc: func(t *testing.T, a *app) {
				if exists(t, a, "bot-venv") {
					t.Error("environment must not be created")
				}
			},
		},
		"custom without path": {
			Args:    []string{"-p", "custom"},
			Env:     good,
			WantErr: cli.ErrInvalidArgs,
		},
		"custom with missing path": {
			Args:    []string{"-p", "custom", "-c", "/nonexistent/python3"},
			Env:     good,
			WantErr: prereq.ErrMissing,
		},
		"custom": {
			Args:         []string{"--python", "custom", "--custom-path", custom, "-v", "custom-venv"},
			Env:          good,
			WantInStderr: "Using Python 3.12.1",
			CheckFunc: func(t *testing.T, a *app) {
				if !exists(t, a, filepath.Join("custom-venv", pyenvtest.InstalledFile)) {
					t.Error("dependencies are not installed")
				}
			},
		},
		"no interpreter in PATH": {
			Env:     map[string]string{"PATH": t.TempDir()},
			WantErr: prereq.ErrMissing,
		},
		"old interpreter": {
			Env:     map[string]string{"PATH": oldBin},
			WantErr: pyenv.ErrVersionTooLow,
		},
		"no pip": {
			Env:     map[string]string{"PATH": noPipBin},
			WantErr: prereq.ErrMissing,
		},
		"missing manifest": {
			Env: good,
			Setup: func(t *testing.T, a *app) {
				if err := os.Remove(filepath.Join(a.dir, manifestFile)); err != nil {
					t.Fatal(err)
				}
			},
			WantErr: prereq.ErrMissing,
			CheckFunc: func(t *testing.T, a *app) {
				if exists(t, a, "bot-venv") {
					t.Error("environment must not be created without a manifest")
				}
			},
		},
		"concurrent run": {
			Env: good,
			Setup: func(t *testing.T, a *app) {
				lock, err := filelock.Acquire(filepath.Join(a.dir, lockFile))
				if err != nil {
					t.Fatal(err)
				}
				t.Cleanup(func() { lock.Release() })
			},
			WantErr: filelock.ErrLocked,
			CheckFunc: func(t *testing.T, a *app) {
				if exists(t, a, "bot-venv") {
					t.Error("environment must not be touched while another run holds the lock")
				}
			},
		},
		"install fails": {
			Env:          map[string]string{"PATH": failBin},
			WantExitCode: 1,
			WantInStderr: "Could not find a version",
		},
		"environment reaches pip": {
			Env:          map[string]string{"PATH": goodBin, "PIP_INDEX_URL": "https://mirror.example.org/simple"},
			WantInStderr: "(index https://mirror.example.org/simple)",
		},
		"environment variables": {
			Env:          map[string]string{"PATH": goodBin, "BOT_VENV": "env-venv"},
			WantInStdout: "No flags given, using settings from the environment:\n  interpreter:      system (first python3 in PATH)\n  environment:      env-venv\n",
			CheckFunc: func(t *testing.T, a *app) {
				if !exists(t, a, "env-venv") {
					t.Error("environment name from BOT_VENV is not used")
				}
			},
		},
		"service without entry point": {
			Args:    []string{"-s"},
			Env:     good,
			WantErr: prereq.ErrMissing,
			CheckFunc: func(t *testing.T, a *app) {
				if testutil.Exists(t, filepath.Join(a.unitDir, serviceName+".service")) {
					t.Error("unit must not be written without main.py")
				}
			},
		},
		"service": {
			Args: []string{"--create-service"},
			Env:  good,
			Setup: func(t *testing.T, a *app) {
				testutil.WriteExecutable(t, a.dir, entryPointFile, "echo bot\n")
			},
			WantInStdout: "sudo systemctl enable nad-alert-bot",
			CheckFunc: func(t *testing.T, a *app) {
				b, err := os.ReadFile(filepath.Join(a.unitDir, serviceName+".service"))
				if err != nil {
					t.Fatal(err)
				}
				unit := string(b)
				for _, want := range []string{
					"User=bot\n",
					"WorkingDirectory=" + a.dir + "\n",
					"ExecStart=" + filepath.Join(a.dir, "bot-venv", "bin", "python") + " " + filepath.Join(a.dir, entryPointFile) + "\n",
					"Restart=always\n",
				} {
					if !strings.Contains(unit, want) {
						t.Errorf("unit must contain %q, got:\n%s", want, unit)
					}
				}
			},
		},
		"tls without openssl": {
			Args:    []string{"-t"},
			Env:     good,
			WantErr: prereq.ErrMissing,
			CheckFunc: func(t *testing.T, a *app) {
				if exists(t, a, "cert.pem") || exists(t, a, "key.pem") {
					t.Error("no certificate files must be written")
				}
			},
		},
		"tls": {
			Args:         []string{"--tls", "--cn", "bot.example.org"},
			Env:          map[string]string{"PATH": tlsBin},
			WantInStderr: "CN=bot.example.org",
			CheckFunc: func(t *testing.T, a *app) {
				if !exists(t, a, "cert.pem") || !exists(t, a, "key.pem") {
					t.Error("certificate files are not written")
				}
			},
		},
		"config file": {
			Args: []string{"-config", "provision.star"},
			Env:  good,
			Setup: func(t *testing.T, a *app) {
				writeFile(t, filepath.Join(a.dir, "provision.star"), `provision(venv = "from-config")`)
			},
			CheckFunc: func(t *testing.T, a *app) {
				if !exists(t, a, "from-config") {
					t.Error("environment name from the provisioning file is not used")
				}
			},
		},
		"flags win over config file": {
			Args: []string{"-config", "provision.star", "-v", "from-flag"},
			Env:  good,
			Setup: func(t *testing.T, a *app) {
				writeFile(t, filepath.Join(a.dir, "provision.star"), `provision(venv = "from-config")`)
			},
			CheckFunc: func(t *testing.T, a *app) {
				if !exists(t, a, "from-flag") || exists(t, a, "from-config") {
					t.Error("flag must take precedence over the provisioning file")
				}
			},
		},
		"environment wins over config file": {
			Args: []string{"-config", "provision.star"},
			Env:  map[string]string{"PATH": goodBin, "BOT_VENV": "from-env"},
			Setup: func(t *testing.T, a *app) {
				writeFile(t, filepath.Join(a.dir, "provision.star"), `provision(venv = "from-config")`)
			},
			CheckFunc: func(t *testing.T, a *app) {
				if !exists(t, a, "from-env") {
					t.Error("environment variable must take precedence over the provisioning file")
				}
			},
		},
		"invalid config file": {
			Args: []string{"-config", "provision.star"},
			Env:  good,
			Setup: func(t *testing.T, a *app) {
				writeFile(t, filepath.Join(a.dir, "provision.star"), `provision(tls = "yes")`)
			},
			WantErr: cli.ErrInvalidArgs,
		},
	})
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func writeCert(t *testing.T, path, cn string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().AddDate(1, 0, 0),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, path, string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})))
}
