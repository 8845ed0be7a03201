// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package clitest provides utilities for testing command-line applications.
package clitest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"testing"

	"go.astrophena.name/botenv/internal/cli"
)

// Case represents a single test case for a command-line application.
type Case[App cli.App] struct {
	// Args are the command-line arguments to pass to the application.
	Args []string
	// Stdin is the optional standard input to pass to the application.
	Stdin io.Reader
	// Env are the environment variables visible to the application through
	// cli.Env.Getenv and passed to its child processes through
	// cli.Env.Environ. Nothing else from the test process leaks in.
	Env map[string]string
	// Setup is an optional function called with the freshly created
	// application before it runs.
	Setup func(*testing.T, App)
	// WantErr is the expected error to be returned by the application, checked
	// with errors.Is.
	WantErr error
	// WantExitCode is the expected process exit code, as computed by
	// cli.ExitCode. It is only checked when non-zero.
	WantExitCode int
	// WantNothingPrinted indicates that no output should be printed to stdout or
	// stderr.
	WantNothingPrinted bool
	// WantInStdout is the expected substring to be present in the stdout output.
	WantInStdout string
	// WantInStderr is the expected substring to be present in the stderr output.
	WantInStderr string
	// CheckFunc is an optional function to perform additional checks after the
	// application has run.
	CheckFunc func(*testing.T, App)
}

// Run runs the provided test cases against the given command-line application.
func Run[App cli.App](t *testing.T, setup func(*testing.T) App, cases map[string]Case[App]) {
	for name, tc := range cases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			app := setup(t)
			if tc.Setup != nil {
				tc.Setup(t, app)
			}

			stdin := tc.Stdin
			if stdin == nil {
				stdin = strings.NewReader("")
			}

			var stdout, stderr bytes.Buffer
			env := &cli.Env{
				Args:    tc.Args,
				Getenv:  getenvFunc(tc.Env),
				Environ: environFunc(tc.Env),
				Stdin:   stdin,
				Stdout:  &stdout,
				Stderr:  &stderr,
			}

			err := cli.Run(cli.WithEnv(context.Background(), env), app)

			// Don't use && because we want to trap all cases where err is
			// nil.
			if err == nil {
				if tc.WantErr != nil {
					t.Fatalf("must fail with error: %v", tc.WantErr)
				}
				if tc.WantExitCode != 0 {
					t.Fatalf("must fail with exit code %d", tc.WantExitCode)
				}
			}

			if err != nil && tc.WantErr == nil && tc.WantExitCode == 0 {
				t.Fatalf("unexpected error: %v\nstderr:\n%s", err, stderr.String())
			}

			if err != nil && tc.WantErr != nil && !errors.Is(err, tc.WantErr) {
				t.Fatalf("got error: %v", err)
			}

			if tc.WantExitCode != 0 {
				if got := cli.ExitCode(err); got != tc.WantExitCode {
					t.Fatalf("want exit code %d, got %d (%v)", tc.WantExitCode, got, err)
				}
			}

			if tc.WantNothingPrinted {
				if stdout.String() != "" {
					t.Errorf("stdout must be empty, got: %q", stdout.String())
				}
				if stderr.String() != "" {
					t.Errorf("stderr must be empty, got: %q", stderr.String())
				}
			}

			if tc.WantInStdout != "" && !strings.Contains(stdout.String(), tc.WantInStdout) {
				t.Errorf("stdout must contain %q, got: %q", tc.WantInStdout, stdout.String())
			}
			if tc.WantInStderr != "" && !strings.Contains(stderr.String(), tc.WantInStderr) {
				t.Errorf("stderr must contain %q, got: %q", tc.WantInStderr, stderr.String())
			}

			if tc.CheckFunc != nil {
				tc.CheckFunc(t, app)
			}
		})
	}
}

func getenvFunc(env map[string]string) func(string) string {
	return func(name string) string {
		if env == nil {
			return ""
		}
		return env[name]
	}
}

func environFunc(env map[string]string) func() []string {
	return func() []string {
		kv := make([]string, 0, len(env))
		for k, v := range env {
			kv = append(kv, k+"="+v)
		}
		slices.Sort(kv)
		return kv
	}
}
