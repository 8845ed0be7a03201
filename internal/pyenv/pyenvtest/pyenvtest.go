// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package pyenvtest provides a fake Python interpreter for tests.
//
// The fake is a shell script that understands just enough of the Python
// command line for the provisioning and launching code: --version,
// -m pip --version, -m pip install -r FILE, -m venv DIR and running a
// script. Scripts ending in .py are executed with /bin/sh, so test entry
// points are written in shell. /usr/bin and /bin are appended to PATH, so
// the fake works in an otherwise empty environment.
package pyenvtest

import (
	"bytes"
	"testing"
	"text/template"

	"go.astrophena.name/botenv/internal/testutil"
)

// Options control the behavior of the fake interpreter.
type Options struct {
	// Version is reported by --version. Defaults to "3.11.4".
	Version string
	// NoPip makes every pip invocation fail.
	NoPip bool
	// FailInstall makes "pip install" fail.
	FailInstall bool
	// FailVenv makes "-m venv" fail.
	FailVenv bool
}

// InstalledFile is the file inside the environment where the fake pip
// copies the manifest it was asked to install.
const InstalledFile = "installed.txt"

var script = template.Must(template.New("python").Parse(`#!/bin/sh
# Callers may pass a bare environment; keep the basic tools reachable.
PATH="${PATH:+$PATH:}/usr/bin:/bin"
export PATH
case "$1" in
--version)
	echo "Python {{.Version}}"
	exit 0
	;;
-m)
	case "$2" in
	pip)
		{{- if .NoPip}}
		echo "/usr/bin/python3: No module named pip" >&2
		exit 1
		{{- end}}
		case "$3" in
		--version)
			echo "pip 24.0 from /fake/site-packages/pip (python 3)"
			exit 0
			;;
		install)
			{{- if .FailInstall}}
			echo "ERROR: Could not find a version that satisfies the requirement" >&2
			exit 1
			{{- end}}
			echo "Collecting packages from $5${PIP_INDEX_URL:+ (index $PIP_INDEX_URL)}"
			cp "$5" "$VIRTUAL_ENV/{{.InstalledFile}}"
			exit $?
			;;
		esac
		;;
	venv)
		{{- if .FailVenv}}
		echo "Error: ensurepip is not available" >&2
		exit 1
		{{- end}}
		mkdir -p "$3/bin" || exit 1
		cp "$0" "$3/bin/python" && cp "$0" "$3/bin/python3"
		exit $?
		;;
	esac
	;;
*.py)
	exec /bin/sh "$@"
	;;
esac
echo "unexpected arguments: $*" >&2
exit 2
`))

// Write writes a fake interpreter named name into dir and returns its path.
func Write(t *testing.T, dir, name string, opts Options) string {
	t.Helper()
	if opts.Version == "" {
		opts.Version = "3.11.4"
	}
	var buf bytes.Buffer
	if err := script.Execute(&buf, struct {
		Options
		InstalledFile string
	}{opts, InstalledFile}); err != nil {
		t.Fatal(err)
	}
	return testutil.WriteExecutable(t, dir, name, buf.String())
}
