// Package systemd renders and installs systemd service units.
//
// See https://www.freedesktop.org/software/systemd/man/systemd.service.html.
package systemd

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os/user"
	"path/filepath"
	"strings"
	"text/template"

	"go.astrophena.name/botenv/internal/atomicio"
)

// UnitDir is the directory for units installed by the system administrator.
const UnitDir = "/etc/systemd/system"

// Unit describes a simple long-running service.
type Unit struct {
	Description      string
	User             string
	WorkingDirectory string
	// ExecStart is the command line. Arguments are quoted as needed when the
	// unit is rendered.
	ExecStart []string
	// Environment holds KEY=VALUE pairs set for the service.
	Environment []string
	// Restart is the restart policy. Defaults to "always".
	Restart string
}

var unitTemplate = template.Must(template.New("unit").Funcs(template.FuncMap{
	"quote":  quote,
	"join":   joinArgs,
	"escape": escapeSpecifiers,
}).Parse(`[Unit]
Description={{.Description}}
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
{{- with .User}}
User={{.}}
{{- end}}
WorkingDirectory={{escape .WorkingDirectory}}
{{- range .Environment}}
Environment={{quote .}}
{{- end}}
ExecStart={{join .ExecStart}}
Restart={{.Restart}}
RestartSec=10

[Install]
WantedBy=multi-user.target
`))

// Render returns the unit file contents.
func (u Unit) Render() ([]byte, error) {
	if len(u.ExecStart) == 0 {
		return nil, errors.New("systemd: unit has no ExecStart")
	}
	if !filepath.IsAbs(u.ExecStart[0]) {
		return nil, fmt.Errorf("systemd: ExecStart must use an absolute path, got %q", u.ExecStart[0])
	}
	if u.WorkingDirectory != "" && !filepath.IsAbs(u.WorkingDirectory) {
		return nil, fmt.Errorf("systemd: WorkingDirectory must be absolute, got %q", u.WorkingDirectory)
	}
	if u.Restart == "" {
		u.Restart = "always"
	}
	var buf bytes.Buffer
	if err := unitTemplate.Execute(&buf, u); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Install renders the unit and writes it to dir/name.service, replacing any
// previous version. It returns the path of the written file.
func Install(dir, name string, u Unit) (string, error) {
	b, err := u.Render()
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, name+".service")
	if err := atomicio.WriteFile(path, b, 0o644); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return "", fmt.Errorf("systemd: writing %s: %w (re-run with sudo)", path, err)
		}
		return "", fmt.Errorf("systemd: writing %s: %w", path, err)
	}
	return path, nil
}

// FollowUp returns the commands that make systemd pick up, enable and start
// the service called name.
func FollowUp(name string) []string {
	return []string{
		"sudo systemctl daemon-reload",
		"sudo systemctl enable " + name,
		"sudo systemctl start " + name,
		"sudo systemctl status " + name,
	}
}

// InvokingUser returns the name of the user who ran the program. When it
// runs under sudo, that is the user who called sudo, not root.
func InvokingUser(getenv func(string) string) (string, error) {
	if u := getenv("SUDO_USER"); u != "" && u != "root" {
		return u, nil
	}
	u, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("systemd: looking up current user: %w", err)
	}
	return u.Username, nil
}

// escapeSpecifiers escapes the % prefix of unit specifiers, so s is taken
// literally.
func escapeSpecifiers(s string) string { return strings.ReplaceAll(s, "%", "%%") }

// quote quotes s for use in a command line or an assignment if it contains
// whitespace, quotes or backslashes. Specifiers are escaped unconditionally.
func quote(s string) string {
	s = escapeSpecifiers(s)
	if s != "" && !strings.ContainsAny(s, " \t\"'\\") {
		return s
	}
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// joinArgs builds an ExecStart command line. systemd expands $VAR and
// ${VAR} there, so $ is doubled.
func joinArgs(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = quote(strings.ReplaceAll(a, "$", "$$"))
	}
	return strings.Join(quoted, " ")
}
