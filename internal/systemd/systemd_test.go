package systemd_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.astrophena.name/botenv/internal/systemd"
	"go.astrophena.name/botenv/internal/testutil"
)

func TestRender(t *testing.T) {
	t.Parallel()

	u := systemd.Unit{
		Description:      "PT NAD alert bot",
		User:             "nad",
		WorkingDirectory: "/home/nad/alert bot",
		ExecStart:        []string{"/home/nad/alert bot/bot-venv/bin/python", "/home/nad/alert bot/main.py"},
		Environment:      []string{"VIRTUAL_ENV=/home/nad/alert bot/bot-venv"},
	}
	got, err := u.Render()
	if err != nil {
		t.Fatal(err)
	}

	want := `[Unit]
Description=PT NAD alert bot
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
User=nad
WorkingDirectory=/home/nad/alert bot
Environment="VIRTUAL_ENV=/home/nad/alert bot/bot-venv"
ExecStart="/home/nad/alert bot/bot-venv/bin/python" "/home/nad/alert bot/main.py"
Restart=always
RestartSec=10

[Install]
WantedBy=multi-user.target
`
	testutil.AssertEqual(t, string(got), want)
}

func TestRenderMinimal(t *testing.T) {
	t.Parallel()

	got, err := systemd.Unit{
		Description: "bot",
		ExecStart:   []string{"/usr/bin/python3", "main.py"},
		Restart:     "on-failure",
	}.Render()
	if err != nil {
		t.Fatal(err)
	}
	s := string(got)
	if strings.Contains(s, "User=") || strings.Contains(s, "Environment=") {
		t.Errorf("empty fields must be omitted:\n%s", s)
	}
	if !strings.Contains(s, "Restart=on-failure\n") {
		t.Errorf("restart policy not honored:\n%s", s)
	}
	if !strings.Contains(s, "Type=simple\nWorkingDirectory=") {
		t.Errorf("unexpected layout:\n%s", s)
	}
}

func TestRenderInvalid(t *testing.T) {
	t.Parallel()

	for name, u := range map[string]systemd.Unit{
		"no exec":          {Description: "bot"},
		"relative exec":    {ExecStart: []string{"bot-venv/bin/python"}},
		"relative workdir": {ExecStart: []string{"/usr/bin/python3"}, WorkingDirectory: "bot"},
	} {
		if _, err := u.Render(); err == nil {
			t.Errorf("%s: want error", name)
		}
	}
}

func TestRenderEscapesSpecifiers(t *testing.T) {
	t.Parallel()

	got, err := systemd.Unit{ExecStart: []string{"/opt/bot/python", "--rate=50%"}}.Render()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(got), "--rate=50%%") {
		t.Errorf("%% must be escaped:\n%s", got)
	}
}

func TestRenderEscapesVariables(t *testing.T) {
	t.Parallel()

	got, err := systemd.Unit{
		WorkingDirectory: "/srv/$bot",
		ExecStart:        []string{"/srv/$bot/bot-venv/bin/python", "/srv/$bot/main.py"},
		Environment:      []string{"PRICE=$5"},
	}.Render()
	if err != nil {
		t.Fatal(err)
	}
	s := string(got)
	for _, want := range []string{
		"ExecStart=/srv/$$bot/bot-venv/bin/python /srv/$$bot/main.py\n",
		// Only command lines are expanded.
		"WorkingDirectory=/srv/$bot\n",
		"Environment=PRICE=$5\n",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("unit must contain %q:\n%s", want, s)
		}
	}
}

func TestInstall(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	u := systemd.Unit{Description: "first", ExecStart: []string{"/usr/bin/python3"}}

	path, err := systemd.Install(dir, "nad-alert-bot", u)
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, path, filepath.Join(dir, "nad-alert-bot.service"))

	u.Description = "second"
	if _, err := systemd.Install(dir, "nad-alert-bot", u); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "Description=second") {
		t.Errorf("unit must be overwritten:\n%s", b)
	}

	fi, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, fi.Mode().Perm(), os.FileMode(0o644))
}

func TestInstallMissingDir(t *testing.T) {
	t.Parallel()

	u := systemd.Unit{ExecStart: []string{"/usr/bin/python3"}}
	if _, err := systemd.Install(filepath.Join(t.TempDir(), "nope"), "bot", u); err == nil {
		t.Fatal("want error")
	}
}

func TestFollowUp(t *testing.T) {
	t.Parallel()

	testutil.AssertEqual(t, systemd.FollowUp("nad-alert-bot"), []string{
		"sudo systemctl daemon-reload",
		"sudo systemctl enable nad-alert-bot",
		"sudo systemctl start nad-alert-bot",
		"sudo systemctl status nad-alert-bot",
	})
}

func TestInvokingUser(t *testing.T) {
	t.Parallel()

	got, err := systemd.InvokingUser(func(k string) string {
		if k == "SUDO_USER" {
			return "alice"
		}
		return ""
	})
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, got, "alice")

	got, err = systemd.InvokingUser(func(string) string { return "" })
	if err != nil {
		t.Skipf("no current user: %v", err)
	}
	if got == "" {
		t.Error("want current user name")
	}
}
