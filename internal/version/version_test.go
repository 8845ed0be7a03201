// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package version

import (
	"errors"
	"runtime"
	"runtime/debug"
	"strings"
	"testing"

	"go.astrophena.name/botenv/internal/testutil"
)

func TestLoad(t *testing.T) {
	t.Parallel()

	exe := func() (string, error) { return "/usr/local/bin/setupenv", nil }

	cases := map[string]struct {
		bi   *debug.BuildInfo
		ok   bool
		exe  func() (string, error)
		want Info
	}{
		"no build info": {
			exe:  exe,
			want: Info{Name: "setupenv", Version: "devel"},
		},
		"devel": {
			bi:   &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}},
			ok:   true,
			exe:  exe,
			want: Info{Name: "setupenv", Version: "devel"},
		},
		"release with vcs": {
			bi: &debug.BuildInfo{
				Main: debug.Module{Version: "v1.2.0"},
				Settings: []debug.BuildSetting{
					{Key: "vcs.revision", Value: "abc123"},
					{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
					{Key: "vcs.modified", Value: "true"},
				},
			},
			ok:  true,
			exe: exe,
			want: Info{
				Name:     "setupenv",
				Version:  "v1.2.0",
				Commit:   "abc123",
				BuiltAt:  "2026-01-02T03:04:05Z",
				Modified: true,
			},
		},
		"no executable": {
			exe:  func() (string, error) { return "", errors.New("no") },
			want: Info{Name: "cmd", Version: "devel"},
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got := load(func() (*debug.BuildInfo, bool) { return tc.bi, tc.ok }, tc.exe)
			tc.want.Go, tc.want.OS, tc.want.Arch = runtime.Version(), runtime.GOOS, runtime.GOARCH
			testutil.AssertEqual(t, got, tc.want)
		})
	}
}

func TestInfoString(t *testing.T) {
	t.Parallel()

	i := Info{
		Name:     "runbot",
		Version:  "v0.3.1",
		Commit:   "deadbeef",
		Modified: true,
		BuiltAt:  "2026-10-16T00:00:00Z",
		Go:       "go1.22.0",
		OS:       "linux",
		Arch:     "amd64",
	}
	want := strings.Join([]string{
		"runbot v0.3.1 (go1.22.0, linux/amd64)",
		"commit deadbeef-dirty",
		"built at 2026-10-16T00:00:00Z",
		"",
	}, "\n")
	testutil.AssertEqual(t, i.String(), want)
}
