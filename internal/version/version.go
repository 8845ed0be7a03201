// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package version reports the version and build information of the running
// binary.
package version

import (
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
)

// Info is the version and build information of the current binary.
type Info struct {
	Name     string // base name of the executable
	Version  string
	Commit   string // BuildInfo's vcs.revision
	BuiltAt  string // BuildInfo's vcs.time
	Modified bool   // BuildInfo's vcs.modified
	Go       string // runtime.Version()
	OS       string // runtime.GOOS
	Arch     string // runtime.GOARCH
}

// String implements the fmt.Stringer interface.
func (i Info) String() string {
	var sb strings.Builder

	sb.WriteString(i.Name + " " + i.Version + " (" + i.Go + ", " + i.OS + "/" + i.Arch + ")\n")
	if i.Commit != "" {
		commit := i.Commit
		if i.Modified {
			commit += "-dirty"
		}
		sb.WriteString("commit " + commit + "\n")
	}
	if i.BuiltAt != "" {
		sb.WriteString("built at " + i.BuiltAt + "\n")
	}

	return sb.String()
}

var (
	once sync.Once
	info Info

	// for tests
	readBuildInfo = debug.ReadBuildInfo
	executable    = os.Executable
)

// CmdName returns the base name of the current binary.
func CmdName() string {
	once.Do(func() { info = load(readBuildInfo, executable) })
	return info.Name
}

// Version returns the version and build information of the current binary.
func Version() Info {
	once.Do(func() { info = load(readBuildInfo, executable) })
	return info
}

func load(readBuildInfo func() (*debug.BuildInfo, bool), executable func() (string, error)) Info {
	i := Info{
		Name:    "cmd",
		Version: "devel",
		Go:      runtime.Version(),
		OS:      runtime.GOOS,
		Arch:    runtime.GOARCH,
	}

	if exe, err := executable(); err == nil {
		i.Name = strings.TrimSuffix(filepath.Base(exe), ".exe")
	}

	bi, ok := readBuildInfo()
	if !ok {
		return i
	}
	if v := bi.Main.Version; v != "" && v != "(devel)" {
		i.Version = v
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			i.Commit = s.Value
		case "vcs.time":
			i.BuiltAt = s.Value
		case "vcs.modified":
			i.Modified = s.Value == "true"
		}
	}
	return i
}
