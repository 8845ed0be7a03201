// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package pyenv

import (
	"cmp"
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// ErrVersionTooLow is returned when the interpreter is older than
// [MinVersion].
var ErrVersionTooLow = errors.New("interpreter version too low")

// MinVersion is the oldest Python the bot runs on.
var MinVersion = Version{Major: 3, Minor: 9}

// Version is a Python release number.
type Version struct {
	Major, Minor, Patch int
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0 or +1 depending on whether v is older than, equal to
// or newer than w. Components are compared as numbers, so 3.10 is newer than
// 3.9.
func (v Version) Compare(w Version) int {
	if c := cmp.Compare(v.Major, w.Major); c != 0 {
		return c
	}
	if c := cmp.Compare(v.Minor, w.Minor); c != 0 {
		return c
	}
	return cmp.Compare(v.Patch, w.Patch)
}

// AtLeast reports whether v is w or newer.
func (v Version) AtLeast(w Version) bool { return v.Compare(w) >= 0 }

var versionRe = regexp.MustCompile(`(\d+)\.(\d+)(?:\.(\d+))?`)

// ParseVersion extracts the version from the output of "python --version",
// like "Python 3.10.12". Anything after the numbers, such as "rc1", is
// ignored, and a missing patch number is zero.
func ParseVersion(s string) (Version, error) {
	m := versionRe.FindStringSubmatch(s)
	if m == nil {
		return Version{}, fmt.Errorf("cannot parse Python version from %q", s)
	}
	var (
		v   Version
		err error
	)
	if v.Major, err = strconv.Atoi(m[1]); err != nil {
		return Version{}, fmt.Errorf("cannot parse Python version from %q: %w", s, err)
	}
	if v.Minor, err = strconv.Atoi(m[2]); err != nil {
		return Version{}, fmt.Errorf("cannot parse Python version from %q: %w", s, err)
	}
	if m[3] != "" {
		if v.Patch, err = strconv.Atoi(m[3]); err != nil {
			return Version{}, fmt.Errorf("cannot parse Python version from %q: %w", s, err)
		}
	}
	return v, nil
}

// CheckVersion fails with [ErrVersionTooLow] if v is older than
// [MinVersion].
func CheckVersion(v Version) error {
	if !v.AtLeast(MinVersion) {
		return fmt.Errorf("%w: found %v, need %d.%d or newer", ErrVersionTooLow, v, MinVersion.Major, MinVersion.Minor)
	}
	return nil
}
