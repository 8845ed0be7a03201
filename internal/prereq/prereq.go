// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package prereq checks that files, directories and programs a command
// depends on are present before it touches anything.
package prereq

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrMissing is returned, wrapped with a description, when a required file,
// directory or program is absent.
var ErrMissing = errors.New("missing prerequisite")

// File checks that path is an existing regular file. what names it in the
// error message, for example "dependency manifest".
func File(path, what string) error {
	fi, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s %s not found", ErrMissing, what, path)
	}
	if err != nil {
		return err
	}
	if !fi.Mode().IsRegular() {
		return fmt.Errorf("%w: %s %s is not a regular file", ErrMissing, what, path)
	}
	return nil
}

// Dir checks that path is an existing directory.
func Dir(path, what string) error {
	fi, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s %s not found", ErrMissing, what, path)
	}
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return fmt.Errorf("%w: %s %s is not a directory", ErrMissing, what, path)
	}
	return nil
}

// LookPath searches for an executable named file in the directories listed
// in pathEnv, which uses the PATH list syntax. Unlike [os/exec.LookPath] it
// does not consult the process environment, so callers can pass the PATH of
// the environment they run in.
//
// If file contains a slash, it is checked directly.
func LookPath(file, pathEnv string) (string, error) {
	if filepath.Base(file) != file {
		if err := executable(file); err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrMissing, file, err)
		}
		return file, nil
	}
	for _, dir := range filepath.SplitList(pathEnv) {
		if dir == "" {
			// Unix shell semantics: empty element means the current directory,
			// which we don't search.
			continue
		}
		path := filepath.Join(dir, file)
		if executable(path) == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s not found in PATH", ErrMissing, file)
}

func executable(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	if fi.IsDir() {
		return errors.New("is a directory")
	}
	if fi.Mode().Perm()&0o111 == 0 {
		return errors.New("permission denied")
	}
	return nil
}
