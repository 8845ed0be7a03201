// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package logger defines a type for writing to logs.
package logger

import (
	"bufio"
	"io"
	"log"
	"strings"
)

// Logf is the basic logger type: a printf-like func. Like [log.Printf], the
// format need not end in a newline.
type Logf func(format string, args ...any)

// Write implements the [io.Writer] interface.
func (f Logf) Write(p []byte) (n int, err error) {
	f("%s", p)
	return len(p), nil
}

// Discard is a Logf that throws away the logs given to it.
func Discard(string, ...any) {}

// New returns a Logf that writes to w, one line per call, prefixed with
// prefix.
func New(w io.Writer, prefix string) Logf {
	return log.New(w, prefix, 0).Printf
}

// Lines returns an io.WriteCloser that splits everything written to it into
// lines and logs each of them to logf with the given prefix. It is used to
// relay output of child processes. Close flushes the last incomplete line.
func Lines(logf Logf, prefix string) io.WriteCloser {
	pr, pw := io.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		s := bufio.NewScanner(pr)
		s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for s.Scan() {
			line := strings.TrimRight(s.Text(), "\r")
			if line == "" {
				continue
			}
			logf("%s%s", prefix, line)
		}
		// Drain whatever is left so writers never block.
		io.Copy(io.Discard, pr)
	}()
	return &lineWriter{pw: pw, done: done}
}

type lineWriter struct {
	pw   *io.PipeWriter
	done chan struct{}
}

func (w *lineWriter) Write(p []byte) (int, error) { return w.pw.Write(p) }

func (w *lineWriter) Close() error {
	err := w.pw.Close()
	<-w.done
	return err
}
