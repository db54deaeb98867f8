// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package core

import (
	"log"
	"os"
	"path/filepath"

	"github.com/cpmech/gosl/io"
)

// RunLogPath names the current run's log file, mirroring a package-level
// inp.LogFile: main's defer/recover handler reads it back on panic to echo
// the run's last log lines ahead of the error message.
var RunLogPath string

// Logger owns the run's plain-text log file, following a common
// InitLogFile/FlushLog discipline: log.SetOutput redirects the standard
// logger at a file for the duration of the run, and Close flushes it so
// main's defer/recover handler can read it back and echo it on failure.
type Logger struct {
	file *os.File
	path string
}

// NewLogger creates "<dir>/run.log", truncating any previous run's log, and
// redirects the standard logger at it.
func NewLogger(dir string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "run.log")
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	log.SetOutput(f)
	return &Logger{file: f, path: path}, nil
}

// Path returns the log file's path, for re-reading it on failure.
func (l *Logger) Path() string { return l.path }

// Close flushes and closes the log file. Safe to call on a nil Logger.
func (l *Logger) Close() {
	if l == nil || l.file == nil {
		return
	}
	l.file.Close()
}

// DumpOnError echoes the log file's contents via gosl/io, mirroring the
// teacher's main.go: read back the run log and print it in yellow ahead of
// the red error line, so a failed run's last messages are visible even
// though they were captured by the standard logger rather than stdout.
func DumpOnError(path string) {
	buf, err := io.ReadFile(path)
	if err != nil {
		io.Pfred("cannot read log file: %v\n", err)
		return
	}
	io.Pfyel("\n%v\n", string(buf))
}
