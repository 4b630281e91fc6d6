// Package config reads and writes the client's plain-text files: the
// bootstrap file naming the server, user and file to send, the identity
// file written after registration, and the private key file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
)

const (
	BootstrapFile  = "transfer.info"
	IdentityFile   = "me.info"
	PrivateKeyFile = "priv.key"
)

var ErrNotFound = errors.New("config: file not found")

// Error reports a malformed or unreadable file. Line is 1-based and zero
// when the problem is not tied to a line.
type Error struct {
	File string
	Line int
	Err  error
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.File, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func lineError(file string, line int, format string, args ...any) error {
	return &Error{File: filepath.Base(file), Line: line, Err: fmt.Errorf(format, args...)}
}

// readLines returns the lines of path with line endings and surrounding
// blanks removed. Trailing empty lines are dropped.
func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &Error{File: filepath.Base(path), Err: ErrNotFound}
		}
		return nil, &Error{File: filepath.Base(path), Err: err}
	}
	lines := strings.Split(string(data), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines, nil
}

// WriteFileAtomic replaces path with data. A reader sees either the old or
// the new content, never a partial write.
func WriteFileAtomic(path string, data []byte, perm fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	if err := renameio.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
