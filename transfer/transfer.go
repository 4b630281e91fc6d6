// Package transfer tracks the single file a run delivers to the server.
package transfer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/udisondev/courier/checksum"
	"github.com/udisondev/courier/wire"
)

// MaxRetries is the number of resends allowed after a checksum mismatch.
const MaxRetries = 3

var ErrInvalidFileName = errors.New("transfer: invalid file name")

// Pending is the in-flight transfer. It owns Content; callers must not
// modify the slice after New returns.
type Pending struct {
	SourceUsername string
	Content        []byte
	FilePath       string
	FileName       string

	// RetryAttempts counts mismatched verdicts that led to a resend. It never
	// exceeds MaxRetries.
	RetryAttempts  int
	Checksum       uint32
	RemoteChecksum uint32
	ShouldResend   bool
}

// New reads the file at path.
func New(sourceUsername, path string) (*Pending, error) {
	name := filepath.Base(path)
	if err := ValidateFileName(name); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", path)
	}
	if uint64(info.Size()) > wire.MaxContentSize {
		return nil, fmt.Errorf("file too large: %d bytes (max %d)", info.Size(), wire.MaxContentSize)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return &Pending{
		SourceUsername: sourceUsername,
		Content:        content,
		FilePath:       path,
		FileName:       name,
	}, nil
}

// ValidateFileName checks that name is a bare file name that fits the
// protocol's file name field.
func ValidateFileName(name string) error {
	if name == "" || name == "." || name == ".." || name == string(filepath.Separator) {
		return fmt.Errorf("%w: %q", ErrInvalidFileName, name)
	}
	if filepath.Base(name) != name {
		return fmt.Errorf("%w: %q contains a path", ErrInvalidFileName, name)
	}
	if err := wire.CheckName(name, wire.FileNameSize); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFileName, err)
	}
	return nil
}

// Prepare recomputes the local checksum before a send attempt.
func (p *Pending) Prepare(sum checksum.Func) uint32 {
	p.Checksum = sum(p.Content)
	return p.Checksum
}

// Verdict records the checksum the server computed over what it received
// and reports whether it matches the local one.
func (p *Pending) Verdict(remote uint32) bool {
	p.RemoteChecksum = remote
	p.ShouldResend = remote != p.Checksum
	return !p.ShouldResend
}

// NextAttempt consumes one retry after a mismatch. It reports false once
// MaxRetries resends have been used, leaving RetryAttempts at the ceiling.
func (p *Pending) NextAttempt() bool {
	if p.RetryAttempts >= MaxRetries {
		p.ShouldResend = false
		return false
	}
	p.RetryAttempts++
	return true
}

// Exhausted reports whether no resend is left.
func (p *Pending) Exhausted() bool {
	return p.RetryAttempts >= MaxRetries
}
