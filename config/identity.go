package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/udisondev/courier/wire"
)

const base64LineWidth = 64

// Identity is the content of me.info. PrivateKey is empty when the file was
// written after registration but before the key was registered.
type Identity struct {
	Username   string
	ID         wire.ClientID
	PrivateKey []byte
}

// LoadIdentity parses me.info. A missing file yields an error wrapping
// ErrNotFound, which callers treat as a first run.
func LoadIdentity(path string) (Identity, error) {
	var id Identity

	lines, err := readLines(path)
	if err != nil {
		return id, err
	}
	if len(lines) < 2 {
		return id, lineError(path, len(lines)+1, "expected username and id lines")
	}

	if lines[0] == "" {
		return id, lineError(path, 1, "empty username")
	}
	if err := wire.CheckName(lines[0], wire.NameSize); err != nil {
		return id, lineError(path, 1, "username: %w", err)
	}
	id.Username = lines[0]

	if len(lines[1]) != 2*wire.ClientIDSize {
		return id, lineError(path, 2, "id must be %d hex digits", 2*wire.ClientIDSize)
	}
	if id.ID, err = wire.ParseClientID(lines[1]); err != nil {
		return id, lineError(path, 2, "%w", err)
	}

	if len(lines) > 2 {
		key, err := decodeKey(lines[2:])
		if err != nil {
			return id, lineError(path, 3, "private key: %w", err)
		}
		id.PrivateKey = key
	}
	return id, nil
}

// SaveIdentity writes id to path atomically.
func SaveIdentity(path string, id Identity) error {
	if err := wire.CheckName(id.Username, wire.NameSize); err != nil {
		return &Error{File: IdentityFile, Err: fmt.Errorf("username: %w", err)}
	}

	var sb strings.Builder
	sb.WriteString(id.Username)
	sb.WriteByte('\n')
	sb.WriteString(id.ID.String())
	sb.WriteByte('\n')
	sb.WriteString(encodeKey(id.PrivateKey))

	if err := WriteFileAtomic(path, []byte(sb.String()), 0o600); err != nil {
		return &Error{File: IdentityFile, Err: err}
	}
	return nil
}

// LoadPrivateKey reads priv.key.
func LoadPrivateKey(path string) ([]byte, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}
	key, err := decodeKey(lines)
	if err != nil {
		return nil, lineError(path, 1, "%w", err)
	}
	return key, nil
}

func SavePrivateKey(path string, der []byte) error {
	if err := WriteFileAtomic(path, []byte(encodeKey(der)), 0o600); err != nil {
		return &Error{File: PrivateKeyFile, Err: err}
	}
	return nil
}

func decodeKey(lines []string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.Join(lines, ""))
	if err != nil {
		return nil, err
	}
	if len(key) == 0 {
		return nil, errors.New("empty key")
	}
	return key, nil
}

func encodeKey(der []byte) string {
	s := base64.StdEncoding.EncodeToString(der)
	var sb strings.Builder
	for len(s) > 0 {
		n := min(len(s), base64LineWidth)
		sb.WriteString(s[:n])
		sb.WriteByte('\n')
		s = s[n:]
	}
	return sb.String()
}
