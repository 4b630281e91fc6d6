package config

import (
	"net"
	"path/filepath"
	"strconv"

	"github.com/udisondev/courier/wire"
)

// Bootstrap is the content of transfer.info.
type Bootstrap struct {
	Address  string // host:port
	Username string
	FilePath string
}

// LoadBootstrap parses a bootstrap file: server address, username and the
// path of the file to send, one per line.
func LoadBootstrap(path string) (Bootstrap, error) {
	var b Bootstrap

	lines, err := readLines(path)
	if err != nil {
		return b, err
	}
	if len(lines) < 3 {
		return b, lineError(path, len(lines)+1, "expected 3 lines, got %d", len(lines))
	}

	host, port, err := net.SplitHostPort(lines[0])
	if err != nil {
		return b, lineError(path, 1, "address: %w", err)
	}
	if host == "" {
		return b, lineError(path, 1, "address: empty host")
	}
	if p, err := strconv.ParseUint(port, 10, 16); err != nil || p == 0 {
		return b, lineError(path, 1, "address: invalid port %q", port)
	}
	b.Address = lines[0]

	if lines[1] == "" {
		return b, lineError(path, 2, "empty username")
	}
	if err := wire.CheckName(lines[1], wire.NameSize); err != nil {
		return b, lineError(path, 2, "username: %w", err)
	}
	b.Username = lines[1]

	if lines[2] == "" {
		return b, lineError(path, 3, "empty file path")
	}
	if err := wire.CheckName(filepath.Base(lines[2]), wire.FileNameSize); err != nil {
		return b, lineError(path, 3, "file name: %w", err)
	}
	b.FilePath = lines[2]

	return b, nil
}
