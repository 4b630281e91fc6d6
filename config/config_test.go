package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/udisondev/courier/wire"
)

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadBootstrap(t *testing.T) {
	path := write(t, t.TempDir(), BootstrapFile, "127.0.0.1:1234\r\nalice\n/tmp/report.pdf\n\n")
	b, err := LoadBootstrap(path)
	if err != nil {
		t.Fatal(err)
	}
	want := Bootstrap{Address: "127.0.0.1:1234", Username: "alice", FilePath: "/tmp/report.pdf"}
	if b != want {
		t.Fatalf("got %+v, want %+v", b, want)
	}
}

func TestLoadBootstrapErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		line    int
	}{
		{"too few lines", "127.0.0.1:1234\nalice\n", 3},
		{"missing port", "127.0.0.1\nalice\nfile\n", 1},
		{"bad port", "127.0.0.1:http\nalice\nfile\n", 1},
		{"port out of range", "127.0.0.1:70000\nalice\nfile\n", 1},
		{"zero port", "127.0.0.1:0\nalice\nfile\n", 1},
		{"empty host", ":1234\nalice\nfile\n", 1},
		{"long username", "127.0.0.1:1234\n" + strings.Repeat("u", wire.NameSize) + "\nfile\n", 2},
		{"long file name", "127.0.0.1:1234\nalice\n/tmp/" + strings.Repeat("f", wire.FileNameSize) + "\n", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := write(t, t.TempDir(), BootstrapFile, tt.content)
			_, err := LoadBootstrap(path)
			var cerr *Error
			if !errors.As(err, &cerr) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if cerr.Line != tt.line {
				t.Fatalf("error on line %d, want %d: %v", cerr.Line, tt.line, err)
			}
		})
	}
}

func TestLoadBootstrapMissing(t *testing.T) {
	_, err := LoadBootstrap(filepath.Join(t.TempDir(), BootstrapFile))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestIdentityRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, IdentityFile)

	key := bytes.Repeat([]byte{0xA5, 0x01, 0xFE}, 200) // spans several base64 lines
	want := Identity{Username: "alice", ID: wire.NewClientID(), PrivateKey: key}
	if err := SaveIdentity(path, want); err != nil {
		t.Fatal(err)
	}

	got, err := LoadIdentity(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Username != want.Username || got.ID != want.ID || !bytes.Equal(got.PrivateKey, want.PrivateKey) {
		t.Fatalf("got %+v, want %+v", got, want)
	}

	data, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if lines[0] != "alice" || lines[1] != want.ID.String() || len(lines) < 4 {
		t.Fatalf("unexpected layout:\n%s", data)
	}
}

func TestIdentityWithoutKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), IdentityFile)
	want := Identity{Username: "bob", ID: wire.NewClientID()}
	if err := SaveIdentity(path, want); err != nil {
		t.Fatal(err)
	}
	got, err := LoadIdentity(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != want.ID || len(got.PrivateKey) != 0 {
		t.Fatalf("got %+v", got)
	}
}

func TestLoadIdentityMalformed(t *testing.T) {
	id := wire.NewClientID().String()
	tests := map[string]string{
		"only username": "alice\n",
		"short id":      "alice\nabcd\n",
		"non hex id":    "alice\n" + strings.Repeat("z", 32) + "\n",
		"bad base64":    "alice\n" + id + "\n!!!notbase64!!!\n",
		"empty name":    "\n" + id + "\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := write(t, t.TempDir(), IdentityFile, content)
			_, err := LoadIdentity(path)
			var cerr *Error
			if !errors.As(err, &cerr) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if errors.Is(err, ErrNotFound) {
				t.Fatal("malformed file reported as missing")
			}
		})
	}
}

func TestLoadIdentityMissing(t *testing.T) {
	if _, err := LoadIdentity(filepath.Join(t.TempDir(), IdentityFile)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPrivateKeyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), PrivateKeyFile)
	der := []byte("pkcs1 bytes")
	if err := SavePrivateKey(path, der); err != nil {
		t.Fatal(err)
	}
	got, err := LoadPrivateKey(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, der) {
		t.Fatalf("got %q", got)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "state")

	if err := WriteFileAtomic(path, []byte("first"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := WriteFileAtomic(path, []byte("second"), 0o600); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "second" {
		t.Fatalf("content %q", data)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("temporary files left behind: %v", entries)
	}
	info, _ := os.Stat(path)
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("mode %v", info.Mode().Perm())
	}
}

func TestWriteFileAtomicFailureKeepsOld(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state")
	if err := os.Mkdir(path, 0o700); err != nil {
		t.Fatal(err)
	}

	if err := WriteFileAtomic(path, []byte("data"), 0o600); err == nil {
		t.Fatal("expected error replacing a directory")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || !entries[0].IsDir() {
		t.Fatalf("unexpected entries after failed write: %v", entries)
	}
}

func TestDirIgnoresStalePrivateKeyFile(t *testing.T) {
	d := Dir(t.TempDir())
	if err := d.SavePrivateKey([]byte("old key")); err != nil {
		t.Fatal(err)
	}
	id := Identity{Username: "carol", ID: wire.NewClientID()}
	if err := d.SaveIdentity(id); err != nil {
		t.Fatal(err)
	}

	got, err := d.LoadIdentity()
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != id.ID || len(got.PrivateKey) != 0 {
		t.Fatalf("got %+v, want key-less identity %s", got, id.ID)
	}

	id.PrivateKey = []byte("new key")
	if err := d.SaveIdentity(id); err != nil {
		t.Fatal(err)
	}
	got, err = d.LoadIdentity()
	if err != nil {
		t.Fatal(err)
	}
	if string(got.PrivateKey) != "new key" {
		t.Fatalf("key %q, want the one stored with the id", got.PrivateKey)
	}
}
