package transfer

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/udisondev/courier/checksum"
)

func writeFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNew(t *testing.T) {
	content := []byte("quarterly numbers")
	path := writeFile(t, "report.txt", content)

	p, err := New("alice", path)
	if err != nil {
		t.Fatal(err)
	}
	if p.FileName != "report.txt" || p.FilePath != path || p.SourceUsername != "alice" {
		t.Fatalf("unexpected transfer %+v", p)
	}
	if !bytes.Equal(p.Content, content) {
		t.Fatal("content differs from file")
	}
	if p.RetryAttempts != 0 || p.ShouldResend {
		t.Fatal("fresh transfer must have no attempts")
	}
}

func TestNewErrors(t *testing.T) {
	if _, err := New("alice", filepath.Join(t.TempDir(), "missing.bin")); err == nil {
		t.Fatal("expected error for missing file")
	}
	if _, err := New("alice", t.TempDir()); err == nil {
		t.Fatal("expected error for a directory")
	}
}

func TestValidateFileName(t *testing.T) {
	valid := []string{"a", "report.pdf", strings.Repeat("f", 254)}
	for _, name := range valid {
		if err := ValidateFileName(name); err != nil {
			t.Errorf("%q: unexpected error %v", name, err)
		}
	}

	invalid := []string{"", ".", "..", "dir/file", strings.Repeat("f", 255), "nul\x00byte"}
	for _, name := range invalid {
		if err := ValidateFileName(name); !errors.Is(err, ErrInvalidFileName) {
			t.Errorf("%q: expected ErrInvalidFileName, got %v", name, err)
		}
	}
}

func TestVerdict(t *testing.T) {
	p := &Pending{Content: []byte("abc")}
	local := p.Prepare(checksum.ByteSum)
	if local != 'a'+'b'+'c' {
		t.Fatalf("checksum %d", local)
	}

	if p.Verdict(local + 1) {
		t.Fatal("mismatch reported as match")
	}
	if !p.ShouldResend {
		t.Fatal("mismatch must request a resend")
	}
	if !p.Verdict(local) || p.ShouldResend {
		t.Fatal("match must clear the resend flag")
	}
}

func TestRetryCeiling(t *testing.T) {
	p := &Pending{}
	for i := 1; i <= MaxRetries; i++ {
		if !p.NextAttempt() {
			t.Fatalf("attempt %d refused", i)
		}
		if p.RetryAttempts != i {
			t.Fatalf("attempts %d, want %d", p.RetryAttempts, i)
		}
	}
	if !p.Exhausted() {
		t.Fatal("expected exhausted after MaxRetries")
	}
	for range 5 {
		if p.NextAttempt() {
			t.Fatal("attempt granted past the ceiling")
		}
	}
	if p.RetryAttempts != MaxRetries {
		t.Fatalf("attempts %d exceed ceiling %d", p.RetryAttempts, MaxRetries)
	}
}
