// Package checksum computes the 32-bit integrity values compared against the
// server's FileSent verdict.
package checksum

import (
	"fmt"
	"sort"
	"strings"
)

// Func computes the integrity value of plaintext file content.
type Func func(content []byte) uint32

const (
	NameCksum   = "cksum"
	NameByteSum = "sum"
)

var funcs = map[string]Func{
	NameCksum:   Cksum,
	NameByteSum: ByteSum,
}

// ByName returns the checksum registered under name.
func ByName(name string) (Func, error) {
	f, ok := funcs[name]
	if !ok {
		return nil, fmt.Errorf("unknown checksum %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return f, nil
}

func Names() []string {
	names := make([]string, 0, len(funcs))
	for n := range funcs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ByteSum adds all bytes modulo 2^32. The result does not depend on byte
// order.
func ByteSum(content []byte) uint32 {
	var sum uint32
	for _, b := range content {
		sum += uint32(b)
	}
	return sum
}
