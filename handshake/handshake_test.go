package handshake

import (
	"bytes"
	"crypto/rand"
	"crypto/x509"
	"errors"
	"testing"

	"github.com/udisondev/courier/wire"
)

func generate(t *testing.T) *RSA {
	t.Helper()
	kp := NewRSA()
	if err := kp.Generate(); err != nil {
		t.Fatalf("generate: %v", err)
	}
	return kp
}

func TestPublicKeyWireSize(t *testing.T) {
	for range 5 {
		kp := generate(t)
		pub, err := kp.PublicKeyBytes()
		if err != nil {
			t.Fatal(err)
		}
		parsed, err := ParsePublicKey(pub[:])
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if parsed.N.Cmp(kp.key.N) != 0 || parsed.E != kp.key.E {
			t.Fatal("parsed key differs from generated key")
		}
	}
}

func TestParsePublicKeyAcceptsNullParameters(t *testing.T) {
	kp := generate(t)
	der, err := x509.MarshalPKIXPublicKey(&kp.key.PublicKey)
	if err != nil {
		t.Fatal(err)
	}
	if len(der) == wire.PublicKeySize {
		t.Fatalf("standard encoding unexpectedly %d bytes", len(der))
	}
	parsed, err := ParsePublicKey(der)
	if err != nil {
		t.Fatalf("parse standard encoding: %v", err)
	}
	if parsed.N.Cmp(kp.key.N) != 0 {
		t.Fatal("modulus mismatch")
	}
}

func TestParsePublicKeyRejectsGarbage(t *testing.T) {
	if _, err := ParsePublicKey(bytes.Repeat([]byte{0x30}, wire.PublicKeySize)); !errors.Is(err, ErrMalformedKey) {
		t.Fatalf("expected ErrMalformedKey, got %v", err)
	}
	if _, err := ParsePublicKey(nil); !errors.Is(err, ErrMalformedKey) {
		t.Fatalf("expected ErrMalformedKey, got %v", err)
	}
}

func TestSessionKeyUnwrap(t *testing.T) {
	kp := generate(t)
	pub, err := kp.PublicKeyBytes()
	if err != nil {
		t.Fatal(err)
	}
	sk, err := NewSessionKey()
	if err != nil {
		t.Fatal(err)
	}

	wrapped, err := WrapSessionKey(rand.Reader, pub, sk)
	if err != nil {
		t.Fatalf("wrap: %v", err)
	}
	got, err := kp.DecryptSessionKey(wrapped[:])
	if err != nil {
		t.Fatalf("unwrap: %v", err)
	}
	if got != sk {
		t.Fatal("unwrapped key differs")
	}

	// Another keypair must not be able to unwrap it.
	other := generate(t)
	if _, err := other.DecryptSessionKey(wrapped[:]); err == nil {
		t.Fatal("foreign key unwrapped the session key")
	}
}

func TestLoadRSA(t *testing.T) {
	kp := generate(t)
	der, err := kp.PrivateKeyBytes()
	if err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadRSA(der)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	a, _ := kp.PublicKeyBytes()
	b, _ := loaded.PublicKeyBytes()
	if a != b {
		t.Fatal("loaded key has a different public half")
	}

	if _, err := LoadRSA([]byte("not a key")); err == nil {
		t.Fatal("expected error for malformed private key")
	}
}

func TestNoKeypair(t *testing.T) {
	kp := NewRSA()
	if _, err := kp.PublicKeyBytes(); !errors.Is(err, ErrNoKeypair) {
		t.Fatalf("expected ErrNoKeypair, got %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("DecryptSessionKey without a keypair must panic")
		}
	}()
	kp.DecryptSessionKey(make([]byte, wire.WrappedKeySize))
}

func TestSessionCipher(t *testing.T) {
	key, err := NewSessionKey()
	if err != nil {
		t.Fatal(err)
	}
	for _, n := range []int{0, 1, 15, 16, 17, 4096} {
		plain := make([]byte, n)
		rand.Read(plain)

		ct := EncryptSession(key, plain)
		if len(ct) != n {
			t.Fatalf("ciphertext length %d, want %d", len(ct), n)
		}
		if n > 0 && bytes.Equal(ct, plain) {
			t.Fatalf("%d bytes: ciphertext equals plaintext", n)
		}
		if !bytes.Equal(DecryptSession(key, ct), plain) {
			t.Fatalf("%d bytes: round trip failed", n)
		}
	}

	// Same key and plaintext give the same ciphertext: the IV is fixed.
	p := []byte("deterministic")
	if !bytes.Equal(EncryptSession(key, p), EncryptSession(key, p)) {
		t.Fatal("encryption is not deterministic")
	}
}
