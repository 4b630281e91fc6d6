// Package handshake holds the client side of the key exchange: an RSA
// keypair whose public half is registered with the server, and the AES
// session cipher for file content.
package handshake

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	encoding_asn1 "encoding/asn1"
	"errors"
	"fmt"
	"io"
	"math/big"

	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/cryptobyte/asn1"

	"github.com/udisondev/courier/wire"
)

const keyBits = 1024

var (
	ErrNoKeypair      = errors.New("handshake: no keypair")
	ErrPublicKeySize  = errors.New("handshake: public key does not encode to the wire size")
	ErrMalformedKey   = errors.New("handshake: malformed public key")
	ErrSessionKeySize = errors.New("handshake: unwrapped session key has wrong size")
)

var oidRSAEncryption = encoding_asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}

type (
	PublicKey  = [wire.PublicKeySize]byte
	SessionKey = [wire.SymmetricKeySize]byte
)

// Keypair is the asymmetric half of the handshake.
type Keypair interface {
	Generate() error
	PublicKeyBytes() (PublicKey, error)
	DecryptSessionKey(wrapped []byte) (SessionKey, error)
	PrivateKeyBytes() ([]byte, error)
}

// RSA is a 1024-bit RSA keypair. Session keys are unwrapped with OAEP over
// SHA-256, which is what the server wraps them with.
type RSA struct {
	key    *rsa.PrivateKey
	random io.Reader
}

func NewRSA() *RSA {
	return &RSA{random: rand.Reader}
}

// LoadRSA restores a keypair from its PKCS#1 DER encoding.
func LoadRSA(der []byte) (*RSA, error) {
	key, err := x509.ParsePKCS1PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	if key.N.BitLen() != keyBits {
		return nil, fmt.Errorf("private key is %d bits, want %d", key.N.BitLen(), keyBits)
	}
	return &RSA{key: key, random: rand.Reader}, nil
}

func (r *RSA) Generate() error {
	key, err := rsa.GenerateKey(r.random, keyBits)
	if err != nil {
		return fmt.Errorf("generate rsa key: %w", err)
	}
	r.key = key
	return nil
}

func (r *RSA) PublicKeyBytes() (PublicKey, error) {
	if r.key == nil {
		return PublicKey{}, ErrNoKeypair
	}
	return MarshalPublicKey(&r.key.PublicKey)
}

func (r *RSA) PrivateKeyBytes() ([]byte, error) {
	if r.key == nil {
		return nil, ErrNoKeypair
	}
	return x509.MarshalPKCS1PrivateKey(r.key), nil
}

// DecryptSessionKey unwraps the AES key the server sent. Calling it before a
// keypair exists is a programming error.
func (r *RSA) DecryptSessionKey(wrapped []byte) (SessionKey, error) {
	var sk SessionKey
	if r.key == nil {
		panic("handshake: no keypair")
	}
	plain, err := rsa.DecryptOAEP(sha256.New(), nil, r.key, wrapped, nil)
	if err != nil {
		return sk, fmt.Errorf("unwrap session key: %w", err)
	}
	if len(plain) != len(sk) {
		return sk, fmt.Errorf("%w: %d bytes", ErrSessionKeySize, len(plain))
	}
	copy(sk[:], plain)
	return sk, nil
}

// MarshalPublicKey encodes pub as a SubjectPublicKeyInfo whose algorithm
// identifier carries no parameters. A 1024-bit key encodes to exactly
// wire.PublicKeySize bytes.
func MarshalPublicKey(pub *rsa.PublicKey) (PublicKey, error) {
	var out PublicKey

	b := cryptobyte.NewBuilder(make([]byte, 0, len(out)))
	b.AddASN1(asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1(asn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1ObjectIdentifier(oidRSAEncryption)
		})
		pkcs1 := cryptobyte.NewBuilder(nil)
		pkcs1.AddASN1(asn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1BigInt(pub.N)
			b.AddASN1Int64(int64(pub.E))
		})
		key, err := pkcs1.Bytes()
		if err != nil {
			b.SetError(err)
			return
		}
		b.AddASN1BitString(key)
	})

	der, err := b.Bytes()
	if err != nil {
		return out, fmt.Errorf("marshal public key: %w", err)
	}
	if len(der) != len(out) {
		return out, fmt.Errorf("%w: %d bytes", ErrPublicKeySize, len(der))
	}
	copy(out[:], der)
	return out, nil
}

// ParsePublicKey decodes a public key produced by MarshalPublicKey. An
// explicit NULL parameter is accepted too.
func ParsePublicKey(b []byte) (*rsa.PublicKey, error) {
	var (
		input = cryptobyte.String(b)
		spki  cryptobyte.String
		alg   cryptobyte.String
		oid   encoding_asn1.ObjectIdentifier
		bits  []byte
	)
	if !input.ReadASN1(&spki, asn1.SEQUENCE) ||
		!spki.ReadASN1(&alg, asn1.SEQUENCE) ||
		!alg.ReadASN1ObjectIdentifier(&oid) ||
		!alg.SkipOptionalASN1(asn1.NULL) ||
		!alg.Empty() ||
		!spki.ReadASN1BitStringAsBytes(&bits) ||
		!spki.Empty() {
		return nil, ErrMalformedKey
	}
	if !oid.Equal(oidRSAEncryption) {
		return nil, fmt.Errorf("%w: algorithm %s", ErrMalformedKey, oid)
	}

	var (
		key = cryptobyte.String(bits)
		seq cryptobyte.String
		n   = new(big.Int)
		e   int
	)
	if !key.ReadASN1(&seq, asn1.SEQUENCE) ||
		!seq.ReadASN1Integer(n) ||
		!seq.ReadASN1Integer(&e) ||
		!seq.Empty() {
		return nil, ErrMalformedKey
	}
	if n.Sign() <= 0 || e < 3 {
		return nil, fmt.Errorf("%w: invalid modulus or exponent", ErrMalformedKey)
	}
	return &rsa.PublicKey{N: n, E: e}, nil
}

// WrapSessionKey encrypts key for the holder of pub the way the server does.
func WrapSessionKey(random io.Reader, pub PublicKey, key SessionKey) ([wire.WrappedKeySize]byte, error) {
	var out [wire.WrappedKeySize]byte
	rsaPub, err := ParsePublicKey(pub[:])
	if err != nil {
		return out, err
	}
	wrapped, err := rsa.EncryptOAEP(sha256.New(), random, rsaPub, key[:], nil)
	if err != nil {
		return out, fmt.Errorf("wrap session key: %w", err)
	}
	if len(wrapped) != len(out) {
		return out, fmt.Errorf("wrapped key is %d bytes, want %d", len(wrapped), len(out))
	}
	copy(out[:], wrapped)
	return out, nil
}
