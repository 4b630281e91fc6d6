package handshake

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
)

// The server decrypts file content with AES-128 in CFB mode and an all-zero
// IV, so the same key must never encrypt two different files. The CFB
// constructors are deprecated since Go 1.24; the server accepts nothing else.
var zeroIV [aes.BlockSize]byte

// EncryptSession encrypts plaintext under the session key. The ciphertext
// has the same length as plaintext.
func EncryptSession(key SessionKey, plaintext []byte) []byte {
	out := make([]byte, len(plaintext))
	cipher.NewCFBEncrypter(newBlock(key), zeroIV[:]).XORKeyStream(out, plaintext) //nolint:staticcheck // SA1019: wire format
	return out
}

// DecryptSession reverses EncryptSession.
func DecryptSession(key SessionKey, ciphertext []byte) []byte {
	out := make([]byte, len(ciphertext))
	cipher.NewCFBDecrypter(newBlock(key), zeroIV[:]).XORKeyStream(out, ciphertext) //nolint:staticcheck // SA1019: wire format
	return out
}

func newBlock(key SessionKey) cipher.Block {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		// unreachable: key is always 16 bytes
		panic(err)
	}
	return block
}

// NewSessionKey returns a random session key.
func NewSessionKey() (SessionKey, error) {
	var k SessionKey
	_, err := rand.Read(k[:])
	return k, err
}
