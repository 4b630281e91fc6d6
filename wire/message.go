package wire

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// ClientID is the server-assigned identifier of a client. Two ids are equal
// when all 16 bytes are equal.
type ClientID [ClientIDSize]byte

// String returns the id as 32 lowercase hex digits, the form stored in
// identity files.
func (id ClientID) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether id is the all-zero id used by registration requests.
func (id ClientID) IsZero() bool {
	return id == ClientID{}
}

// ParseClientID accepts 32 hex digits, with or without uuid dashes.
func ParseClientID(s string) (ClientID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ClientID{}, fmt.Errorf("parse client id: %w", err)
	}
	return ClientID(u), nil
}

// NewClientID returns a random (version 4) id.
func NewClientID() ClientID {
	return ClientID(uuid.New())
}

type RequestHeader struct {
	ClientID    ClientID
	Version     uint8
	Code        Code
	PayloadSize uint32
}

type ResponseHeader struct {
	Version     uint8
	Code        Code
	PayloadSize uint32
}

// Request is a message sent by the client. Its header is built by
// EncodeRequest.
type Request interface {
	Code() Code
	appendPayload(b []byte) ([]byte, error)
}

// Response is a message sent by the server.
type Response interface {
	Code() Code
	appendPayload(b []byte) ([]byte, error)
}

type Register struct {
	Name string
}

type RegisterPublicKey struct {
	Name      string
	PublicKey [PublicKeySize]byte
}

type ClientsList struct{}

type PublicKeyOf struct {
	ClientID ClientID
}

type Reconnect struct {
	Name string
}

// SendFile carries already encrypted file content.
type SendFile struct {
	ClientID ClientID
	FileName string
	Content  []byte
}

type ValidCRC struct {
	FileName string
}

type InvalidCRC struct {
	FileName string
}

type AbortCRC struct {
	FileName string
}

func (Register) Code() Code          { return CodeRegister }
func (RegisterPublicKey) Code() Code { return CodeRegisterPublicKey }
func (ClientsList) Code() Code       { return CodeClientsList }
func (PublicKeyOf) Code() Code       { return CodePublicKeyOf }
func (Reconnect) Code() Code         { return CodeReconnect }
func (SendFile) Code() Code          { return CodeSendFile }
func (ValidCRC) Code() Code          { return CodeValidCRC }
func (InvalidCRC) Code() Code        { return CodeInvalidCRC }
func (AbortCRC) Code() Code          { return CodeAbortCRC }

type RegistrationOK struct {
	ClientID ClientID
}

type PublicKeyRegOK struct {
	ClientID   ClientID
	WrappedKey [WrappedKeySize]byte
}

type ReconnectOK struct {
	ClientID   ClientID
	WrappedKey [WrappedKeySize]byte
}

type UserEntry struct {
	ClientID ClientID
	Name     string
}

type Users struct {
	Entries []UserEntry
}

type PublicKey struct {
	ClientID  ClientID
	PublicKey [PublicKeySize]byte
}

// FileSent reports what the server received. Checksum is computed by the
// server over the decrypted content.
type FileSent struct {
	FileName    string
	ContentSize uint32
	Checksum    uint32
}

type Ack struct {
	ClientID ClientID
}

// Failure is any member of the error family. It has no payload.
type Failure struct {
	Status Code
}

func (RegistrationOK) Code() Code { return CodeRegistrationOK }
func (PublicKeyRegOK) Code() Code { return CodePublicKeyRegOK }
func (ReconnectOK) Code() Code    { return CodeReconnectOK }
func (Users) Code() Code          { return CodeUsers }
func (PublicKey) Code() Code      { return CodePublicKey }
func (FileSent) Code() Code       { return CodeFileSent }
func (Ack) Code() Code            { return CodeAck }
func (f Failure) Code() Code      { return f.Status }
