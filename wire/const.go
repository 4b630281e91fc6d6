package wire

import "strconv"

const (
	Version = 3

	ClientIDSize      = 16
	NameSize          = 255
	FileNameSize      = 255
	PublicKeySize     = 160 // X.509 SubjectPublicKeyInfo of a 1024-bit RSA key
	SymmetricKeySize  = 16
	WrappedKeySize    = 128 // one RSA-1024 OAEP block
	ContentSizeSize   = 4
	ChecksumSize      = 4
	RequestHeaderSize = ClientIDSize + 1 + 2 + 4
	HeaderSize        = 1 + 2 + 4

	// MaxContentSize bounds a single SendFile payload. The protocol's size
	// fields are 32-bit.
	MaxContentSize uint64 = 1<<32 - 1 - ClientIDSize - FileNameSize - ContentSizeSize
)

// Code is a request or response opcode.
type Code uint16

// Requests.
const (
	CodeClientsList       Code = 1001
	CodePublicKeyOf       Code = 1002
	CodeRegister          Code = 1025
	CodeRegisterPublicKey Code = 1026
	CodeReconnect         Code = 1027
	CodeSendFile          Code = 1028
	CodeValidCRC          Code = 1029
	CodeInvalidCRC        Code = 1030
	CodeAbortCRC          Code = 1031
)

// Responses.
const (
	CodeUsers              Code = 2001
	CodePublicKey          Code = 2002
	CodeRegistrationOK     Code = 2100
	CodeRegistrationFailed Code = 2101
	CodePublicKeyRegOK     Code = 2102
	CodeFileSent           Code = 2103
	CodeAck                Code = 2104
	CodeReconnectOK        Code = 2105
	CodeReconnectRejected  Code = 2106
	CodeGeneralError       Code = 2107
)

// Sizes of fixed response payloads.
const (
	RegistrationOKSize = ClientIDSize
	KeyExchangeSize    = ClientIDSize + WrappedKeySize
	PublicKeyRespSize  = ClientIDSize + PublicKeySize
	FileSentSize       = FileNameSize + ContentSizeSize + ChecksumSize
	AckSize            = ClientIDSize
	UserEntrySize      = ClientIDSize + NameSize
)

var codeNames = map[Code]string{
	CodeClientsList:        "ClientsList",
	CodePublicKeyOf:        "PublicKeyOf",
	CodeRegister:           "Register",
	CodeRegisterPublicKey:  "RegisterPublicKey",
	CodeReconnect:          "Reconnect",
	CodeSendFile:           "SendFile",
	CodeValidCRC:           "ValidCRC",
	CodeInvalidCRC:         "InvalidCRC",
	CodeAbortCRC:           "AbortCRC",
	CodeUsers:              "Users",
	CodePublicKey:          "PublicKey",
	CodeRegistrationOK:     "RegistrationOK",
	CodeRegistrationFailed: "RegistrationFailed",
	CodePublicKeyRegOK:     "PublicKeyRegOK",
	CodeFileSent:           "FileSent",
	CodeAck:                "Ack",
	CodeReconnectOK:        "ReconnectOK",
	CodeReconnectRejected:  "ReconnectRejected",
	CodeGeneralError:       "GeneralError",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "Code(" + strconv.Itoa(int(c)) + ")"
}

// IsError reports whether c belongs to the server's error family.
func IsError(c Code) bool {
	switch c {
	case CodeRegistrationFailed, CodeReconnectRejected, CodeGeneralError:
		return true
	}
	return false
}

// FixedPayloadSize returns the exact payload size of a response code with a
// fixed shape. ok is false for variable-sized responses and unknown codes.
func FixedPayloadSize(c Code) (size int, ok bool) {
	switch c {
	case CodeRegistrationOK:
		return RegistrationOKSize, true
	case CodePublicKeyRegOK, CodeReconnectOK:
		return KeyExchangeSize, true
	case CodePublicKey:
		return PublicKeyRespSize, true
	case CodeFileSent:
		return FileSentSize, true
	case CodeAck:
		return AckSize, true
	case CodeRegistrationFailed, CodeReconnectRejected, CodeGeneralError:
		return 0, true
	}
	return 0, false
}
