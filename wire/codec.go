package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrShortBuffer     = errors.New("wire: buffer shorter than header")
	ErrPayloadSize     = errors.New("wire: payload size mismatch")
	ErrFieldTooLong    = errors.New("wire: field does not fit its capacity")
	ErrFieldInvalid    = errors.New("wire: field contains a NUL byte")
	ErrUnterminated    = errors.New("wire: field is not NUL terminated")
	ErrUnknownCode     = errors.New("wire: unknown code")
	ErrContentTooLarge = errors.New("wire: content exceeds protocol limit")
)

// EncodeRequest serializes the header and payload of req. The header carries
// id; registration requests pass the zero id.
func EncodeRequest(id ClientID, req Request) ([]byte, error) {
	b := make([]byte, RequestHeaderSize, RequestHeaderSize+payloadHint(req))
	b, err := req.appendPayload(b)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", req.Code(), err)
	}

	// ClientID(16) + Version(1) + Code(2) + PayloadSize(4)
	copy(b[0:ClientIDSize], id[:])
	b[ClientIDSize] = Version
	binary.LittleEndian.PutUint16(b[ClientIDSize+1:], uint16(req.Code()))
	binary.LittleEndian.PutUint32(b[ClientIDSize+3:], uint32(len(b)-RequestHeaderSize))
	return b, nil
}

func payloadHint(req Request) int {
	switch r := req.(type) {
	case SendFile:
		return ClientIDSize + FileNameSize + ContentSizeSize + len(r.Content)
	case RegisterPublicKey:
		return NameSize + PublicKeySize
	}
	return NameSize
}

// EncodeResponse serializes a server response. The directory server is not
// part of this module; fakes and tests use it to speak the protocol.
func EncodeResponse(resp Response) ([]byte, error) {
	b := make([]byte, HeaderSize)
	b, err := resp.appendPayload(b)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", resp.Code(), err)
	}

	b[0] = Version
	binary.LittleEndian.PutUint16(b[1:3], uint16(resp.Code()))
	binary.LittleEndian.PutUint32(b[3:7], uint32(len(b)-HeaderSize))
	return b, nil
}

// DecodeRequestHeader parses the first RequestHeaderSize bytes of b.
func DecodeRequestHeader(b []byte) (RequestHeader, error) {
	var h RequestHeader
	if len(b) < RequestHeaderSize {
		return h, ErrShortBuffer
	}
	copy(h.ClientID[:], b[:ClientIDSize])
	h.Version = b[ClientIDSize]
	h.Code = Code(binary.LittleEndian.Uint16(b[ClientIDSize+1:]))
	h.PayloadSize = binary.LittleEndian.Uint32(b[ClientIDSize+3:])
	return h, nil
}

// DecodeResponseHeader parses the first HeaderSize bytes of b and never
// looks further.
func DecodeResponseHeader(b []byte) (ResponseHeader, error) {
	var h ResponseHeader
	if len(b) < HeaderSize {
		return h, ErrShortBuffer
	}
	h.Version = b[0]
	h.Code = Code(binary.LittleEndian.Uint16(b[1:3]))
	h.PayloadSize = binary.LittleEndian.Uint32(b[3:7])
	return h, nil
}

// DecodeRequest parses a complete request: header plus exactly
// header.PayloadSize payload bytes.
func DecodeRequest(b []byte) (RequestHeader, Request, error) {
	h, err := DecodeRequestHeader(b)
	if err != nil {
		return h, nil, err
	}
	payload := b[RequestHeaderSize:]
	if uint64(len(payload)) != uint64(h.PayloadSize) {
		return h, nil, fmt.Errorf("%s: %w: header says %d, got %d", h.Code, ErrPayloadSize, h.PayloadSize, len(payload))
	}

	var req Request
	switch h.Code {
	case CodeRegister, CodeReconnect:
		name, err := expectName(payload, NameSize)
		if err != nil {
			return h, nil, fmt.Errorf("%s: %w", h.Code, err)
		}
		if h.Code == CodeRegister {
			req = Register{Name: name}
		} else {
			req = Reconnect{Name: name}
		}
	case CodeRegisterPublicKey:
		if len(payload) != NameSize+PublicKeySize {
			return h, nil, fmt.Errorf("%s: %w", h.Code, ErrPayloadSize)
		}
		name, err := getString(payload[:NameSize])
		if err != nil {
			return h, nil, fmt.Errorf("%s: %w", h.Code, err)
		}
		r := RegisterPublicKey{Name: name}
		copy(r.PublicKey[:], payload[NameSize:])
		req = r
	case CodeClientsList:
		if len(payload) != 0 {
			return h, nil, fmt.Errorf("%s: %w", h.Code, ErrPayloadSize)
		}
		req = ClientsList{}
	case CodePublicKeyOf:
		if len(payload) != ClientIDSize {
			return h, nil, fmt.Errorf("%s: %w", h.Code, ErrPayloadSize)
		}
		var r PublicKeyOf
		copy(r.ClientID[:], payload)
		req = r
	case CodeSendFile:
		r, err := decodeSendFile(payload)
		if err != nil {
			return h, nil, fmt.Errorf("%s: %w", h.Code, err)
		}
		req = r
	case CodeValidCRC, CodeInvalidCRC, CodeAbortCRC:
		name, err := expectName(payload, FileNameSize)
		if err != nil {
			return h, nil, fmt.Errorf("%s: %w", h.Code, err)
		}
		switch h.Code {
		case CodeValidCRC:
			req = ValidCRC{FileName: name}
		case CodeInvalidCRC:
			req = InvalidCRC{FileName: name}
		default:
			req = AbortCRC{FileName: name}
		}
	default:
		return h, nil, fmt.Errorf("%w: %d", ErrUnknownCode, uint16(h.Code))
	}
	return h, req, nil
}

func decodeSendFile(payload []byte) (SendFile, error) {
	var r SendFile
	const fixed = ClientIDSize + FileNameSize + ContentSizeSize
	if len(payload) < fixed {
		return r, ErrPayloadSize
	}
	copy(r.ClientID[:], payload[:ClientIDSize])
	name, err := getString(payload[ClientIDSize : ClientIDSize+FileNameSize])
	if err != nil {
		return r, err
	}
	r.FileName = name
	size := binary.LittleEndian.Uint32(payload[ClientIDSize+FileNameSize:])
	if uint64(len(payload)-fixed) != uint64(size) {
		return r, fmt.Errorf("%w: content size %d, got %d", ErrPayloadSize, size, len(payload)-fixed)
	}
	r.Content = make([]byte, size)
	copy(r.Content, payload[fixed:])
	return r, nil
}

// DecodePayload decodes the payload of a response with the given code. For
// fixed-shape codes the payload length must match exactly; Users payloads
// must be a whole number of entries.
func DecodePayload(code Code, payload []byte) (Response, error) {
	if size, ok := FixedPayloadSize(code); ok && len(payload) != size {
		return nil, fmt.Errorf("%s: %w: expected %d, got %d", code, ErrPayloadSize, size, len(payload))
	}

	switch code {
	case CodeRegistrationOK:
		var r RegistrationOK
		copy(r.ClientID[:], payload)
		return r, nil
	case CodePublicKeyRegOK:
		var r PublicKeyRegOK
		copy(r.ClientID[:], payload[:ClientIDSize])
		copy(r.WrappedKey[:], payload[ClientIDSize:])
		return r, nil
	case CodeReconnectOK:
		var r ReconnectOK
		copy(r.ClientID[:], payload[:ClientIDSize])
		copy(r.WrappedKey[:], payload[ClientIDSize:])
		return r, nil
	case CodePublicKey:
		var r PublicKey
		copy(r.ClientID[:], payload[:ClientIDSize])
		copy(r.PublicKey[:], payload[ClientIDSize:])
		return r, nil
	case CodeFileSent:
		name, err := getString(payload[:FileNameSize])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", code, err)
		}
		return FileSent{
			FileName:    name,
			ContentSize: binary.LittleEndian.Uint32(payload[FileNameSize:]),
			Checksum:    binary.LittleEndian.Uint32(payload[FileNameSize+ContentSizeSize:]),
		}, nil
	case CodeAck:
		var r Ack
		copy(r.ClientID[:], payload)
		return r, nil
	case CodeUsers:
		users, err := decodeUsers(payload)
		if err != nil {
			return nil, err
		}
		return users, nil
	case CodeRegistrationFailed, CodeReconnectRejected, CodeGeneralError:
		return Failure{Status: code}, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownCode, uint16(code))
}

func decodeUsers(payload []byte) (Users, error) {
	if len(payload)%UserEntrySize != 0 {
		return Users{}, fmt.Errorf("%s: %w: %d is not a multiple of %d", CodeUsers, ErrPayloadSize, len(payload), UserEntrySize)
	}
	users := Users{Entries: make([]UserEntry, 0, len(payload)/UserEntrySize)}
	for of := 0; of < len(payload); of += UserEntrySize {
		var e UserEntry
		copy(e.ClientID[:], payload[of:of+ClientIDSize])
		name, err := getString(payload[of+ClientIDSize : of+UserEntrySize])
		if err != nil {
			return Users{}, fmt.Errorf("%s: entry %d: %w", CodeUsers, of/UserEntrySize, err)
		}
		e.Name = name
		users.Entries = append(users.Entries, e)
	}
	return users, nil
}

func expectName(payload []byte, capacity int) (string, error) {
	if len(payload) != capacity {
		return "", ErrPayloadSize
	}
	return getString(payload)
}

// putString writes s NUL-padded into a field of len(dst) bytes. There must be
// room for at least one terminating NUL.
func putString(dst []byte, s string) error {
	if len(s) >= len(dst) {
		return fmt.Errorf("%w: %d bytes, capacity %d", ErrFieldTooLong, len(s), len(dst)-1)
	}
	if strings.IndexByte(s, 0) >= 0 {
		return ErrFieldInvalid
	}
	n := copy(dst, s)
	clear(dst[n:])
	return nil
}

func getString(field []byte) (string, error) {
	n := bytes.IndexByte(field, 0)
	if n < 0 {
		return "", ErrUnterminated
	}
	return string(field[:n]), nil
}

// CheckName reports whether s fits a fixed text field of the given capacity.
func CheckName(s string, capacity int) error {
	return putString(make([]byte, capacity), s)
}

func appendName(b []byte, name string, capacity int) ([]byte, error) {
	of := len(b)
	b = append(b, make([]byte, capacity)...)
	if err := putString(b[of:], name); err != nil {
		return nil, err
	}
	return b, nil
}

func (r Register) appendPayload(b []byte) ([]byte, error) {
	return appendName(b, r.Name, NameSize)
}

func (r RegisterPublicKey) appendPayload(b []byte) ([]byte, error) {
	b, err := appendName(b, r.Name, NameSize)
	if err != nil {
		return nil, err
	}
	return append(b, r.PublicKey[:]...), nil
}

func (ClientsList) appendPayload(b []byte) ([]byte, error) {
	return b, nil
}

func (r PublicKeyOf) appendPayload(b []byte) ([]byte, error) {
	return append(b, r.ClientID[:]...), nil
}

func (r Reconnect) appendPayload(b []byte) ([]byte, error) {
	return appendName(b, r.Name, NameSize)
}

func (r SendFile) appendPayload(b []byte) ([]byte, error) {
	if uint64(len(r.Content)) > MaxContentSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrContentTooLarge, len(r.Content))
	}
	b = append(b, r.ClientID[:]...)
	b, err := appendName(b, r.FileName, FileNameSize)
	if err != nil {
		return nil, err
	}
	b = binary.LittleEndian.AppendUint32(b, uint32(len(r.Content)))
	return append(b, r.Content...), nil
}

func (r ValidCRC) appendPayload(b []byte) ([]byte, error) {
	return appendName(b, r.FileName, FileNameSize)
}

func (r InvalidCRC) appendPayload(b []byte) ([]byte, error) {
	return appendName(b, r.FileName, FileNameSize)
}

func (r AbortCRC) appendPayload(b []byte) ([]byte, error) {
	return appendName(b, r.FileName, FileNameSize)
}

func (r RegistrationOK) appendPayload(b []byte) ([]byte, error) {
	return append(b, r.ClientID[:]...), nil
}

func (r PublicKeyRegOK) appendPayload(b []byte) ([]byte, error) {
	b = append(b, r.ClientID[:]...)
	return append(b, r.WrappedKey[:]...), nil
}

func (r ReconnectOK) appendPayload(b []byte) ([]byte, error) {
	b = append(b, r.ClientID[:]...)
	return append(b, r.WrappedKey[:]...), nil
}

func (r Users) appendPayload(b []byte) ([]byte, error) {
	for _, e := range r.Entries {
		b = append(b, e.ClientID[:]...)
		var err error
		if b, err = appendName(b, e.Name, NameSize); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (r PublicKey) appendPayload(b []byte) ([]byte, error) {
	b = append(b, r.ClientID[:]...)
	return append(b, r.PublicKey[:]...), nil
}

func (r FileSent) appendPayload(b []byte) ([]byte, error) {
	b, err := appendName(b, r.FileName, FileNameSize)
	if err != nil {
		return nil, err
	}
	b = binary.LittleEndian.AppendUint32(b, r.ContentSize)
	return binary.LittleEndian.AppendUint32(b, r.Checksum), nil
}

func (r Ack) appendPayload(b []byte) ([]byte, error) {
	return append(b, r.ClientID[:]...), nil
}

func (Failure) appendPayload(b []byte) ([]byte, error) {
	return b, nil
}
