package wire

import "fmt"

// Typed wrappers over DecodePayload for callers that know which response
// they expect.

func DecodeRegistrationOK(payload []byte) (RegistrationOK, error) {
	return decodeAs[RegistrationOK](CodeRegistrationOK, payload)
}

// DecodeKeyExchange decodes the payload shared by PublicKeyRegOK and
// ReconnectOK.
func DecodeKeyExchange(payload []byte) (ClientID, [WrappedKeySize]byte, error) {
	r, err := decodeAs[PublicKeyRegOK](CodePublicKeyRegOK, payload)
	return r.ClientID, r.WrappedKey, err
}

func DecodeUsers(payload []byte) (Users, error) {
	return decodeUsers(payload)
}

func DecodePublicKey(payload []byte) (PublicKey, error) {
	return decodeAs[PublicKey](CodePublicKey, payload)
}

func DecodeFileSent(payload []byte) (FileSent, error) {
	return decodeAs[FileSent](CodeFileSent, payload)
}

func DecodeAck(payload []byte) (Ack, error) {
	return decodeAs[Ack](CodeAck, payload)
}

func decodeAs[T Response](code Code, payload []byte) (T, error) {
	var zero T
	resp, err := DecodePayload(code, payload)
	if err != nil {
		return zero, err
	}
	r, ok := resp.(T)
	if !ok {
		return zero, fmt.Errorf("%s: unexpected payload type %T", code, resp)
	}
	return r, nil
}
