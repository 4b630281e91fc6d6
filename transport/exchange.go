package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/udisondev/courier/wire"
)

// MaxPayloadSize bounds the payload a response may declare.
const MaxPayloadSize = 64 << 20

var ErrPayloadTooLarge = errors.New("transport: declared payload too large")

// Response is a reassembled server response. Payload holds exactly
// Header.PayloadSize bytes; chunk padding is dropped.
type Response struct {
	Header  wire.ResponseHeader
	Payload []byte
}

// ReadResponse reads one response from t. The first read takes a whole
// chunk, which holds header and payload in the common case. Longer payloads
// are topped up with reads of at most ChunkSize bytes until complete.
func ReadResponse(t Transport) (Response, error) {
	var resp Response

	first, err := t.RecvExact(ChunkSize)
	if err != nil {
		return resp, fmt.Errorf("read response header: %w", err)
	}

	resp.Header, err = wire.DecodeResponseHeader(first)
	if err != nil {
		return resp, err
	}

	if resp.Header.PayloadSize > MaxPayloadSize {
		return resp, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, resp.Header.PayloadSize)
	}
	size := int(resp.Header.PayloadSize)
	resp.Payload = make([]byte, size)
	got := copy(resp.Payload, first[wire.HeaderSize:])

	for got < size {
		toRead := min(size-got, ChunkSize)
		chunk, err := t.RecvExact(toRead)
		if err != nil {
			return resp, fmt.Errorf("read payload (%d of %d bytes): %w", got, size, err)
		}
		got += copy(resp.Payload[got:], chunk)
	}

	return resp, nil
}

// Exchange performs one request/response round trip on a fresh connection.
// The connection is closed before Exchange returns. A failed send means the
// request was not delivered.
func Exchange(ctx context.Context, t Transport, request []byte) (Response, error) {
	if err := t.Connect(ctx); err != nil {
		return Response{}, err
	}
	defer t.Close()

	if err := t.SendAll(request); err != nil {
		return Response{}, err
	}

	resp, err := ReadResponse(t)
	if err != nil {
		return Response{}, err
	}

	slog.Debug("Response received",
		"code", resp.Header.Code,
		"payloadSize", resp.Header.PayloadSize)

	return resp, nil
}
