package engine

import (
	"errors"
	"fmt"

	"github.com/udisondev/courier/wire"
)

// Kind classifies engine failures. Only KindIntegrity is retried, and only
// by Deliver.
type Kind string

const (
	KindConfig    Kind = "config"
	KindTransport Kind = "transport"
	KindProtocol  Kind = "protocol"
	KindCrypto    Kind = "crypto"
	KindIntegrity Kind = "integrity"
)

var (
	ErrServerRejected    = errors.New("server rejected the request")
	ErrUnexpectedCode    = errors.New("unexpected response code")
	ErrPayloadSize       = wire.ErrPayloadSize
	ErrNoSessionKey      = errors.New("no session key")
	ErrIntegrity         = errors.New("checksum mismatch")
	ErrReconnectRejected = errors.New("reconnect rejected")
	ErrTerminal          = errors.New("engine is in a terminal state")
	ErrState             = errors.New("operation not allowed in current state")
	ErrIdentityMismatch  = errors.New("response names another client")
	ErrFileNameMismatch  = errors.New("server reported another file")
	ErrEmptyRoster       = errors.New("server returned an empty client list")
	ErrUnknownPeer       = errors.New("unknown client")
)

// Error is returned by every engine operation.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is or wraps an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

func newError(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}
