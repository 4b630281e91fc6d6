// Package engine drives the client side of the delivery protocol:
// registration or reconnection, key exchange, and the checksum verified
// upload of one file with bounded resends.
//
// An Engine is not safe for concurrent use. It issues one request at a time
// and consumes each response completely before the next request.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/udisondev/courier/checksum"
	"github.com/udisondev/courier/config"
	"github.com/udisondev/courier/handshake"
	"github.com/udisondev/courier/store"
	"github.com/udisondev/courier/transport"
	"github.com/udisondev/courier/wire"
)

// Identity is the client itself.
type Identity struct {
	ID              wire.ClientID
	Username        string
	PublicKey       handshake.PublicKey
	PublicKeySet    bool
	SymmetricKey    handshake.SessionKey
	SymmetricKeySet bool
}

// IdentityStore persists what registration and key exchange produce.
type IdentityStore interface {
	SaveIdentity(config.Identity) error
	SavePrivateKey(der []byte) error
}

// History records transfer outcomes. Failures are logged and otherwise
// ignored.
type History interface {
	BeginTransfer(ctx context.Context, clientID wire.ClientID, fileName string, size int64, checksum uint32) (int64, error)
	RecordAttempt(ctx context.Context, id int64, attempt int, remote uint32) error
	FinishTransfer(ctx context.Context, id int64, status string) error
}

// RosterCache keeps a local copy of the directory listing.
type RosterCache interface {
	ReplacePeers(ctx context.Context, peers []store.Peer) error
	SetPeerPublicKey(ctx context.Context, id wire.ClientID, key []byte) error
}

type Options struct {
	Transport transport.Transport

	// Checksum computes the value compared with the server's verdict.
	// Defaults to checksum.ByteSum.
	Checksum checksum.Func

	NewKeypair  func() handshake.Keypair
	LoadKeypair func(der []byte) (handshake.Keypair, error)

	// Optional collaborators.
	Identities IdentityStore
	History    History
	Roster     RosterCache

	Logger *slog.Logger
}

type Engine struct {
	t           transport.Transport
	sum         checksum.Func
	newKeypair  func() handshake.Keypair
	loadKeypair func(der []byte) (handshake.Keypair, error)
	identities  IdentityStore
	history     History
	cache       RosterCache
	log         *slog.Logger

	state   State
	self    Identity
	keypair handshake.Keypair
	roster  map[wire.ClientID]*Peer
	lastErr error
}

func New(opts Options) *Engine {
	e := &Engine{
		t:           opts.Transport,
		sum:         opts.Checksum,
		newKeypair:  opts.NewKeypair,
		loadKeypair: opts.LoadKeypair,
		identities:  opts.Identities,
		history:     opts.History,
		cache:       opts.Roster,
		log:         opts.Logger,
		roster:      make(map[wire.ClientID]*Peer),
	}
	if e.sum == nil {
		e.sum = checksum.ByteSum
	}
	if e.newKeypair == nil {
		e.newKeypair = func() handshake.Keypair { return handshake.NewRSA() }
	}
	if e.loadKeypair == nil {
		e.loadKeypair = func(der []byte) (handshake.Keypair, error) { return handshake.LoadRSA(der) }
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	return e
}

func (e *Engine) State() State {
	return e.state
}

// Identity returns a copy of the client's identity.
func (e *Engine) Identity() Identity {
	return e.self
}

// LastError describes the most recent failed operation, or is empty.
func (e *Engine) LastError() string {
	if e.lastErr == nil {
		return ""
	}
	return e.lastErr.Error()
}

func (e *Engine) setState(s State) {
	if s == e.state {
		return
	}
	e.log.Debug("State changed", "from", e.state, "to", s)
	e.state = s
}

// fail records err as the last error. It returns err unchanged.
func (e *Engine) fail(err error) error {
	e.lastErr = err
	e.log.Error("Operation failed", "state", e.state, "error", err)
	return err
}

// validateHeader checks a response header against the single code expected
// at this point of the exchange.
func validateHeader(h wire.ResponseHeader, expected wire.Code) error {
	if wire.IsError(h.Code) {
		return fmt.Errorf("%w: %s", ErrServerRejected, h.Code)
	}
	if h.Code != expected {
		return fmt.Errorf("%w: got %s, want %s", ErrUnexpectedCode, h.Code, expected)
	}
	if size, ok := wire.FixedPayloadSize(h.Code); ok && int64(h.PayloadSize) != int64(size) {
		return fmt.Errorf("%w: %s declares %d bytes, want %d", ErrPayloadSize, h.Code, h.PayloadSize, size)
	}
	return nil
}

// exchange sends req and returns the payload of a response with the
// expected code.
func (e *Engine) exchange(ctx context.Context, op string, req wire.Request, expect wire.Code) ([]byte, error) {
	if e.state.Terminal() {
		return nil, newError(KindProtocol, op, fmt.Errorf("%w: %s", ErrTerminal, e.state))
	}

	id := e.self.ID
	if req.Code() == wire.CodeRegister {
		id = wire.ClientID{}
	}
	b, err := wire.EncodeRequest(id, req)
	if err != nil {
		if errors.Is(err, wire.ErrFieldTooLong) || errors.Is(err, wire.ErrFieldInvalid) {
			return nil, newError(KindConfig, op, err)
		}
		return nil, newError(KindProtocol, op, err)
	}

	e.log.Debug("Sending request", "code", req.Code(), "size", len(b))
	resp, err := transport.Exchange(ctx, e.t, b)
	if err != nil {
		return nil, newError(KindTransport, op, err)
	}

	if err := validateHeader(resp.Header, expect); err != nil {
		return nil, newError(KindProtocol, op, err)
	}
	return resp.Payload, nil
}

// Register registers username with the server and adopts the id it
// assigns.
func (e *Engine) Register(ctx context.Context, username string) error {
	const op = "register"
	if e.state != Unregistered {
		return e.fail(newError(KindProtocol, op, fmt.Errorf("%w: %s", ErrState, e.state)))
	}
	if username == "" {
		return e.fail(newError(KindConfig, op, errors.New("empty username")))
	}
	if err := wire.CheckName(username, wire.NameSize); err != nil {
		return e.fail(newError(KindConfig, op, fmt.Errorf("username: %w", err)))
	}

	e.setState(Registering)
	payload, err := e.exchange(ctx, op, wire.Register{Name: username}, wire.CodeRegistrationOK)
	if err != nil {
		e.setState(Unregistered)
		return e.fail(err)
	}
	r, err := wire.DecodeRegistrationOK(payload)
	if err != nil {
		e.setState(Unregistered)
		return e.fail(newError(KindProtocol, op, err))
	}

	if e.identities != nil {
		if err := e.identities.SaveIdentity(config.Identity{Username: username, ID: r.ClientID}); err != nil {
			e.setState(Unregistered)
			return e.fail(newError(KindConfig, op, err))
		}
	}
	e.self = Identity{ID: r.ClientID, Username: username}

	e.log.Info("Registered", "username", username, "clientID", r.ClientID)
	e.setState(Registered)
	return nil
}

// RegisterPublicKey generates a keypair, persists its private half, sends
// the public half and unwraps the session key the server returns.
func (e *Engine) RegisterPublicKey(ctx context.Context) error {
	const op = "register public key"
	if e.state != Registered {
		return e.fail(newError(KindProtocol, op, fmt.Errorf("%w: %s", ErrState, e.state)))
	}

	e.setState(KeyExchanging)
	if err := e.registerPublicKey(ctx, op); err != nil {
		e.setState(Registered)
		return e.fail(err)
	}

	e.log.Info("Public key registered", "clientID", e.self.ID)
	e.setState(Ready)
	return nil
}

func (e *Engine) registerPublicKey(ctx context.Context, op string) error {
	kp := e.newKeypair()
	if err := kp.Generate(); err != nil {
		return newError(KindCrypto, op, err)
	}
	pub, err := kp.PublicKeyBytes()
	if err != nil {
		return newError(KindCrypto, op, err)
	}
	der, err := kp.PrivateKeyBytes()
	if err != nil {
		return newError(KindCrypto, op, err)
	}

	if e.identities != nil {
		if err := e.identities.SavePrivateKey(der); err != nil {
			return newError(KindConfig, op, err)
		}
		id := config.Identity{Username: e.self.Username, ID: e.self.ID, PrivateKey: der}
		if err := e.identities.SaveIdentity(id); err != nil {
			return newError(KindConfig, op, err)
		}
	}

	req := wire.RegisterPublicKey{Name: e.self.Username, PublicKey: pub}
	payload, err := e.exchange(ctx, op, req, wire.CodePublicKeyRegOK)
	if err != nil {
		return err
	}

	return e.acceptSessionKey(op, kp, pub, payload)
}

// acceptSessionKey decodes a key exchange payload for the current identity
// and installs the unwrapped session key.
func (e *Engine) acceptSessionKey(op string, kp handshake.Keypair, pub handshake.PublicKey, payload []byte) error {
	id, wrapped, err := wire.DecodeKeyExchange(payload)
	if err != nil {
		return newError(KindProtocol, op, err)
	}
	if id != e.self.ID {
		return newError(KindProtocol, op, fmt.Errorf("%w: %s", ErrIdentityMismatch, id))
	}

	sk, err := kp.DecryptSessionKey(wrapped[:])
	if err != nil {
		return newError(KindCrypto, op, err)
	}

	e.keypair = kp
	e.self.PublicKey, e.self.PublicKeySet = pub, true
	e.self.SymmetricKey, e.self.SymmetricKeySet = sk, true
	return nil
}

// Reconnect resumes a stored identity. The server must answer with the
// stored id; the session key it sends is unwrapped with the stored private
// key. A rejection yields ErrReconnectRejected and leaves the engine
// Unregistered.
func (e *Engine) Reconnect(ctx context.Context, stored config.Identity) error {
	const op = "reconnect"
	if e.state != Unregistered {
		return e.fail(newError(KindProtocol, op, fmt.Errorf("%w: %s", ErrState, e.state)))
	}
	if len(stored.PrivateKey) == 0 {
		return e.fail(newError(KindConfig, op, errors.New("stored identity has no private key")))
	}

	kp, err := e.loadKeypair(stored.PrivateKey)
	if err != nil {
		return e.fail(newError(KindCrypto, op, err))
	}
	pub, err := kp.PublicKeyBytes()
	if err != nil {
		return e.fail(newError(KindCrypto, op, err))
	}

	e.self = Identity{ID: stored.ID, Username: stored.Username}
	e.setState(Registering)

	payload, err := e.exchange(ctx, op, wire.Reconnect{Name: stored.Username}, wire.CodeReconnectOK)
	if err == nil {
		err = e.acceptSessionKey(op, kp, pub, payload)
	}
	if err != nil {
		e.self = Identity{}
		e.setState(Unregistered)
		if errors.Is(err, ErrServerRejected) {
			err = newError(KindProtocol, op, fmt.Errorf("%w: %w", ErrReconnectRejected, errors.Unwrap(err)))
		}
		return e.fail(err)
	}

	e.log.Info("Reconnected", "username", stored.Username, "clientID", stored.ID)
	e.setState(Ready)
	return nil
}

// Authenticate brings the engine to Ready. A stored identity with a key is
// reconnected; without one, or when the server rejects the reconnect, a new
// identity is registered under username.
func (e *Engine) Authenticate(ctx context.Context, username string, stored *config.Identity) error {
	if stored != nil && len(stored.PrivateKey) > 0 {
		err := e.Reconnect(ctx, *stored)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrReconnectRejected) {
			return err
		}
		e.log.Info("Reconnect rejected, registering again", "username", username)
	}

	if err := e.Register(ctx, username); err != nil {
		return err
	}
	return e.RegisterPublicKey(ctx)
}

// Run authenticates and delivers the file named by the bootstrap config.
func (e *Engine) Run(ctx context.Context, b config.Bootstrap, stored *config.Identity) error {
	p, err := transferFromBootstrap(b)
	if err != nil {
		return e.fail(err)
	}
	if err := e.Authenticate(ctx, b.Username, stored); err != nil {
		return err
	}
	return e.Deliver(ctx, p)
}
