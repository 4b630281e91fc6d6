package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/udisondev/courier/handshake"
	"github.com/udisondev/courier/store"
	"github.com/udisondev/courier/wire"
)

// Peer is another client known to the directory server.
type Peer struct {
	ID           wire.ClientID
	Username     string
	PublicKey    handshake.PublicKey
	PublicKeySet bool
}

// ClientsList fetches the directory and replaces the roster with it.
func (e *Engine) ClientsList(ctx context.Context) ([]Peer, error) {
	const op = "clients list"
	if err := e.requireIdentity(op); err != nil {
		return nil, e.fail(err)
	}

	payload, err := e.exchange(ctx, op, wire.ClientsList{}, wire.CodeUsers)
	if err != nil {
		return nil, e.fail(err)
	}
	users, err := wire.DecodeUsers(payload)
	if err != nil {
		return nil, e.fail(newError(KindProtocol, op, err))
	}
	if len(users.Entries) == 0 {
		return nil, e.fail(newError(KindProtocol, op, ErrEmptyRoster))
	}

	roster := make(map[wire.ClientID]*Peer, len(users.Entries))
	for _, u := range users.Entries {
		if _, dup := roster[u.ClientID]; dup {
			e.log.Warn("Duplicate client in list", "clientID", u.ClientID, "username", u.Name)
		}
		roster[u.ClientID] = &Peer{ID: u.ClientID, Username: u.Name}
	}
	e.roster = roster
	e.log.Info("Client list received", "count", len(roster))

	peers := e.peers()
	if e.cache != nil {
		cached := make([]store.Peer, 0, len(peers))
		for _, p := range peers {
			cached = append(cached, store.Peer{ID: p.ID, Username: p.Username})
		}
		if err := e.cache.ReplacePeers(ctx, cached); err != nil {
			e.log.Warn("Failed to cache client list", "error", err)
		}
	}
	return peers, nil
}

// PublicKeyOf requests the public key of a client from the last listing and
// stores it on the roster entry.
func (e *Engine) PublicKeyOf(ctx context.Context, username string) (Peer, error) {
	const op = "public key"
	if err := e.requireIdentity(op); err != nil {
		return Peer{}, e.fail(err)
	}

	peer := e.lookup(username)
	if peer == nil {
		return Peer{}, e.fail(newError(KindProtocol, op, fmt.Errorf("%w: %q", ErrUnknownPeer, username)))
	}

	payload, err := e.exchange(ctx, op, wire.PublicKeyOf{ClientID: peer.ID}, wire.CodePublicKey)
	if err != nil {
		return Peer{}, e.fail(err)
	}
	pk, err := wire.DecodePublicKey(payload)
	if err != nil {
		return Peer{}, e.fail(newError(KindProtocol, op, err))
	}
	if pk.ClientID != peer.ID {
		return Peer{}, e.fail(newError(KindProtocol, op, fmt.Errorf("%w: %s", ErrIdentityMismatch, pk.ClientID)))
	}

	peer.PublicKey, peer.PublicKeySet = pk.PublicKey, true
	if e.cache != nil {
		if err := e.cache.SetPeerPublicKey(ctx, peer.ID, pk.PublicKey[:]); err != nil {
			e.log.Warn("Failed to cache public key", "username", username, "error", err)
		}
	}
	return *peer, nil
}

// Usernames returns the names in the roster, sorted.
func (e *Engine) Usernames() []string {
	names := make([]string, 0, len(e.roster))
	for _, p := range e.roster {
		names = append(names, p.Username)
	}
	sort.Strings(names)
	return names
}

func (e *Engine) requireIdentity(op string) error {
	if e.self.ID.IsZero() {
		return newError(KindProtocol, op, fmt.Errorf("%w: not registered", ErrState))
	}
	if e.state.Terminal() {
		return newError(KindProtocol, op, fmt.Errorf("%w: %s", ErrTerminal, e.state))
	}
	return nil
}

func (e *Engine) lookup(username string) *Peer {
	for _, p := range e.roster {
		if p.Username == username {
			return p
		}
	}
	return nil
}

func (e *Engine) peers() []Peer {
	peers := make([]Peer, 0, len(e.roster))
	for _, p := range e.roster {
		peers = append(peers, *p)
	}
	sort.Slice(peers, func(i, j int) bool {
		return peers[i].Username < peers[j].Username
	})
	return peers
}
