package engine

import (
	"crypto/rand"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"

	"github.com/udisondev/courier/checksum"
	"github.com/udisondev/courier/handshake"
	"github.com/udisondev/courier/transport"
	"github.com/udisondev/courier/wire"
)

// fakeServer is a directory server speaking the wire protocol: one request
// per connection, responses zero-padded to whole chunks.
type fakeServer struct {
	t   *testing.T
	lis net.Listener
	sum checksum.Func

	mu       sync.Mutex
	clients  map[wire.ClientID]*fakeClient
	requests []wire.Code
	received [][]byte

	// badChecksums is the number of upcoming FileSent responses that carry
	// a wrong checksum.
	badChecksums    int
	rejectReconnect bool
	// override, when set and returning ok, replaces the response to code.
	override func(code wire.Code) (raw []byte, ok bool)
}

type fakeClient struct {
	name string
	pub  handshake.PublicKey
	key  handshake.SessionKey
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	s := &fakeServer{
		t:       t,
		lis:     lis,
		sum:     checksum.Cksum,
		clients: make(map[wire.ClientID]*fakeClient),
	}
	t.Cleanup(func() { lis.Close() })

	go func() {
		for {
			conn, err := lis.Accept()
			if err != nil {
				return
			}
			go s.handleConn(conn)
		}
	}()
	return s
}

func (s *fakeServer) addr() string {
	return s.lis.Addr().String()
}

func (s *fakeServer) handleConn(conn net.Conn) {
	defer conn.Close()

	buf := make([]byte, wire.RequestHeaderSize)
	if _, err := io.ReadFull(conn, buf); err != nil {
		slog.Debug("Fake server: read header", "error", err)
		return
	}
	h, err := wire.DecodeRequestHeader(buf)
	if err != nil {
		return
	}
	buf = append(buf, make([]byte, h.PayloadSize)...)
	if _, err := io.ReadFull(conn, buf[wire.RequestHeaderSize:]); err != nil {
		return
	}

	_, req, err := wire.DecodeRequest(buf)
	var raw []byte
	if err != nil {
		s.t.Errorf("fake server: malformed request: %v", err)
		raw = s.encode(wire.Failure{Status: wire.CodeGeneralError})
	} else {
		raw = s.handle(h, req)
	}

	if _, err := conn.Write(pad(raw)); err != nil {
		slog.Debug("Fake server: write response", "error", err)
	}
}

func (s *fakeServer) handle(h wire.RequestHeader, req wire.Request) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req.Code())
	if s.override != nil {
		if raw, ok := s.override(req.Code()); ok {
			return raw
		}
	}

	switch r := req.(type) {
	case wire.Register:
		if _, ok := s.byName(r.Name); ok {
			return s.encode(wire.Failure{Status: wire.CodeRegistrationFailed})
		}
		id := wire.NewClientID()
		s.clients[id] = &fakeClient{name: r.Name}
		return s.encode(wire.RegistrationOK{ClientID: id})

	case wire.RegisterPublicKey:
		id, ok := s.byName(r.Name)
		if !ok || id != h.ClientID {
			return s.encode(wire.Failure{Status: wire.CodeGeneralError})
		}
		s.clients[id].pub = r.PublicKey
		return s.keyExchange(id, func(wrapped [wire.WrappedKeySize]byte) wire.Response {
			return wire.PublicKeyRegOK{ClientID: id, WrappedKey: wrapped}
		})

	case wire.Reconnect:
		id, ok := s.byName(r.Name)
		if !ok || s.rejectReconnect || id != h.ClientID || s.clients[id].pub == (handshake.PublicKey{}) {
			return s.encode(wire.Failure{Status: wire.CodeReconnectRejected})
		}
		return s.keyExchange(id, func(wrapped [wire.WrappedKeySize]byte) wire.Response {
			return wire.ReconnectOK{ClientID: id, WrappedKey: wrapped}
		})

	case wire.ClientsList:
		var users wire.Users
		for id, c := range s.clients {
			if id != h.ClientID {
				users.Entries = append(users.Entries, wire.UserEntry{ClientID: id, Name: c.name})
			}
		}
		return s.encode(users)

	case wire.PublicKeyOf:
		c, ok := s.clients[r.ClientID]
		if !ok {
			return s.encode(wire.Failure{Status: wire.CodeGeneralError})
		}
		return s.encode(wire.PublicKey{ClientID: r.ClientID, PublicKey: c.pub})

	case wire.SendFile:
		c, ok := s.clients[h.ClientID]
		if !ok || r.ClientID != h.ClientID {
			return s.encode(wire.Failure{Status: wire.CodeGeneralError})
		}
		plain := handshake.DecryptSession(c.key, r.Content)
		s.received = append(s.received, plain)
		sum := s.sum(plain)
		if s.badChecksums > 0 {
			s.badChecksums--
			sum++
		}
		return s.encode(wire.FileSent{FileName: r.FileName, ContentSize: uint32(len(r.Content)), Checksum: sum})

	case wire.ValidCRC, wire.InvalidCRC, wire.AbortCRC:
		return s.encode(wire.Ack{ClientID: h.ClientID})
	}

	return s.encode(wire.Failure{Status: wire.CodeGeneralError})
}

func (s *fakeServer) keyExchange(id wire.ClientID, resp func([wire.WrappedKeySize]byte) wire.Response) []byte {
	key, err := handshake.NewSessionKey()
	if err != nil {
		s.t.Errorf("fake server: session key: %v", err)
		return s.encode(wire.Failure{Status: wire.CodeGeneralError})
	}
	wrapped, err := handshake.WrapSessionKey(rand.Reader, s.clients[id].pub, key)
	if err != nil {
		s.t.Errorf("fake server: wrap: %v", err)
		return s.encode(wire.Failure{Status: wire.CodeGeneralError})
	}
	s.clients[id].key = key
	return s.encode(resp(wrapped))
}

func (s *fakeServer) byName(name string) (wire.ClientID, bool) {
	for id, c := range s.clients {
		if c.name == name {
			return id, true
		}
	}
	return wire.ClientID{}, false
}

func (s *fakeServer) encode(resp wire.Response) []byte {
	b, err := wire.EncodeResponse(resp)
	if err != nil {
		s.t.Errorf("fake server: encode %s: %v", resp.Code(), err)
	}
	return b
}

// count returns how many requests with code the server received.
func (s *fakeServer) count(code wire.Code) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.requests {
		if c == code {
			n++
		}
	}
	return n
}

func (s *fakeServer) log() []wire.Code {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]wire.Code(nil), s.requests...)
}

// configure mutates the server's script under its lock.
func (s *fakeServer) configure(f func(s *fakeServer)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f(s)
}

func (s *fakeServer) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
	s.received = nil
}

func (s *fakeServer) lastReceived() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.received) == 0 {
		return nil
	}
	return s.received[len(s.received)-1]
}

func pad(b []byte) []byte {
	n := (len(b) + transport.ChunkSize - 1) / transport.ChunkSize * transport.ChunkSize
	out := make([]byte, n)
	copy(out, b)
	return out
}

// rawResponse builds a response with an arbitrary header.
func rawResponse(code wire.Code, payload []byte) []byte {
	b := []byte{wire.Version, byte(code), byte(code >> 8), 0, 0, 0, 0}
	n := len(payload)
	b[3], b[4], b[5], b[6] = byte(n), byte(n>>8), byte(n>>16), byte(n>>24)
	return append(b, payload...)
}
