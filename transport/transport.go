package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// ChunkSize is the unit in which the directory server writes responses.
// Every response is zero-padded to a multiple of it.
const ChunkSize = 1024

var ErrNotConnected = errors.New("transport: not connected")

// Transport is a byte pipe to the directory server. RecvExact blocks until
// exactly n bytes arrived or fails; short reads never reach the caller.
type Transport interface {
	Connect(ctx context.Context) error
	SendAll(b []byte) error
	RecvExact(n int) ([]byte, error)
	Close() error
}

// TCP connects to the directory server over TCP. A new connection is opened
// for every exchange, as the server serves one request per connection.
type TCP struct {
	addr    string
	dialer  net.Dialer
	timeout time.Duration
	conn    net.Conn
	stop    func() bool
}

func NewTCP(addr string) *TCP {
	return &TCP{addr: addr}
}

func (t *TCP) Addr() string {
	return t.addr
}

// SetTimeout bounds each exchange, from dial to the last byte received.
// Zero, the default, means no bound besides the context.
func (t *TCP) SetTimeout(d time.Duration) {
	t.timeout = d
	t.dialer.Timeout = d
}

// Connect dials the server. A deadline on ctx or a timeout set with
// SetTimeout bounds the dial and every following send and receive; without
// either, I/O may block indefinitely.
func (t *TCP) Connect(ctx context.Context) error {
	t.Close()

	conn, err := t.dialer.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", t.addr, err)
	}
	deadline, ok := ctx.Deadline()
	if t.timeout > 0 {
		if d := time.Now().Add(t.timeout); !ok || d.Before(deadline) {
			deadline, ok = d, true
		}
	}
	if ok {
		if err := conn.SetDeadline(deadline); err != nil {
			conn.Close()
			return fmt.Errorf("set deadline: %w", err)
		}
	}

	// Cancelling ctx unblocks pending I/O by closing the connection.
	t.stop = context.AfterFunc(ctx, func() { conn.Close() })
	t.conn = conn
	return nil
}

func (t *TCP) SendAll(b []byte) error {
	if t.conn == nil {
		return ErrNotConnected
	}
	// net.Conn.Write returns an error whenever it writes less than len(b).
	if _, err := t.conn.Write(b); err != nil {
		return fmt.Errorf("send %d bytes: %w", len(b), err)
	}
	return nil
}

func (t *TCP) RecvExact(n int) ([]byte, error) {
	if t.conn == nil {
		return nil, ErrNotConnected
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(t.conn, buf); err != nil {
		return nil, fmt.Errorf("receive %d bytes: %w", n, err)
	}
	return buf, nil
}

func (t *TCP) Close() error {
	if t.conn == nil {
		return nil
	}
	if t.stop != nil {
		t.stop()
		t.stop = nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}
