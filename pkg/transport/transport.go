// Package transport holds the identity-routed, multi-frame transports the
// router sits on. A transport binds one inbound endpoint under a stable
// identity and connects to every other peer for outbound sends. The first
// frame of an outbound message names the recipient; the first frame of an
// inbound message names the sender.
//
// Two implementations ship with the package: Memory, an in-process hub for
// tests and single-binary demos, and ZMQ, a ZeroMQ ROUTER<->ROUTER adapter.
package transport

import (
	"errors"
	"time"

	"github.com/ryandielhenn/r2rmesh/pkg/frame"
)

var (
	// ErrNothingReady is returned by Poll when no message arrived before the timeout.
	ErrNothingReady = errors.New("transport: nothing ready")
	// ErrUnroutable is returned when no connected peer carries the recipient identity.
	ErrUnroutable = errors.New("transport: recipient not reachable")
	ErrClosed     = errors.New("transport: closed")
	ErrNotBound   = errors.New("transport: not bound")
	ErrAddrInUse  = errors.New("transport: address already bound")
)

type Transport interface {
	// Bind opens the inbound endpoint at addr under identity.
	Bind(identity, addr string) error
	// Connect opens an outbound route to the peer listening at addr.
	Connect(addr string) error
	// SendMultipart sends msg to the peer named by msg[0].
	SendMultipart(msg frame.Message) error
	// Poll waits at most timeout for one complete inbound message.
	Poll(timeout time.Duration) (frame.Message, error)
	Close() error
}
