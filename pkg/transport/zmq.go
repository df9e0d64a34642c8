package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-zeromq/zmq4"
	"go.uber.org/zap"

	"github.com/ryandielhenn/r2rmesh/pkg/frame"
)

// ZMQ pairs two ROUTER sockets sharing the peer identity: a server socket
// bound for inbound traffic and a client socket dialing every other peer.
// Received messages are queued by a reader goroutine until Poll picks them up.
type ZMQ struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger

	dialRetry      time.Duration
	dialMaxRetries int

	server zmq4.Socket
	client zmq4.Socket
	inbox  chan frame.Message
	wg     sync.WaitGroup

	closeOnce sync.Once
}

type ZMQOption func(*ZMQ)

func WithZMQLogger(l *zap.Logger) ZMQOption {
	return func(z *ZMQ) { z.logger = l }
}

// WithDialRetry sets how often and how many times Connect retries a peer
// that is not listening yet. maxRetries of -1 retries forever.
func WithDialRetry(every time.Duration, maxRetries int) ZMQOption {
	return func(z *ZMQ) {
		z.dialRetry = every
		z.dialMaxRetries = maxRetries
	}
}

func NewZMQ(ctx context.Context, opts ...ZMQOption) *ZMQ {
	ctx, cancel := context.WithCancel(ctx)
	z := &ZMQ{
		ctx:            ctx,
		cancel:         cancel,
		logger:         zap.NewNop(),
		dialRetry:      250 * time.Millisecond,
		dialMaxRetries: 40,
		inbox:          make(chan frame.Message, defaultInboxSize),
	}
	for _, opt := range opts {
		opt(z)
	}
	return z
}

func (z *ZMQ) Bind(identity, addr string) error {
	id := zmq4.WithID(zmq4.SocketIdentity(identity))
	z.server = zmq4.NewRouter(z.ctx, id)
	if err := z.server.Listen(addr); err != nil {
		return fmt.Errorf("zmq bind %s: %w", addr, err)
	}
	z.client = zmq4.NewRouter(z.ctx, id,
		zmq4.WithDialerRetry(z.dialRetry),
		zmq4.WithDialerMaxRetries(z.dialMaxRetries),
	)
	z.logger.Debug("zmq bound", zap.String("identity", identity), zap.String("addr", addr))

	z.wg.Add(1)
	go z.readLoop()
	return nil
}

func (z *ZMQ) Connect(addr string) error {
	if z.client == nil {
		return ErrNotBound
	}
	if err := z.client.Dial(addr); err != nil {
		return fmt.Errorf("zmq connect %s: %w", addr, err)
	}
	return nil
}

func (z *ZMQ) SendMultipart(msg frame.Message) error {
	if z.client == nil {
		return ErrNotBound
	}
	if z.ctx.Err() != nil {
		return ErrClosed
	}
	if err := z.client.Send(zmq4.NewMsgFrom(msg...)); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnroutable, msg.Peer(), err)
	}
	return nil
}

func (z *ZMQ) Poll(timeout time.Duration) (frame.Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case msg := <-z.inbox:
		return msg, nil
	case <-z.ctx.Done():
		return nil, ErrClosed
	case <-timer.C:
		return nil, ErrNothingReady
	}
}

// readLoop receives whole multipart messages; the ROUTER socket prepends
// the sender identity as frame 0.
func (z *ZMQ) readLoop() {
	defer z.wg.Done()
	for {
		msg, err := z.server.Recv()
		if err != nil {
			if z.ctx.Err() != nil {
				return
			}
			z.logger.Warn("zmq recv", zap.Error(err))
			continue
		}
		select {
		case z.inbox <- frame.Message(msg.Frames):
		case <-z.ctx.Done():
			return
		}
	}
}

func (z *ZMQ) Close() error {
	var err error
	z.closeOnce.Do(func() {
		z.cancel()
		if z.client != nil {
			if cerr := z.client.Close(); cerr != nil {
				err = cerr
			}
		}
		if z.server != nil {
			if cerr := z.server.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
		z.wg.Wait()
	})
	return err
}
