package router

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ryandielhenn/r2rmesh/internal/telemetry"
	"github.com/ryandielhenn/r2rmesh/pkg/directory"
	"github.com/ryandielhenn/r2rmesh/pkg/frame"
)

// EnqueueSend queues msg for peer name. The identity frame is rewritten to
// name. Sends to self skip the transport and land in the inbound queue.
// requestAck is ignored for bootstrap messages and for sends to self.
func (r *Router) EnqueueSend(name string, msg frame.Message, requestAck bool) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	self, ok := r.peers.Self()
	if !ok {
		return ErrNoSelf
	}
	ep, _, ok := r.peers.Lookup(name)
	if !ok {
		r.logger.Debug("send to unknown peer", zap.String("peer", name))
		return fmt.Errorf("%w: %s", ErrUnknownPeer, name)
	}
	r.enqueue(self, ep, msg.WithPeer(ep.Name), requestAck, false)
	return nil
}

// Broadcast queues one copy of msg for every registered peer except self
// and returns the number of copies. Copies never request an ack.
func (r *Router) Broadcast(msg frame.Message) (int, error) {
	if err := msg.Validate(); err != nil {
		return 0, err
	}
	self, ok := r.peers.Self()
	if !ok {
		return 0, ErrNoSelf
	}
	n := 0
	for _, ep := range r.peers.Others() {
		if r.debug.Load() {
			r.logger.Debug("broadcast", zap.String("to", ep.Name))
		}
		r.enqueue(self, ep, msg.WithPeer(ep.Name), false, false)
		n++
	}
	return n, nil
}

func (r *Router) enqueueAck(self, to directory.Endpoint) {
	r.enqueue(self, to, frame.BuildAck(to.Name), false, true)
}

func (r *Router) enqueue(self, to directory.Endpoint, msg frame.Message, requestAck, ackResponse bool) {
	msgType := msg.Type()
	size := len(msg.Content())

	if to.Name == self.Name {
		r.in.push(Transmission{Peer: to, Msg: msg.WithoutAckRequest()})
		r.record(to.Name, msgType, DirectionIn, size)
		return
	}
	if requestAck {
		msg = msg.WithAckRequest()
	}
	r.out.push(Transmission{Peer: to, Msg: msg, ackResponse: ackResponse})
	r.record(to.Name, msgType, DirectionOut, size)
}

func (r *Router) record(peer, msgType string, dir Direction, size int) {
	r.stats.Record(MessageStat{PeerID: peer, MsgType: msgType, Direction: dir, ContentSize: size})
	telemetry.MessagesTotal.WithLabelValues(r.selfName(), peer, dir.String()).Inc()
}

// DrainOutbound runs one send window. Awaiting peers first advance their
// retry counters and resend their retained copy when due; then the outbound
// queue is walked from the head, skipping items for peers still awaiting an
// ack, until it is exhausted or budget has elapsed. At least one queued item
// is examined per call. It returns the number of messages handed to the
// transport.
//
// The event loop calls it every iteration; tests may call it directly on a
// router whose loop is not running.
func (r *Router) DrainOutbound(budget time.Duration) int {
	r.drainMu.Lock()
	defer r.drainMu.Unlock()

	start := time.Now()
	sent := 0
	self := r.selfName()

	for _, tx := range r.acks.due(r.cfg.RetryCycles, r.cfg.AckTimeout, start) {
		r.logger.Debug("ack overdue, resending",
			zap.String("peer", tx.Peer.Name), zap.String("type", tx.Msg.Type()))
		telemetry.RetransmitsTotal.WithLabelValues(self, tx.Peer.Name).Inc()
		r.transmit(tx)
		sent++
	}

	idx := 0
	for {
		tx, ok := r.out.at(idx)
		if !ok {
			break
		}
		if !tx.ackResponse && r.acks.awaiting(tx.Peer.Name) {
			idx++
		} else {
			r.out.removeAt(idx)
			r.transmit(tx)
			r.acks.sent(tx, time.Now())
			sent++
		}
		if time.Since(start) > budget {
			break
		}
	}

	r.updateQueueGauges()
	return sent
}

// transmit hands tx to the transport. Send errors are logged only; an
// ack-requesting send that failed is recovered by the retry path.
func (r *Router) transmit(tx Transmission) {
	if r.debug.Load() {
		r.logger.Debug("send", zap.Stringer("msg", tx.Msg))
	}
	if err := r.tr.SendMultipart(tx.Msg); err != nil {
		r.logger.Warn("send failed", zap.String("peer", tx.Peer.Name), zap.Error(err))
		telemetry.DroppedTotal.WithLabelValues(r.selfName(), telemetry.DropSendError).Inc()
	}
}

// GetNewTransmission pops the oldest inbound transmission. It returns
// ErrNoTransmission when the queue is empty.
func (r *Router) GetNewTransmission() (Transmission, error) {
	tx, ok := r.in.pop()
	if !ok {
		return Transmission{}, ErrNoTransmission
	}
	return tx, nil
}

// NextTransmission blocks until an inbound transmission is available or ctx is done.
func (r *Router) NextTransmission(ctx context.Context) (Transmission, error) {
	return r.in.wait(ctx)
}

func (r *Router) ThereArePendingTransmissions() bool {
	return r.in.len() > 0
}

func (r *Router) PendingInbound() int {
	return r.in.len()
}

// PendingOutbound returns the number of queued outbound messages.
func (r *Router) PendingOutbound() int {
	return r.out.len()
}
