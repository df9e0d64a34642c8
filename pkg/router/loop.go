package router

import (
	"errors"

	"go.uber.org/zap"

	"github.com/ryandielhenn/r2rmesh/internal/telemetry"
	"github.com/ryandielhenn/r2rmesh/pkg/directory"
	"github.com/ryandielhenn/r2rmesh/pkg/frame"
	"github.com/ryandielhenn/r2rmesh/pkg/transport"
)

// transmissionsHandler is the event loop. It alternates a bounded send
// window with a bounded poll of the inbound endpoint until the running flag
// is cleared.
func (r *Router) transmissionsHandler() {
	defer r.wg.Done()
	r.logger.Info("transmissions handler running")

	for r.running.Load() {
		r.DrainOutbound(r.cfg.DrainWindow)

		msg, err := r.tr.Poll(r.cfg.PollTimeout)
		switch {
		case err == nil:
			r.processIncoming(msg)
		case errors.Is(err, transport.ErrNothingReady):
		case errors.Is(err, transport.ErrClosed):
			r.logger.Warn("transport closed under the event loop")
			r.running.Store(false)
		default:
			r.logger.Warn("poll", zap.Error(err))
		}
	}

	if err := r.tr.Close(); err != nil {
		r.logger.Warn("close transport", zap.Error(err))
	}
	if err := r.stats.Flush(); err != nil {
		r.logger.Warn("flush stats", zap.Error(err))
	}
	r.logger.Info("transmissions handler stopped")
}

// processIncoming dispatches one complete inbound message whose first frame
// is the sender identity.
func (r *Router) processIncoming(msg frame.Message) {
	self := r.selfName()
	if r.debug.Load() {
		r.logger.Debug("recv", zap.Stringer("msg", msg))
	}

	if msg.IsStart() {
		if r.gate.armed() {
			r.EmitStartSignal()
			r.logger.Info("start signal received", zap.String("from", msg.Peer()))
			return
		}
		r.gate.signal()
	} else if r.gate.armed() {
		telemetry.DroppedTotal.WithLabelValues(self, telemetry.DropPreStart).Inc()
		return
	}

	if msg.Validate() != nil {
		r.logger.Debug("malformed message", zap.Int("frames", len(msg)))
		telemetry.DroppedTotal.WithLabelValues(self, telemetry.DropMalformed).Inc()
		return
	}

	sender := msg.Peer()
	ep, _, ok := r.peers.Lookup(sender)
	if !ok {
		r.logger.Debug("message from unknown peer dropped", zap.String("peer", sender))
		telemetry.DroppedTotal.WithLabelValues(self, telemetry.DropUnknownPeer).Inc()
		return
	}

	switch {
	case msg.IsAck():
		if r.acks.resolve(sender) {
			r.logger.Debug("ack received", zap.String("from", sender))
			telemetry.AcksTotal.WithLabelValues(self, sender).Inc()
			return
		}
		// duplicate ack for a retransmitted copy
		r.logger.Debug("stray ack dropped", zap.String("from", sender))
		telemetry.DroppedTotal.WithLabelValues(self, telemetry.DropStrayAck).Inc()
	case msg.AckRequested():
		r.deliver(ep, msg.WithoutAckRequest())
		me, _ := r.peers.Self()
		r.enqueueAck(me, ep)
	default:
		r.deliver(ep, msg)
	}
}

func (r *Router) deliver(from directory.Endpoint, msg frame.Message) {
	r.in.push(Transmission{Peer: from, Msg: msg})
	r.record(from.Name, msg.Type(), DirectionIn, len(msg.Content()))
}
