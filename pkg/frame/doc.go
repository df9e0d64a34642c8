// Package frame defines the wire shape exchanged between r2rmesh peers.
// A Message is an ordered list of frames:
//
//	[identity, messageType, content, ...]
//
// On the way out, the identity frame names the recipient. On the way in,
// the transport replaces it with the sender's identity. The message type
// may carry the ":ack" suffix, which asks the recipient to answer with an
// ack response. The bootstrap type "START" is never ack-wrapped.
//
// Typical usage:
//
//	msg := frame.Build("worker-1", []byte("go"), "CMD")
//	msg = msg.WithAckRequest()
package frame
