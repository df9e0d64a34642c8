// Package router implements the reliable peer-to-peer routing layer of
// r2rmesh. A Router owns the peer directory, an outbound queue of pending
// sends, an inbound queue of delivered messages, per-peer acknowledgment
// state and the event loop that moves messages between the queues and the
// transport.
//
// Typical usage:
//
//	r := router.New(transport.NewZMQ(ctx), router.DefaultConfig())
//	r.AddPeer(directory.Endpoint{Name: "M", ServerAddr: "tcp://*:5000", ClientAddr: "tcp://m:5000"}, true)
//	r.AddPeer(directory.Endpoint{Name: "A", ServerAddr: "tcp://*:5001", ClientAddr: "tcp://a:5001"}, false)
//	if err := r.EstablishCommunications(); err != nil { ... }
//	defer r.Close()
//
//	r.EnqueueSend("A", frame.Build("A", []byte("go"), "CMD"), true)
//	tx, err := r.NextTransmission(ctx)
//
// # Acknowledgments
//
// A send that requests an ack puts its recipient in the awaiting state.
// While awaiting, later sends to that recipient stay in the outbound queue.
// Each drain of the outbound queue advances the recipient's retry counter;
// past the threshold the retained copy is resent verbatim and the counter
// starts over. Retries never give up.
//
// # Concurrency
//
// All transport I/O happens on the event loop goroutine. EnqueueSend,
// Broadcast and the inbound accessors may be called from any goroutine.
package router
