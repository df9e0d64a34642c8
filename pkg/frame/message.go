package frame

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// Frame indexes inside a Message.
const (
	FramePeerID = iota
	FrameMsgType
	FrameMsgContent
)

const (
	// TypeStart is the bootstrap message type. It is exempt from ack-wrapping.
	TypeStart = "START"
	// TypeMessage is the default type used by Build and by ack responses.
	TypeMessage = "MESSAGE"
	// AckTag is appended to the message type when the sender wants an ack.
	AckTag = ":ack"
	// AckContent is the content frame of an ack response.
	AckContent = "ACK"
)

// ErrMalformed is returned for messages that lack the identity, type and content frames.
var ErrMalformed = errors.New("malformed message")

type Frame = []byte

// Message is a multi-part message. It is not safe for concurrent mutation;
// Clone before handing a copy to someone else.
type Message []Frame

// Build assembles [to, type, content]. An empty type means TypeMessage.
func Build(to string, content []byte, msgType string) Message {
	if msgType == "" {
		msgType = TypeMessage
	}
	return Message{
		[]byte(to),
		[]byte(msgType),
		append([]byte(nil), content...),
	}
}

// BuildAck returns the ack response addressed to peer.
func BuildAck(peer string) Message {
	return Build(peer, []byte(AckContent), TypeMessage)
}

// Validate checks that the identity, type and content frames are present.
func (m Message) Validate() error {
	if len(m) <= FrameMsgContent {
		return fmt.Errorf("%w: %d frames", ErrMalformed, len(m))
	}
	return nil
}

// Peer returns the identity frame.
func (m Message) Peer() string {
	if len(m) <= FramePeerID {
		return ""
	}
	return string(m[FramePeerID])
}

// RawType returns the type frame including any ack tag.
func (m Message) RawType() string {
	if len(m) <= FrameMsgType {
		return ""
	}
	return string(m[FrameMsgType])
}

// Type returns the message type without the ack tag.
func (m Message) Type() string {
	t := m.RawType()
	if i := strings.Index(t, AckTag); i >= 0 {
		return t[:i]
	}
	return t
}

// Content returns the content frame, or nil when absent.
func (m Message) Content() []byte {
	if len(m) <= FrameMsgContent {
		return nil
	}
	return m[FrameMsgContent]
}

// AckRequested reports whether the type frame carries the ack tag.
func (m Message) AckRequested() bool {
	return strings.Contains(m.RawType(), AckTag)
}

// IsAck reports whether m is an ack response.
func (m Message) IsAck() bool {
	return bytes.Equal(m.Content(), []byte(AckContent))
}

// IsStart reports whether m is the bootstrap message.
func (m Message) IsStart() bool {
	return m.RawType() == TypeStart
}

// Clone deep-copies every frame.
func (m Message) Clone() Message {
	if m == nil {
		return nil
	}
	out := make(Message, len(m))
	for i, f := range m {
		out[i] = append([]byte(nil), f...)
	}
	return out
}

// WithPeer returns a copy of m whose identity frame is name.
func (m Message) WithPeer(name string) Message {
	out := m.Clone()
	if len(out) == 0 {
		return Message{[]byte(name)}
	}
	out[FramePeerID] = []byte(name)
	return out
}

// WithAckRequest returns a copy of m with the ack tag appended to its type.
// Bootstrap messages and messages already tagged are returned as plain copies.
func (m Message) WithAckRequest() Message {
	out := m.Clone()
	if len(out) <= FrameMsgType || m.IsStart() || m.AckRequested() {
		return out
	}
	out[FrameMsgType] = append(out[FrameMsgType], AckTag...)
	return out
}

// WithoutAckRequest returns a copy of m with the ack tag stripped from its type.
func (m Message) WithoutAckRequest() Message {
	out := m.Clone()
	if len(out) <= FrameMsgType {
		return out
	}
	out[FrameMsgType] = []byte(m.Type())
	return out
}

// String renders the message for logs.
func (m Message) String() string {
	return fmt.Sprintf("{peer: %s, type: %s, content: %q}", m.Peer(), m.RawType(), m.Content())
}
