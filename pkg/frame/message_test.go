package frame

import (
	"errors"
	"testing"
)

func TestBuildDefaults(t *testing.T) {
	m := Build("B", []byte("payload"), "")
	if got := m.Peer(); got != "B" {
		t.Fatalf("Peer = %q, want B", got)
	}
	if got := m.Type(); got != TypeMessage {
		t.Fatalf("Type = %q, want %q", got, TypeMessage)
	}
	if string(m.Content()) != "payload" {
		t.Fatalf("Content = %q", m.Content())
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestAckTagRoundTrip(t *testing.T) {
	m := Build("B", []byte("x"), "CMD")
	tagged := m.WithAckRequest()

	if m.AckRequested() {
		t.Fatalf("original message must not be modified")
	}
	if !tagged.AckRequested() {
		t.Fatalf("tagged message should request ack")
	}
	if got := tagged.RawType(); got != "CMD:ack" {
		t.Fatalf("RawType = %q, want CMD:ack", got)
	}
	if got := tagged.Type(); got != "CMD" {
		t.Fatalf("Type = %q, want CMD", got)
	}
	// tagging twice is a no-op
	if got := tagged.WithAckRequest().RawType(); got != "CMD:ack" {
		t.Fatalf("double tag = %q", got)
	}
	if got := tagged.WithoutAckRequest().RawType(); got != "CMD" {
		t.Fatalf("stripped = %q", got)
	}
}

func TestStartIsNeverAckWrapped(t *testing.T) {
	m := Build("B", nil, TypeStart).WithAckRequest()
	if m.AckRequested() {
		t.Fatalf("START must not carry the ack tag, got %q", m.RawType())
	}
	if !m.IsStart() {
		t.Fatalf("IsStart = false")
	}
}

func TestBuildAck(t *testing.T) {
	a := BuildAck("A")
	if !a.IsAck() || a.Peer() != "A" || a.Type() != TypeMessage {
		t.Fatalf("unexpected ack %s", a)
	}
	if Build("A", []byte("ACKNOWLEDGED"), "").IsAck() {
		t.Fatalf("content prefix must not count as ack")
	}
}

func TestWithPeerCopies(t *testing.T) {
	m := Build("self", []byte("go"), "CMD")
	c := m.WithPeer("A")
	c[FrameMsgContent][0] = 'X'

	if m.Peer() != "self" || string(m.Content()) != "go" {
		t.Fatalf("WithPeer mutated the original: %s", m)
	}
	if c.Peer() != "A" {
		t.Fatalf("Peer = %q", c.Peer())
	}
}

func TestValidateShortMessage(t *testing.T) {
	err := Message{[]byte("A"), []byte("T")}.Validate()
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
	var empty Message
	if empty.Peer() != "" || empty.Type() != "" || empty.Content() != nil {
		t.Fatalf("accessors on empty message should be zero values")
	}
}
