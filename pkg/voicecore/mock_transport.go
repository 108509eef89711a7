package voicecore

import (
	"context"
	"sync"
)

// MockTransport is an in-process Transport backed by channels, with no
// network involved — grounded on the teacher's preference for an
// interface-first provider boundary (StreamingSTTProvider) that a test or
// CLI harness can satisfy without a live service. It is the transport used
// by the package's scenario tests and by the illustrative command.
type MockTransport struct {
	mu       sync.Mutex
	inbound  chan Message
	closed   bool
	sentAudio [][]byte
	sentSeqs  []uint64
	sentControls []MessageKind
	connected bool
}

// NewMockTransport constructs an unconnected mock transport.
func NewMockTransport() *MockTransport {
	return &MockTransport{inbound: make(chan Message, 256)}
}

func (m *MockTransport) Connect(ctx context.Context, headers HeaderProducer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	return nil
}

func (m *MockTransport) SendControl(ctx context.Context, kind MessageKind, payload interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrTransportClosed
	}
	m.sentControls = append(m.sentControls, kind)
	return nil
}

func (m *MockTransport) SendAudio(ctx context.Context, seq uint64, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrTransportClosed
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	m.sentAudio = append(m.sentAudio, cp)
	m.sentSeqs = append(m.sentSeqs, seq)
	return nil
}

func (m *MockTransport) Receive(ctx context.Context) (Message, error) {
	select {
	case msg, ok := <-m.inbound:
		if !ok {
			return Message{}, ErrTransportClosed
		}
		return msg, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.inbound)
	return nil
}

// Push enqueues a server-originated message for the next Receive call,
// standing in for the STT service in tests.
func (m *MockTransport) Push(msg Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.inbound <- msg
}

// SentAudio returns every audio payload sent so far, in order, for
// assertions in tests.
func (m *MockTransport) SentAudio() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.sentAudio))
	copy(out, m.sentAudio)
	return out
}

// SentControls returns every control-message kind sent so far, in order,
// for assertions in tests.
func (m *MockTransport) SentControls() []MessageKind {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MessageKind, len(m.sentControls))
	copy(out, m.sentControls)
	return out
}
