// Package mock provides mock implementations of the mq package interfaces for testing.
package mock

import (
	"context"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/SimonCaignart/plant-e/pkg/mq"
)

// MockClient is a mock implementation of mq.ClientInterface.
// It records calls and returns configurable results.
type MockClient struct {
	mu sync.Mutex

	// PushFunc overrides Push. When nil, Push returns PushError.
	PushFunc  func(ctx context.Context, data []byte) error
	PushError error
	// Pushed holds the payload of every Push and UnsafePush call, in order.
	Pushed [][]byte

	UnsafePushFunc  func(ctx context.Context, data []byte) error
	UnsafePushError error
	UnsafePushCalls int

	// Deliveries is returned by Consume. Tests feed it with Deliver.
	Deliveries   chan amqp.Delivery
	ConsumeError error
	ConsumeCalls int

	CloseError error
	CloseCalls int
	closed     bool
}

// NewMockClient creates a MockClient that succeeds on every call.
func NewMockClient() *MockClient {
	return &MockClient{
		Deliveries: make(chan amqp.Delivery, 16),
	}
}

// Push implements mq.Publisher.
func (m *MockClient) Push(ctx context.Context, data []byte) error {
	m.mu.Lock()
	m.Pushed = append(m.Pushed, append([]byte(nil), data...))
	fn, err := m.PushFunc, m.PushError
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, data)
	}
	return err
}

// UnsafePush implements mq.Publisher.
func (m *MockClient) UnsafePush(ctx context.Context, data []byte) error {
	m.mu.Lock()
	m.UnsafePushCalls++
	m.Pushed = append(m.Pushed, append([]byte(nil), data...))
	fn, err := m.UnsafePushFunc, m.UnsafePushError
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, data)
	}
	return err
}

// Consume implements mq.ClientInterface.
func (m *MockClient) Consume() (<-chan amqp.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ConsumeCalls++
	if m.ConsumeError != nil {
		return nil, m.ConsumeError
	}
	return m.Deliveries, nil
}

// Close implements mq.ClientInterface. It closes the delivery channel once,
// which ends any consumer loop reading from it.
func (m *MockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CloseCalls++
	if !m.closed {
		m.closed = true
		close(m.Deliveries)
	}
	return m.CloseError
}

// PushedMessages returns a copy of every payload published so far.
func (m *MockClient) PushedMessages() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([][]byte, len(m.Pushed))
	copy(out, m.Pushed)
	return out
}

// Deliver queues body as a delivery acknowledged through ack.
func (m *MockClient) Deliver(body []byte, ack *Acknowledger) {
	tag := ack.nextTag()
	m.Deliveries <- amqp.Delivery{
		Acknowledger: ack,
		DeliveryTag:  tag,
		Body:         body,
	}
}

// Reset clears all recorded calls.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Pushed = nil
	m.UnsafePushCalls = 0
	m.ConsumeCalls = 0
	m.CloseCalls = 0
}

var _ mq.ClientInterface = (*MockClient)(nil)

// ConsumeCallCount returns how many times Consume was called.
func (m *MockClient) ConsumeCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ConsumeCalls
}
