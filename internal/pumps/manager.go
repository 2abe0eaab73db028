// Package pumps keeps the websocket links to pump controllers that are
// connected to the backend, and relays watering commands to them.
package pumps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/SimonCaignart/plant-e/pkg/metrics"
	"github.com/SimonCaignart/plant-e/pkg/plantwire"
)

var (
	// ErrNotConnected is returned when no pump is linked for a plant.
	ErrNotConnected = errors.New("pump not connected")
	// ErrNotDelivered wraps failures that happened before the pump got the
	// command. Sending it another way cannot water twice.
	ErrNotDelivered = errors.New("command not delivered to pump")
	// ErrCommandFailed is returned when the pump reports it could not water.
	ErrCommandFailed = errors.New("pump reported failure")
	// ErrNoResponse is returned when the pump did not answer in time or
	// disconnected before answering.
	ErrNoResponse = errors.New("no response from pump")
)

const (
	writeTimeout = 5 * time.Second

	// DefaultResponseTimeout bounds how long SendCommand waits for the pump.
	DefaultResponseTimeout = 30 * time.Second
)

// Result is what a pump reported for a command.
type Result struct {
	Executed bool
	Detail   string

	lost bool
}

type waiter struct {
	plantID string
	ch      chan Result
}

// link is one pump connection. Gorilla connections allow a single
// concurrent writer, hence the write lock.
type link struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (l *link) write(payload []byte) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	if err := l.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return l.conn.WriteMessage(websocket.TextMessage, payload)
}

// Manager tracks active pump connections by plant id, and the commands
// still waiting for a pump's answer.
type Manager struct {
	mu      sync.RWMutex
	links   map[string]*link
	waiters map[string]*waiter // by command id
	metrics *metrics.OpsMetrics

	// ResponseTimeout overrides DefaultResponseTimeout. Set it before use.
	ResponseTimeout time.Duration
}

// NewManager creates an empty Manager. Metrics are optional.
func NewManager(m *metrics.OpsMetrics) *Manager {
	return &Manager{
		links:   make(map[string]*link),
		waiters: make(map[string]*waiter),
		metrics: m,
	}
}

// Register links conn to plantID, closing any previous connection for it.
func (m *Manager) Register(plantID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.links[plantID]; ok && old.conn != conn {
		_ = old.conn.Close()
	}
	m.links[plantID] = &link{conn: conn}
	m.setGauge()
}

// Unregister drops the link of plantID if it is still conn.
func (m *Manager) Unregister(plantID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if l, ok := m.links[plantID]; ok && l.conn == conn {
		_ = l.conn.Close()
		delete(m.links, plantID)

		for id, w := range m.waiters {
			if w.plantID == plantID {
				w.ch <- Result{Detail: "pump disconnected", lost: true}
				delete(m.waiters, id)
			}
		}
	}
	m.setGauge()
}

func (m *Manager) setGauge() {
	if m.metrics != nil {
		m.metrics.PumpConnections.Set(float64(len(m.links)))
	}
}

// IsConnected reports whether a pump is linked for plantID.
func (m *Manager) IsConnected(plantID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.links[plantID]
	return ok
}

// List returns the plant ids with a linked pump, sorted.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.links))
	for id := range m.links {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Send writes a raw text message to the pump of plantID.
func (m *Manager) Send(plantID string, payload []byte) error {
	m.mu.RLock()
	l, ok := m.links[plantID]
	m.mu.RUnlock()
	if !ok {
		return ErrNotConnected
	}
	return l.write(payload)
}

// CommandMessage is the JSON envelope of a watering command sent to a pump.
type CommandMessage struct {
	Type       string    `json:"type"`
	CommandID  string    `json:"command_id"`
	PlantID    string    `json:"plant_id"`
	QuantityML *int64    `json:"quantity_ml,omitempty"`
	Reason     string    `json:"reason"`
	IssuedAt   time.Time `json:"issued_at"`
}

// SendCommand relays cmd to the pump of its plant and waits for the pump to
// report it executed. Errors wrap ErrNotDelivered, ErrCommandFailed or
// ErrNoResponse, or are the context's error.
func (m *Manager) SendCommand(ctx context.Context, cmd *plantwire.WateringCommand) error {
	payload, err := json.Marshal(CommandMessage{
		Type:       "water",
		CommandID:  cmd.CommandID,
		PlantID:    cmd.PlantID,
		QuantityML: cmd.QuantityML,
		Reason:     cmd.Reason,
		IssuedAt:   cmd.IssuedAt,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotDelivered, err)
	}

	w := &waiter{plantID: cmd.PlantID, ch: make(chan Result, 1)}
	m.mu.Lock()
	m.waiters[cmd.CommandID] = w
	m.mu.Unlock()
	defer m.forget(cmd.CommandID, w)

	if err := m.Send(cmd.PlantID, payload); err != nil {
		return fmt.Errorf("%w: %w", ErrNotDelivered, err)
	}
	if m.metrics != nil {
		m.metrics.PumpMessagesTotal.WithLabelValues("out", "water").Inc()
	}

	timeout := m.ResponseTimeout
	if timeout <= 0 {
		timeout = DefaultResponseTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-w.ch:
		switch {
		case r.Executed:
			return nil
		case r.lost:
			return fmt.Errorf("%w: %s", ErrNoResponse, r.Detail)
		default:
			return fmt.Errorf("%w: %s", ErrCommandFailed, r.Detail)
		}
	case <-timer.C:
		return fmt.Errorf("%w after %s", ErrNoResponse, timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Resolve hands a pump's answer to the SendCommand waiting for commandID.
// It reports false when nobody waits for it from plantID.
func (m *Manager) Resolve(plantID, commandID string, r Result) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.waiters[commandID]
	if !ok || w.plantID != plantID {
		return false
	}
	w.ch <- r
	delete(m.waiters, commandID)
	return true
}

func (m *Manager) forget(commandID string, w *waiter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.waiters[commandID] == w {
		delete(m.waiters, commandID)
	}
}
