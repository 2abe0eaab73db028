// Package ingest subscribes to sensor readings published over MQTT and
// appends them to plant logs.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/SimonCaignart/plant-e/internal/store"
	"github.com/SimonCaignart/plant-e/internal/watering"
	"github.com/SimonCaignart/plant-e/pkg/metrics"
)

// DefaultTopic matches readings published as plants/<plant id>/readings.
const DefaultTopic = "plants/+/readings"

var (
	ErrInvalidTopic   = errors.New("invalid reading topic")
	ErrInvalidPayload = errors.New("invalid reading payload")
)

// Config holds the configuration for the MQTT Subscriber.
type Config struct {
	Logger   *slog.Logger
	Logs     store.SensorLogStore
	Metrics  *metrics.BackendMetrics
	Broker   string
	ClientID string
	Username string
	Password string
	// Topic defaults to DefaultTopic.
	Topic string
	QoS   byte
	// Buffer is how many messages may wait to be stored. Defaults to 1024.
	Buffer int
}

// Payload is the JSON body of a reading message. Missing fields were not measured.
type Payload struct {
	SoilMoisture *float64  `json:"soil_moisture"`
	Luminosity   *float64  `json:"luminosity"`
	Humidity     *float64  `json:"humidity"`
	Temperature  *float64  `json:"temperature"`
	ObservedAt   time.Time `json:"observed_at"`
}

type message struct {
	topic      string
	payload    []byte
	receivedAt time.Time
}

// Subscriber consumes reading messages from an MQTT broker.
type Subscriber struct {
	cfg    Config
	logger *slog.Logger
	client mqtt.Client
	msgCh  chan message
	done   chan struct{}
	stop   sync.Once
	wg     sync.WaitGroup
}

// New creates a new Subscriber instance.
func New(cfg *Config) (*Subscriber, error) {
	if cfg == nil {
		return nil, errors.New("ingest config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Logs == nil {
		return nil, errors.New("log store cannot be nil")
	}

	if cfg.Broker == "" {
		return nil, errors.New("mqtt broker cannot be empty")
	}

	c := *cfg
	if c.Topic == "" {
		c.Topic = DefaultTopic
	}
	if c.ClientID == "" {
		c.ClientID = "plant-e-ingest"
	}
	if c.Buffer <= 0 {
		c.Buffer = 1024
	}

	return &Subscriber{
		cfg:    c,
		logger: c.Logger.With("component", "mqtt-ingest"),
		msgCh:  make(chan message, c.Buffer),
		done:   make(chan struct{}),
	}, nil
}

// Start connects to the broker and starts storing readings in the background.
func (s *Subscriber) Start(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(s.cfg.Broker).
		SetClientID(s.cfg.ClientID).
		// onMessage only enqueues, so in-order delivery costs nothing.
		SetOrderMatters(true).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetCleanSession(false)

	if s.cfg.Username != "" {
		opts.SetUsername(s.cfg.Username)
		opts.SetPassword(s.cfg.Password)
	}

	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		s.logger.Error("mqtt connection lost", "error", err)
	}
	opts.OnConnect = func(c mqtt.Client) {
		s.logger.Info("mqtt connected, subscribing", "topic", s.cfg.Topic)
		if token := c.Subscribe(s.cfg.Topic, s.cfg.QoS, s.onMessage); token.Wait() && token.Error() != nil {
			s.logger.Error("failed to subscribe", "topic", s.cfg.Topic, "error", token.Error())
		}
	}

	s.client = mqtt.NewClient(opts)
	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to mqtt broker: %w", token.Error())
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
	return nil
}

// Stop disconnects from the broker and waits for queued readings to be stored.
func (s *Subscriber) Stop() {
	s.stop.Do(func() {
		if s.client != nil && s.client.IsConnected() {
			s.client.Disconnect(500)
		}
		close(s.done)
	})
	s.wg.Wait()
}

// IsConnected reports whether the broker connection is up.
func (s *Subscriber) IsConnected() bool {
	return s.client != nil && s.client.IsConnected()
}

func (s *Subscriber) onMessage(_ mqtt.Client, m mqtt.Message) {
	s.Enqueue(m.Topic(), m.Payload())
}

// Enqueue queues a raw message for storage. It drops the message when the
// buffer is full or the subscriber is stopped.
func (s *Subscriber) Enqueue(topic string, payload []byte) bool {
	msg := message{topic: topic, payload: payload, receivedAt: time.Now().UTC()}
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.msgCh <- msg:
		return true
	default:
		s.logger.Warn("ingest buffer full, dropping reading", "topic", topic)
		s.cfg.Metrics.ConsumerError("mqtt", "buffer_full")
		return false
	}
}

// Run stores queued messages until ctx is canceled or Stop is called. Start
// calls it; it is exported for running without a broker.
func (s *Subscriber) Run(ctx context.Context) {
	s.run(ctx)
}

func (s *Subscriber) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.drain(context.WithoutCancel(ctx))
			return
		case <-s.done:
			s.drain(ctx)
			return
		case m := <-s.msgCh:
			s.handle(ctx, m)
		}
	}
}

func (s *Subscriber) drain(ctx context.Context) {
	for {
		select {
		case m := <-s.msgCh:
			s.handle(ctx, m)
		default:
			return
		}
	}
}

func (s *Subscriber) handle(ctx context.Context, m message) {
	start := time.Now()
	_, err := s.Handle(ctx, m.topic, m.payload, m.receivedAt)
	s.cfg.Metrics.ObserveMessage("mqtt", start, err)
	if err != nil {
		s.logger.Warn("failed to ingest reading", "topic", m.topic, "error", err)
	}
}

// Handle parses one message and appends it to the plant's log. A payload
// without observed_at is stamped with receivedAt.
func (s *Subscriber) Handle(ctx context.Context, topic string, payload []byte, receivedAt time.Time) (string, error) {
	plantID, err := ParseTopic(topic)
	if err != nil {
		s.cfg.Metrics.ConsumerError("mqtt", "invalid_topic")
		return "", err
	}

	entry, err := DecodePayload(payload)
	if err != nil {
		s.cfg.Metrics.ConsumerError("mqtt", "invalid_payload")
		return "", err
	}
	if entry.ObservedAt.IsZero() {
		entry.ObservedAt = receivedAt
	}

	id, err := s.cfg.Logs.Append(ctx, plantID, entry)
	if errors.Is(err, store.ErrStaleEntry) {
		s.cfg.Metrics.ConsumerError("mqtt", "stale_reading")
		return "", fmt.Errorf("reading for plant %s: %w", plantID, err)
	}
	if err != nil {
		s.cfg.Metrics.ConsumerError("mqtt", "store_error")
		return "", fmt.Errorf("append reading for plant %s: %w", plantID, err)
	}

	s.cfg.Metrics.ReadingIngested("mqtt")
	s.logger.Debug("reading stored", "plant_id", plantID, "log_id", id)
	return id, nil
}

// ParseTopic extracts the plant id from a plants/<plant id>/readings topic.
func ParseTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "plants" || parts[2] != "readings" || parts[1] == "" {
		return "", fmt.Errorf("%w: %q, expected plants/<plant_id>/readings", ErrInvalidTopic, topic)
	}
	return parts[1], nil
}

// DecodePayload parses a JSON reading into a log entry.
func DecodePayload(payload []byte) (store.Entry, error) {
	var p Payload
	if err := json.Unmarshal(payload, &p); err != nil {
		return store.Entry{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	entry := store.Entry{
		Reading: watering.Reading{
			SoilMoisture: p.SoilMoisture,
			Luminosity:   p.Luminosity,
			Humidity:     p.Humidity,
			Temperature:  p.Temperature,
		},
		ObservedAt: p.ObservedAt,
	}
	if entry.Reading.IsEmpty() {
		return store.Entry{}, fmt.Errorf("%w: no sensor value", ErrInvalidPayload)
	}
	return entry, nil
}
