package mq

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"device-management-service/internal/infrastructure/config"
)

const (
	exchangeName = "device_events"
	serviceName  = "device-management"

	// Publishing happens under p.mu, so a slow dial against a dead broker
	// would stall every mutating request behind it. Keep it short.
	dialTimeout = 2 * time.Second
)

// DeviceEvent is the JSON envelope published for every lifecycle event
type DeviceEvent struct {
	EventType string      `json:"event_type"`
	DeviceID  string      `json:"device_id"`
	Data      interface{} `json:"data"`
	Timestamp string      `json:"timestamp"`
	Service   string      `json:"service"`
}

// InterfaceEventPublisher defines the fire-and-forget event publisher.
// Publish failures are logged and dropped, never returned.
type InterfaceEventPublisher interface {
	PublishDeviceEvent(eventType, deviceID string, data interface{})
	IsConnected() bool
	Close() error
}

// EventPublisher publishes device lifecycle events to a durable topic
// exchange. Routing key is device.<event_type>. The connection is
// established lazily and re-established on the next publish after a drop.
type EventPublisher struct {
	url    string
	logger *zap.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewEventPublisher builds a publisher for the configured broker. No
// connection is attempted here; call Connect or let the first publish dial.
func NewEventPublisher(cfg *config.Config, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{
		url:    cfg.GetAMQPURL(),
		logger: logger,
	}
}

// Connect dials the broker and declares the exchange
func (p *EventPublisher) Connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ensureChannel()
}

// ensureChannel dials and declares the exchange when no usable channel
// exists. Caller must hold p.mu.
func (p *EventPublisher) ensureChannel() error {
	if p.ch != nil && p.conn != nil && !p.conn.IsClosed() {
		return nil
	}

	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Dial: amqp.DefaultDial(dialTimeout),
	})
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}

	if err := ch.ExchangeDeclare(exchangeName, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return err
	}

	p.conn = conn
	p.ch = ch
	p.logger.Info("connected to RabbitMQ", zap.String("exchange", exchangeName))
	return nil
}

// PublishDeviceEvent publishes a persistent device event. Failures are
// logged and the message is dropped; the request proceeds regardless.
func (p *EventPublisher) PublishDeviceEvent(eventType, deviceID string, data interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureChannel(); err != nil {
		p.logger.Error("rabbitmq unavailable, dropping event",
			zap.String("event_type", eventType), zap.String("device_id", deviceID), zap.Error(err))
		return
	}

	event := DeviceEvent{
		EventType: eventType,
		DeviceID:  deviceID,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Service:   serviceName,
	}

	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to encode device event", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	routingKey := "device." + eventType
	err = p.ch.PublishWithContext(ctx, exchangeName, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		p.logger.Error("failed to publish device event",
			zap.String("routing_key", routingKey), zap.Error(err))
		// Force a reconnect attempt on the next publish.
		p.ch = nil
		return
	}

	p.logger.Debug("device event published",
		zap.String("routing_key", routingKey), zap.String("device_id", deviceID))
}

// IsConnected reports whether a broker connection is currently open
func (p *EventPublisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn != nil && !p.conn.IsClosed()
}

// Close shuts the channel and connection down
func (p *EventPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil {
		p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil && !p.conn.IsClosed() {
		err := p.conn.Close()
		p.conn = nil
		return err
	}
	return nil
}
