package events

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// TenantEvent is the payload published on tenant lifecycle changes.
type TenantEvent struct {
	Type      string    `json:"type"`
	TenantID  string    `json:"tenantId"`
	ClientID  string    `json:"clientId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher emits tenant lifecycle events over NATS JetStream. A nil
// Publisher is valid and drops everything, so callers never guard.
type Publisher struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	logger *logrus.Logger
}

// NewPublisher connects to NATS and ensures the TENANT_EVENTS stream exists
func NewPublisher(url string, logger *logrus.Logger) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, err
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:     "TENANT_EVENTS",
		Subjects: []string{"tenant.>"},
		MaxAge:   24 * time.Hour,
	})
	if err != nil && err != nats.ErrStreamNameAlreadyInUse {
		conn.Close()
		return nil, err
	}

	return &Publisher{
		conn:   conn,
		js:     js,
		logger: logger,
	}, nil
}

// Close drains the NATS connection
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	p.conn.Close()
}

// PublishTenantCreated emits tenant.created
func (p *Publisher) PublishTenantCreated(tenantID, clientID string) {
	p.publish("tenant.created", TenantEvent{
		Type:     "tenant.created",
		TenantID: tenantID,
		ClientID: clientID,
	})
}

// PublishTenantDeleted emits tenant.deleted
func (p *Publisher) PublishTenantDeleted(tenantID string) {
	p.publish("tenant.deleted", TenantEvent{
		Type:     "tenant.deleted",
		TenantID: tenantID,
	})
}

// PublishTenantReset emits tenant.reset
func (p *Publisher) PublishTenantReset(tenantID string) {
	p.publish("tenant.reset", TenantEvent{
		Type:     "tenant.reset",
		TenantID: tenantID,
	})
}

// PublishTenantExpired emits tenant.expired
func (p *Publisher) PublishTenantExpired(tenantID string) {
	p.publish("tenant.expired", TenantEvent{
		Type:     "tenant.expired",
		TenantID: tenantID,
	})
}

// publish is best effort: a failure is logged and never propagated, the
// HTTP response must not depend on the event bus.
func (p *Publisher) publish(subject string, event TenantEvent) {
	if p == nil || p.js == nil {
		return
	}
	event.Timestamp = time.Now().UTC()
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.WithError(err).Warn("Failed to marshal tenant event")
		return
	}
	if _, err := p.js.PublishAsync(subject, data); err != nil {
		p.logger.WithError(err).WithField("subject", subject).Warn("Failed to publish tenant event")
	}
}
