package relay

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/parley-agents/parley/pkg/api"
)

// EventMirror republishes status updates onto NATS so dashboards and
// other observers can watch negotiations without polling the agents.
// Mirroring is best effort: a down broker never blocks a task.
type EventMirror struct {
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
}

func NewEventMirror(natsURL, agentName string, logger *slog.Logger) (*EventMirror, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(natsURL,
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	logger.Info("connected to NATS", "url", natsURL)
	return &EventMirror{
		conn:    conn,
		subject: "parley.tasks." + agentName,
		logger:  logger,
	}, nil
}

func (m *EventMirror) Publish(update api.StatusUpdate) {
	data, err := json.Marshal(update)
	if err != nil {
		m.logger.Warn("failed to marshal status update", "error", err)
		return
	}
	if err := m.conn.Publish(m.subject, data); err != nil {
		m.logger.Warn("failed to mirror status update", "subject", m.subject, "error", err)
	}
}

func (m *EventMirror) IsConnected() bool {
	return m.conn != nil && m.conn.IsConnected()
}

func (m *EventMirror) Close() {
	if m.conn != nil {
		m.conn.Close()
	}
}
