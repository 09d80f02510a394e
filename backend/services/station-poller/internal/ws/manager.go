package ws

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"chargewatch/backend/services/station-poller/internal/models"
)

// Manager tracks dashboard subscribers and fans run summaries out to them.
type Manager struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	latest      []byte
	logger      *zap.Logger
}

// NewManager builds connection manager.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		connections: make(map[string]*Connection),
		logger:      logger,
	}
}

// Add registers new connection and replays the latest summary to it.
func (m *Manager) Add(conn *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections[conn.ID()] = conn
	if m.latest != nil {
		conn.Send(m.latest)
	}
}

// Remove removes connection.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.connections, id)
}

// Count returns the number of subscribers.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

// Broadcast queues msg on every connection and keeps it for late subscribers.
func (m *Manager) Broadcast(msg []byte) {
	m.mu.Lock()
	m.latest = msg
	m.mu.Unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, conn := range m.connections {
		conn.Send(msg)
	}
}

func (m *Manager) Name() string { return "websocket" }

// Publish pushes the run summary of snap to subscribers.
func (m *Manager) Publish(_ context.Context, snap models.Snapshot) error {
	if snap.Summary == nil {
		return nil
	}
	msg, err := json.Marshal(snap.Summary)
	if err != nil {
		return err
	}
	m.Broadcast(msg)
	m.logger.Debug("run summary broadcast", zap.Int("subscribers", m.Count()))
	return nil
}

// Start blocks until ctx is done, then closes every connection.
func (m *Manager) Start(ctx context.Context) {
	<-ctx.Done()
	m.mu.RLock()
	conns := make([]*Connection, 0, len(m.connections))
	for _, conn := range m.connections {
		conns = append(conns, conn)
	}
	m.mu.RUnlock()
	for _, conn := range conns {
		conn.Close()
	}
}
