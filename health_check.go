package ygggo_gamedb

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// HealthStatus represents the health of one logical database
type HealthStatus struct {
	Database      string        `json:"database"`
	Healthy       bool          `json:"healthy"`
	LastChecked   time.Time     `json:"last_checked"`
	ResponseTime  time.Duration `json:"response_time"`
	QueueSize     int           `json:"queue_size"`
	WorkerRunning bool          `json:"worker_running"`
	Errors        []HealthError `json:"errors,omitempty"`
}

// HealthError represents a health check error
type HealthError struct {
	Type        string    `json:"type"`
	Message     string    `json:"message"`
	Kind        ErrorKind `json:"kind"`
	Timestamp   time.Time `json:"timestamp"`
	Recoverable bool      `json:"recoverable"`
}

const defaultHealthCheckTimeout = 5 * time.Second

// HealthCheck connects, pings and runs SELECT 1 on a dedicated connection.
// It never goes through the worker queue.
func (db *Database) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	if db == nil {
		return nil, fmt.Errorf("database is nil")
	}
	start := time.Now()
	status := &HealthStatus{
		Database:      db.name,
		LastChecked:   start,
		QueueSize:     db.QueueSize(),
		WorkerRunning: db.worker.Running(),
	}

	ctx, cancel := context.WithTimeout(ctx, defaultHealthCheckTimeout)
	defer cancel()

	addErr := func(typ string, err error) {
		kind := Classify(err)
		status.Errors = append(status.Errors, HealthError{
			Type:        typ,
			Message:     err.Error(),
			Kind:        kind,
			Timestamp:   time.Now(),
			Recoverable: kind == ErrKindConnectionFailure || kind == ErrKindDeadlock,
		})
	}

	conn, err := db.connector.Connect(ctx)
	if err != nil {
		addErr("connectivity", err)
	} else {
		defer conn.Close()
		if _, err := conn.Query(ctx, "SELECT 1"); err != nil {
			addErr("query_execution", err)
		}
	}

	status.ResponseTime = time.Since(start)
	status.Healthy = len(status.Errors) == 0
	return status, nil
}

// KeepAliveMonitor periodically queues a ping on every database it watches
// so that idle sessions are not dropped by the server.
type KeepAliveMonitor struct {
	databases []*Database
	interval  time.Duration

	mu       sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
	running  bool
}

// NewKeepAliveMonitor creates a monitor pinging dbs every interval.
func NewKeepAliveMonitor(interval time.Duration, dbs ...*Database) *KeepAliveMonitor {
	return &KeepAliveMonitor{databases: dbs, interval: interval}
}

// Start begins pinging
func (m *KeepAliveMonitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("keep-alive monitor is already running")
	}
	if m.interval <= 0 {
		return fmt.Errorf("keep-alive interval must be positive")
	}
	m.stopChan = make(chan struct{})
	m.done = make(chan struct{})
	m.running = true
	go m.loop(m.stopChan, m.done)
	return nil
}

// Stop stops pinging
func (m *KeepAliveMonitor) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return fmt.Errorf("keep-alive monitor is not running")
	}
	close(m.stopChan)
	done := m.done
	m.running = false
	m.mu.Unlock()

	<-done
	return nil
}

// IsRunning returns whether the monitor is active
func (m *KeepAliveMonitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *KeepAliveMonitor) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			for _, db := range m.databases {
				db.KeepAlive()
			}
		}
	}
}
