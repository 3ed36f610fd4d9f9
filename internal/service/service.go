package service

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/srg/mbitmore/internal/buffer"
	"github.com/srg/mbitmore/internal/characteristic"
	"github.com/srg/mbitmore/internal/layout"
)

// Device is the board model the service pulls state from and forwards writes to.
// The service never calls a Device method while holding its own lock, so a
// Device may call back into the Publisher it was attached to.
type Device interface {
	// Attach hands the device the service's outward interface.
	Attach(p Publisher)

	// Reset clears per-connection state. Called on every new connection.
	Reset()

	// HandleCommand interprets a raw command payload. The payload is a copy
	// no longer than the command characteristic's capacity.
	HandleCommand(data []byte)

	// ApplySharedData applies shared-data slots written by the central.
	ApplySharedData(slots [layout.SharedSlots]int16)

	Sensors() layout.Sensors
	Motion() layout.Motion

	// AnalogIn returns the reading of analog pin 0..layout.AnalogPins-1.
	AnalogIn(pin int) uint16
}

// Transport pushes a characteristic value to the connected central.
// Notify is called with the service lock held and must not retain payload.
// It returns ErrNoSubscriber when nobody listens on i.
type Transport interface {
	Notify(i characteristic.Index, payload []byte) error
}

// Publisher is what the device model may call to push data outward without
// waiting for the next tick.
type Publisher interface {
	SetSharedData(index int, value int) error
	SharedData(index int) (int, error)
	NotifySharedData()
	NotifyBasicData(data []byte)
	NotifyActionEvent(data []byte)
	NotifyIOEvent(data []byte)
}

// EventHandler receives BLE stack callbacks.
type EventHandler interface {
	OnConnect()
	OnDisconnect()
	OnDataWritten(i characteristic.Index, payload []byte) error
	OnDataRead(i characteristic.Index) ([]byte, error)
}

// Ticker participates in periodic refresh.
type Ticker interface {
	Tick()
}

// NotifyPolicy selects when the periodic updater notifies a channel.
type NotifyPolicy string

const (
	// PolicyChanged notifies a periodic channel only when its payload differs
	// from the last payload sent since the connection was established.
	PolicyChanged NotifyPolicy = "changed"

	// PolicyAlways notifies every periodic channel on every tick.
	PolicyAlways NotifyPolicy = "always"
)

// ParseNotifyPolicy validates a policy name. Empty selects PolicyChanged.
func ParseNotifyPolicy(s string) (NotifyPolicy, error) {
	switch NotifyPolicy(s) {
	case "", PolicyChanged:
		return PolicyChanged, nil
	case PolicyAlways:
		return PolicyAlways, nil
	default:
		return "", fmt.Errorf("invalid notify policy: %s (must be changed or always)", s)
	}
}

// Stats counts service activity since construction.
type Stats struct {
	Ticks          uint64
	Writes         uint64
	RejectedWrites uint64
	Truncated      uint64
	Notifications  uint64
	FailedNotifies uint64
}

type shadow struct {
	data   [characteristic.MaxLength]byte
	length int
	valid  bool
}

func (s *shadow) matches(p []byte) bool {
	return s.valid && bytes.Equal(s.data[:s.length], p)
}

func (s *shadow) record(p []byte) {
	s.length = copy(s.data[:], p)
	s.valid = true
}

// Service is the characteristic dispatch core. It implements EventHandler,
// Ticker and Publisher. All entry points are serialised by one mutex.
type Service struct {
	table  *characteristic.Table
	store  *buffer.Store
	device Device
	gate   *Gate
	policy NotifyPolicy
	logger *logrus.Logger

	mu     sync.Mutex
	shadow [characteristic.Count]shadow
	stats  Stats
}

var (
	_ EventHandler = (*Service)(nil)
	_ Ticker       = (*Service)(nil)
	_ Publisher    = (*Service)(nil)
)

// Option configures a Service.
type Option func(*Service)

// WithPolicy sets the periodic notification policy.
func WithPolicy(p NotifyPolicy) Option {
	return func(s *Service) { s.policy = p }
}

// WithTransport sets the transport used by the notification gate.
func WithTransport(t Transport) Option {
	return func(s *Service) { s.gate.transport = t }
}

// New creates the service over table, attaches it to dev and allocates every buffer.
func New(table *characteristic.Table, dev Device, logger *logrus.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = logrus.New()
	}
	s := &Service{
		table:  table,
		store:  buffer.NewStore(table),
		device: dev,
		gate:   NewGate(nil, logger),
		policy: PolicyChanged,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	dev.Attach(s)
	return s
}

// SetTransport replaces the notification transport. Adapters that need the
// service to build their handlers call this after construction.
func (s *Service) SetTransport(t Transport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate.transport = t
}

// Table returns the characteristic table the service was built on.
func (s *Service) Table() *characteristic.Table { return s.table }

// Connected reports the connection state held by the gate.
func (s *Service) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gate.Connected()
}

// Value returns a copy of the current payload of i regardless of permissions.
func (s *Service) Value(i characteristic.Index) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.store.Payload(i)
	if err != nil {
		return nil, err
	}
	return bytes.Clone(p), nil
}

// Stats returns a snapshot of the activity counters.
func (s *Service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	st.Notifications = s.gate.sent
	st.FailedNotifies = s.gate.failed
	return st
}

// notifyLocked pushes the current payload of i through the gate and records
// it as the last notified value when it was sent.
func (s *Service) notifyLocked(i characteristic.Index) bool {
	p, err := s.store.Payload(i)
	if err != nil {
		return false
	}
	if !s.gate.Notify(i, p) {
		return false
	}
	s.shadow[i].record(p)
	return true
}
