package service

import (
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/srg/mbitmore/internal/characteristic"
)

// Gate forwards notifications to the transport only while a central is connected.
// It is not safe for concurrent use on its own; the Service guards it.
type Gate struct {
	transport Transport
	connected bool
	logger    *logrus.Logger

	sent   uint64
	failed uint64
}

// NewGate creates a closed gate over t.
func NewGate(t Transport, logger *logrus.Logger) *Gate {
	if logger == nil {
		logger = logrus.New()
	}
	return &Gate{transport: t, logger: logger}
}

// Open marks the central as connected.
func (g *Gate) Open() { g.connected = true }

// Close marks the central as disconnected. Later Notify calls are no-ops.
func (g *Gate) Close() { g.connected = false }

// Connected reports whether the gate is open.
func (g *Gate) Connected() bool { return g.connected }

// Notify sends payload for i if connected and reports whether it was sent.
// Disconnection and a missing subscriber are not failures: both return false
// without logging. Other transport errors are logged and swallowed.
func (g *Gate) Notify(i characteristic.Index, payload []byte) bool {
	if !g.connected || g.transport == nil {
		return false
	}
	if err := g.transport.Notify(i, payload); err != nil {
		if errors.Is(err, ErrNoSubscriber) {
			return false
		}
		g.failed++
		g.logger.WithFields(logrus.Fields{
			"characteristic": i.String(),
			"length":         len(payload),
		}).WithError(err).Warn("Notification failed")
		return false
	}
	g.sent++
	return true
}
