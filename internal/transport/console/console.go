// Package console prints notifications instead of sending them over the air.
package console

import (
	"encoding/hex"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/srg/mbitmore/internal/characteristic"
	"github.com/srg/mbitmore/internal/service"
)

// Transport writes one line per notification to an io.Writer.
type Transport struct {
	out    io.Writer
	logger *logrus.Logger

	mu    sync.Mutex
	seq   uint64
	name  *color.Color
	bytes *color.Color
}

var _ service.Transport = (*Transport)(nil)

// New creates a console transport. Colours are applied only when colored is true.
func New(out io.Writer, logger *logrus.Logger, colored bool) *Transport {
	if logger == nil {
		logger = logrus.New()
	}
	name := color.New(color.FgCyan)
	bytes := color.New(color.FgYellow)
	if colored {
		name.EnableColor()
		bytes.EnableColor()
	} else {
		name.DisableColor()
		bytes.DisableColor()
	}
	return &Transport{out: out, logger: logger, name: name, bytes: bytes}
}

// Notify prints "<seq> <characteristic> <hex payload>".
func (t *Transport) Notify(i characteristic.Index, payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.seq++
	t.logger.WithFields(logrus.Fields{
		"characteristic": i.String(),
		"length":         len(payload),
	}).Debug("Notify")

	_, err := fmt.Fprintf(t.out, "%4d %-14s %s\n", t.seq, t.name.Sprint(i.String()), t.bytes.Sprint(hex.EncodeToString(payload)))
	return err
}

// Count returns the number of notifications printed.
func (t *Transport) Count() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seq
}
