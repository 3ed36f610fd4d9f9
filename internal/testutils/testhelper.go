package testutils

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

// TestHelper bundles a test with a logger whose entries are captured.
type TestHelper struct {
	T      *testing.T
	Logger *logrus.Logger
	Hook   *test.Hook
}

// NewTestHelper creates a helper whose logger discards output at debug level
// and records every entry in Hook.
func NewTestHelper(t *testing.T) *TestHelper {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	logger.SetOutput(io.Discard)
	return &TestHelper{T: t, Logger: logger, Hook: hook}
}

// Messages returns the messages logged at level, in order.
func (h *TestHelper) Messages(level logrus.Level) []string {
	var out []string
	for _, e := range h.Hook.AllEntries() {
		if e.Level == level {
			out = append(out, e.Message)
		}
	}
	return out
}
