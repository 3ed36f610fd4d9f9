package testutils

import (
	"bytes"
	"sync"

	"github.com/srg/mbitmore/internal/characteristic"
	"github.com/srg/mbitmore/internal/layout"
	"github.com/srg/mbitmore/internal/service"
	"github.com/stretchr/testify/mock"
)

// MockDevice is a testify mock of service.Device.
type MockDevice struct {
	mock.Mock

	mu        sync.Mutex
	publisher service.Publisher
}

var _ service.Device = (*MockDevice)(nil)

// NewStaticDevice returns a MockDevice that reports fixed readings on every
// call and accepts any Reset, command or shared-data write.
func NewStaticDevice(s layout.Sensors, m layout.Motion, analog [layout.AnalogPins]uint16) *MockDevice {
	d := &MockDevice{}
	d.On("Reset").Return().Maybe()
	d.On("HandleCommand", mock.Anything).Return().Maybe()
	d.On("ApplySharedData", mock.Anything).Return().Maybe()
	d.On("Sensors").Return(s).Maybe()
	d.On("Motion").Return(m).Maybe()
	for pin, v := range analog {
		d.On("AnalogIn", pin).Return(v).Maybe()
	}
	return d
}

func (d *MockDevice) Attach(p service.Publisher) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.publisher = p
}

// Publisher returns what the service attached.
func (d *MockDevice) Publisher() service.Publisher {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.publisher
}

func (d *MockDevice) Reset() {
	d.Called()
}

func (d *MockDevice) HandleCommand(data []byte) {
	d.Called(bytes.Clone(data))
}

func (d *MockDevice) ApplySharedData(slots [layout.SharedSlots]int16) {
	d.Called(slots)
}

func (d *MockDevice) Sensors() layout.Sensors {
	return d.Called().Get(0).(layout.Sensors)
}

func (d *MockDevice) Motion() layout.Motion {
	return d.Called().Get(0).(layout.Motion)
}

func (d *MockDevice) AnalogIn(pin int) uint16 {
	return d.Called(pin).Get(0).(uint16)
}

// Notification is one payload observed by a RecordingTransport.
type Notification struct {
	Index   characteristic.Index
	Payload []byte
}

// RecordingTransport records every notification and optionally fails them.
type RecordingTransport struct {
	mu   sync.Mutex
	sent []Notification
	Err  error
}

var _ service.Transport = (*RecordingTransport)(nil)

func (t *RecordingTransport) Notify(i characteristic.Index, payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, Notification{Index: i, Payload: bytes.Clone(payload)})
	return t.Err
}

// Sent returns a copy of the recorded notifications.
func (t *RecordingTransport) Sent() []Notification {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Notification(nil), t.sent...)
}

// For returns the payloads recorded for i, in order.
func (t *RecordingTransport) For(i characteristic.Index) [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out [][]byte
	for _, n := range t.sent {
		if n.Index == i {
			out = append(out, n.Payload)
		}
	}
	return out
}

// Reset forgets recorded notifications.
func (t *RecordingTransport) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = nil
}
