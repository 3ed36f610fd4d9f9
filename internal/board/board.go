// Package board is an in-memory micro:bit model used by the simulator and tests.
package board

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hedzr/go-ringbuf/v2/mpmc"
	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/smallnest/ringbuffer"
	"github.com/srg/mbitmore/internal/layout"
	"github.com/srg/mbitmore/internal/service"
)

// Command codes understood by HandleCommand. The first payload byte selects
// the command; the rest are its arguments.
const (
	CmdDisplayText   byte = 0x01 // text...
	CmdDisplayPixels byte = 0x02 // 5 row bitmaps
	CmdDisplayClear  byte = 0x03
	CmdDigitalOut    byte = 0x10 // pin, level
	CmdAnalogOut     byte = 0x11 // pin, uint16 LE
	CmdSharedSet     byte = 0x20 // slot, int16 LE
)

// Action event kinds, first byte of an action-event payload.
const (
	ActionButton  byte = 0x01
	ActionGesture byte = 0x02
)

// Button event codes.
const (
	ButtonDown  byte = 1
	ButtonUp    byte = 2
	ButtonClick byte = 3
)

// Pins is the number of digital pins tracked in the sensors bitmap.
const Pins = 21

// DisplayRows is the height of the LED matrix.
const DisplayRows = 5

var (
	ErrPinOutOfRange = errors.New("pin out of range")
	ErrNotAttached   = errors.New("board is not attached to a service")
)

// Record is one command received from the central.
type Record struct {
	At      time.Time
	Code    byte
	Payload []byte
	Known   bool
}

// Options configures a Board.
type Options struct {
	JournalSize uint32 `default:"64"`
	DisplaySize int    `default:"256"`
}

// DefaultOptions returns Options populated from their default tags.
func DefaultOptions() Options {
	opts := Options{}
	defaults.SetDefaults(&opts)
	return opts
}

// Board implements service.Device. All methods are safe for concurrent use.
type Board struct {
	logger *logrus.Logger
	now    func() time.Time
	start  time.Time

	journal     mpmc.RichOverlappedRingBuffer[Record]
	overwritten uint64

	mu        sync.Mutex
	publisher service.Publisher
	sensors   layout.Sensors
	motion    layout.Motion
	analog    [layout.AnalogPins]uint16
	analogOut [layout.AnalogPins]uint16
	shared    [layout.SharedSlots]int16
	pixels    [DisplayRows]byte
	display   *ringbuffer.RingBuffer
	resets    int
}

var _ service.Device = (*Board)(nil)

// New creates a board with zeroed readings.
func New(opts Options, logger *logrus.Logger) (*Board, error) {
	if opts.JournalSize == 0 {
		return nil, fmt.Errorf("journal size must be > 0")
	}
	if opts.DisplaySize <= 0 {
		return nil, fmt.Errorf("display size must be > 0")
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Board{
		logger:  logger,
		now:     time.Now,
		start:   time.Now(),
		journal: mpmc.NewOverlappedRingBuffer[Record](opts.JournalSize),
		display: ringbuffer.New(opts.DisplaySize),
	}, nil
}

func (b *Board) Attach(p service.Publisher) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.publisher = p
}

// Reset clears the display and outputs for a new connection.
func (b *Board) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pixels = [DisplayRows]byte{}
	b.analogOut = [layout.AnalogPins]uint16{}
	b.display.Reset()
	b.resets++
	b.logger.Debug("Board reset")
}

// Resets returns how many times Reset was called.
func (b *Board) Resets() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.resets
}

// HandleCommand records the command and applies the ones the board knows.
func (b *Board) HandleCommand(data []byte) {
	if len(data) == 0 {
		return
	}
	code, args := data[0], data[1:]
	known := b.apply(code, args)

	rec := Record{At: b.now(), Code: code, Payload: append([]byte(nil), data...), Known: known}
	overwrites, err := b.journal.EnqueueM(rec)
	if err != nil {
		b.logger.WithError(err).Warn("Command journal enqueue failed")
		return
	}

	b.mu.Lock()
	b.overwritten += uint64(overwrites)
	b.mu.Unlock()

	fields := logrus.Fields{"code": fmt.Sprintf("0x%02x", code), "length": len(args)}
	if known {
		b.logger.WithFields(fields).Debug("Command applied")
	} else {
		b.logger.WithFields(fields).Debug("Unknown command")
	}
}

func (b *Board) apply(code byte, args []byte) bool {
	switch code {
	case CmdDisplayText:
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.display.Free() < len(args) {
			b.display.Reset()
		}
		_, _ = b.display.Write(args)
		return true

	case CmdDisplayPixels:
		b.mu.Lock()
		defer b.mu.Unlock()
		copy(b.pixels[:], args)
		return true

	case CmdDisplayClear:
		b.mu.Lock()
		defer b.mu.Unlock()
		b.pixels = [DisplayRows]byte{}
		return true

	case CmdDigitalOut:
		if len(args) < 2 {
			return false
		}
		return b.SetDigital(int(args[0]), args[1] != 0) == nil

	case CmdAnalogOut:
		if len(args) < 3 || int(args[0]) >= layout.AnalogPins {
			return false
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		b.analogOut[args[0]] = binary.LittleEndian.Uint16(args[1:3])
		return true

	case CmdSharedSet:
		if len(args) < 3 {
			return false
		}
		p := b.attached()
		if p == nil {
			return false
		}
		v := int16(binary.LittleEndian.Uint16(args[1:3]))
		return p.SetSharedData(int(args[0]), int(v)) == nil
	}
	return false
}

// ApplySharedData stores the slots written by the central.
func (b *Board) ApplySharedData(slots [layout.SharedSlots]int16) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.shared = slots
}

func (b *Board) Sensors() layout.Sensors {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sensors
}

func (b *Board) Motion() layout.Motion {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.motion
}

// AnalogIn returns 0 for pins outside 0..layout.AnalogPins-1.
func (b *Board) AnalogIn(pin int) uint16 {
	if pin < 0 || pin >= layout.AnalogPins {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.analog[pin]
}

// SetDigital sets the level of a digital pin in the sensors bitmap.
func (b *Board) SetDigital(pin int, high bool) error {
	if pin < 0 || pin >= Pins {
		return fmt.Errorf("%w: %d", ErrPinOutOfRange, pin)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if high {
		b.sensors.DigitalLevels |= 1 << pin
	} else {
		b.sensors.DigitalLevels &^= 1 << pin
	}
	return nil
}

// SetEnvironment sets the light, temperature and sound readings.
func (b *Board) SetEnvironment(light uint8, temperature int8, sound uint8) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sensors.LightLevel = light
	b.sensors.Temperature = temperature
	b.sensors.SoundLevel = sound
}

func (b *Board) SetMotion(m layout.Motion) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.motion = m
}

func (b *Board) SetAnalog(pin int, v uint16) error {
	if pin < 0 || pin >= layout.AnalogPins {
		return fmt.Errorf("%w: %d", ErrPinOutOfRange, pin)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.analog[pin] = v
	return nil
}

// SharedSlots returns the slots last written by the central.
func (b *Board) SharedSlots() [layout.SharedSlots]int16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.shared
}

// Pixels returns the LED matrix rows.
func (b *Board) Pixels() [DisplayRows]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pixels
}

// AnalogOut returns the last analog output level written to pin.
func (b *Board) AnalogOut(pin int) uint16 {
	if pin < 0 || pin >= layout.AnalogPins {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.analogOut[pin]
}

// DrainDisplay returns and clears the text scrolled since the last call.
func (b *Board) DrainDisplay() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	buf := make([]byte, b.display.Length())
	n, err := b.display.TryRead(buf)
	if err != nil && !errors.Is(err, ringbuffer.ErrIsEmpty) {
		b.logger.WithError(err).Warn("Display read failed")
	}
	return string(buf[:n])
}

// DrainJournal returns the buffered commands, oldest first, and empties the journal.
func (b *Board) DrainJournal() []Record {
	var out []Record
	for !b.journal.IsEmpty() {
		rec, err := b.journal.Dequeue()
		if err != nil {
			break
		}
		out = append(out, rec)
	}
	return out
}

// Overwritten returns how many journal records were dropped to make room.
func (b *Board) Overwritten() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.overwritten
}

func (b *Board) attached() service.Publisher {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.publisher
}

func (b *Board) timestamp() uint32 {
	return uint32(b.now().Sub(b.start) / time.Millisecond)
}

// Button pushes a button action event: kind, button, event, uint32 LE ms timestamp.
func (b *Board) Button(button, event byte) error {
	p := b.attached()
	if p == nil {
		return ErrNotAttached
	}
	data := make([]byte, 7)
	data[0], data[1], data[2] = ActionButton, button, event
	binary.LittleEndian.PutUint32(data[3:], b.timestamp())
	p.NotifyActionEvent(data)
	return nil
}

// Gesture pushes a gesture action event: kind, gesture, uint32 LE ms timestamp.
func (b *Board) Gesture(gesture byte) error {
	p := b.attached()
	if p == nil {
		return ErrNotAttached
	}
	data := make([]byte, 6)
	data[0], data[1] = ActionGesture, gesture
	binary.LittleEndian.PutUint32(data[2:], b.timestamp())
	p.NotifyActionEvent(data)
	return nil
}

// PinEvent pushes a pin event: pin, event, uint32 LE ms timestamp.
func (b *Board) PinEvent(pin int, event byte) error {
	if pin < 0 || pin >= Pins {
		return fmt.Errorf("%w: %d", ErrPinOutOfRange, pin)
	}
	p := b.attached()
	if p == nil {
		return ErrNotAttached
	}
	data := make([]byte, 6)
	data[0], data[1] = byte(pin), event
	binary.LittleEndian.PutUint32(data[2:], b.timestamp())
	p.NotifyIOEvent(data)
	return nil
}
