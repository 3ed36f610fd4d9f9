package characteristic

import (
	"fmt"

	"github.com/go-ble/ble"
	"github.com/google/uuid"
)

// Index is the stable position of a characteristic in the service table.
type Index int

// Do not re-order; buffer storage and UUID suffixes are laid out by Index.
const (
	Command Index = iota
	Sensors
	Direction
	PinEvent
	ActionEvent
	AnalogInP0
	AnalogInP1
	AnalogInP2
	SharedData

	Count
)

// MaxLength is the largest value a single characteristic may carry.
// Default ATT_MTU is 23 bytes; 3 of them are the ATT header.
const MaxLength = 20

// DefaultBaseUUID is the 128-bit base every service and characteristic UUID is derived from.
// Bytes 2..3 are replaced by the 16-bit suffix.
const DefaultBaseUUID = "0b500000-607f-4151-9091-7d008d6ffc5c"

// ServiceSuffix is the 16-bit suffix of the service UUID.
const ServiceSuffix uint16 = 0xf3e4

var names = [Count]string{
	Command:     "command",
	Sensors:     "sensors",
	Direction:   "direction",
	PinEvent:    "pin_event",
	ActionEvent: "action_event",
	AnalogInP0:  "analog_in_p0",
	AnalogInP1:  "analog_in_p1",
	AnalogInP2:  "analog_in_p2",
	SharedData:  "shared_data",
}

// String returns the snake_case name used in logs and CLI output.
func (i Index) String() string {
	if !i.Valid() {
		return fmt.Sprintf("index(%d)", int(i))
	}
	return names[i]
}

// Valid reports whether i is one of the enumerated characteristics.
func (i Index) Valid() bool {
	return i >= 0 && i < Count
}

// Descriptor is the static description of one characteristic.
type Descriptor struct {
	Index    Index
	Name     string
	Suffix   uint16
	UUID     ble.UUID
	Text     string // dashed lowercase form of UUID
	Capacity int
	Props    ble.Property

	// Variable marks channels whose payload length is the last written length
	// rather than the full capacity.
	Variable bool
}

// Readable reports whether the central may read the characteristic.
func (d *Descriptor) Readable() bool { return d.Props&ble.CharRead != 0 }

// Writable reports whether the central may write the characteristic.
func (d *Descriptor) Writable() bool { return d.Props&(ble.CharWrite|ble.CharWriteNR) != 0 }

// Notifiable reports whether the characteristic supports notifications.
func (d *Descriptor) Notifiable() bool { return d.Props&ble.CharNotify != 0 }

// PropertyNames lists the properties in GATT bit order.
func (d *Descriptor) PropertyNames() []string {
	var names []string
	for _, p := range [...]struct {
		bit  ble.Property
		name string
	}{
		{ble.CharRead, "read"},
		{ble.CharWriteNR, "write-nr"},
		{ble.CharWrite, "write"},
		{ble.CharNotify, "notify"},
	} {
		if d.Props&p.bit != 0 {
			names = append(names, p.name)
		}
	}
	return names
}

type entry struct {
	suffix   uint16
	capacity int
	props    ble.Property
	variable bool
}

var layout = [Count]entry{
	Command:     {suffix: 0x0100, capacity: MaxLength, props: ble.CharWrite | ble.CharWriteNR, variable: true},
	Sensors:     {suffix: 0x0101, capacity: 7, props: ble.CharRead | ble.CharNotify},
	Direction:   {suffix: 0x0102, capacity: 18, props: ble.CharRead | ble.CharNotify},
	PinEvent:    {suffix: 0x0110, capacity: MaxLength, props: ble.CharNotify, variable: true},
	ActionEvent: {suffix: 0x0111, capacity: MaxLength, props: ble.CharNotify, variable: true},
	AnalogInP0:  {suffix: 0x0120, capacity: 2, props: ble.CharRead | ble.CharNotify},
	AnalogInP1:  {suffix: 0x0121, capacity: 2, props: ble.CharRead | ble.CharNotify},
	AnalogInP2:  {suffix: 0x0122, capacity: 2, props: ble.CharRead | ble.CharNotify},
	SharedData:  {suffix: 0x0130, capacity: 8, props: ble.CharRead | ble.CharWrite | ble.CharWriteNR | ble.CharNotify},
}

// Table is the read-only set of descriptors. It is built once and never mutated.
type Table struct {
	base        uuid.UUID
	service     ble.UUID
	serviceText string
	descs       [Count]Descriptor
}

// NewTable builds the descriptor table from a textual base UUID.
// An empty base selects DefaultBaseUUID.
func NewTable(base string) (*Table, error) {
	if base == "" {
		base = DefaultBaseUUID
	}
	u, err := uuid.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid base UUID %q: %w", base, err)
	}

	t := &Table{
		base:        u,
		service:     Derive(u, ServiceSuffix),
		serviceText: DeriveText(u, ServiceSuffix),
	}
	for i := Index(0); i < Count; i++ {
		l := layout[i]
		t.descs[i] = Descriptor{
			Index:    i,
			Name:     names[i],
			Suffix:   l.suffix,
			UUID:     Derive(u, l.suffix),
			Text:     DeriveText(u, l.suffix),
			Capacity: l.capacity,
			Props:    l.props,
			Variable: l.variable,
		}
	}
	return t, nil
}

// DefaultTable returns the table built on DefaultBaseUUID.
func DefaultTable() *Table {
	t, err := NewTable(DefaultBaseUUID)
	if err != nil {
		panic(err)
	}
	return t
}

// Count returns the number of characteristics.
func (t *Table) Count() int { return int(Count) }

// At returns the descriptor for i, or nil if i is outside the enumeration.
func (t *Table) At(i Index) *Descriptor {
	if !i.Valid() {
		return nil
	}
	return &t.descs[i]
}

// ServiceUUID returns the UUID of the service owning the characteristics.
func (t *Table) ServiceUUID() ble.UUID { return t.service }

// ServiceText returns the service UUID in dashed form.
func (t *Table) ServiceText() string { return t.serviceText }

// BaseUUID returns the base the table was derived from.
func (t *Table) BaseUUID() uuid.UUID { return t.base }

// Lookup finds the index of the characteristic with UUID u.
func (t *Table) Lookup(u ble.UUID) (Index, bool) {
	for i := range t.descs {
		if t.descs[i].UUID.Equal(u) {
			return t.descs[i].Index, true
		}
	}
	return 0, false
}

// Descriptors returns the descriptors in index order.
func (t *Table) Descriptors() []Descriptor {
	out := make([]Descriptor, Count)
	copy(out, t.descs[:])
	return out
}

// Derive replaces bytes 2..3 of base with suffix (big-endian, as written in the textual form).
func Derive(base uuid.UUID, suffix uint16) ble.UUID {
	return ble.MustParse(DeriveText(base, suffix))
}

// DeriveText is Derive in the dashed textual form.
func DeriveText(base uuid.UUID, suffix uint16) string {
	b := base
	b[2] = byte(suffix >> 8)
	b[3] = byte(suffix)
	return b.String()
}
