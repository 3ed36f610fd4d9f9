// Package layout defines the wire encodings of the fixed-size characteristic payloads.
//
// All multi-byte fields are little-endian.
package layout

import (
	"encoding/binary"
	"fmt"
)

// Payload sizes.
const (
	SensorsSize   = 7
	DirectionSize = 18
	AnalogSize    = 2
	SharedSize    = 8

	SharedSlots = SharedSize / 2
)

// AnalogPins is the number of analog input pins exposed (P0..P2).
const AnalogPins = 3

// Sensors is the board state carried by the sensors characteristic.
//
//	0..3  digital levels, bit n = pin n
//	4     light level
//	5     temperature, degrees C
//	6     sound level
type Sensors struct {
	DigitalLevels uint32
	LightLevel    uint8
	Temperature   int8
	SoundLevel    uint8
}

// Motion is the orientation state carried by the direction characteristic.
//
//	0..5   acceleration x, y, z (milli-g)
//	6..9   pitch, roll (centi-radians)
//	10..15 magnetic force x, y, z
//	16..17 compass heading (degrees)
type Motion struct {
	AccelX, AccelY, AccelZ int16
	Pitch, Roll            int16
	MagX, MagY, MagZ       int16
	Heading                uint16
}

// EncodeSensors packs s into dst.
func EncodeSensors(dst *[SensorsSize]byte, s Sensors) {
	binary.LittleEndian.PutUint32(dst[0:4], s.DigitalLevels)
	dst[4] = s.LightLevel
	dst[5] = byte(s.Temperature)
	dst[6] = s.SoundLevel
}

// DecodeSensors is the inverse of EncodeSensors.
func DecodeSensors(b []byte) (Sensors, error) {
	if len(b) < SensorsSize {
		return Sensors{}, fmt.Errorf("sensors payload: need %d bytes, got %d", SensorsSize, len(b))
	}
	return Sensors{
		DigitalLevels: binary.LittleEndian.Uint32(b[0:4]),
		LightLevel:    b[4],
		Temperature:   int8(b[5]),
		SoundLevel:    b[6],
	}, nil
}

// EncodeMotion packs m into dst.
func EncodeMotion(dst *[DirectionSize]byte, m Motion) {
	fields := [...]int16{m.AccelX, m.AccelY, m.AccelZ, m.Pitch, m.Roll, m.MagX, m.MagY, m.MagZ}
	for i, v := range fields {
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(v))
	}
	binary.LittleEndian.PutUint16(dst[16:18], m.Heading)
}

// DecodeMotion is the inverse of EncodeMotion.
func DecodeMotion(b []byte) (Motion, error) {
	if len(b) < DirectionSize {
		return Motion{}, fmt.Errorf("direction payload: need %d bytes, got %d", DirectionSize, len(b))
	}
	i16 := func(off int) int16 { return int16(binary.LittleEndian.Uint16(b[off:])) }
	return Motion{
		AccelX:  i16(0),
		AccelY:  i16(2),
		AccelZ:  i16(4),
		Pitch:   i16(6),
		Roll:    i16(8),
		MagX:    i16(10),
		MagY:    i16(12),
		MagZ:    i16(14),
		Heading: binary.LittleEndian.Uint16(b[16:18]),
	}, nil
}

// EncodeAnalog packs an analog reading into dst.
func EncodeAnalog(dst *[AnalogSize]byte, v uint16) {
	binary.LittleEndian.PutUint16(dst[:], v)
}

// DecodeAnalog is the inverse of EncodeAnalog.
func DecodeAnalog(b []byte) (uint16, error) {
	if len(b) < AnalogSize {
		return 0, fmt.Errorf("analog payload: need %d bytes, got %d", AnalogSize, len(b))
	}
	return binary.LittleEndian.Uint16(b), nil
}

// DecodeShared unpacks the shared-data slots. A short payload leaves the
// missing slots at zero.
func DecodeShared(b []byte) [SharedSlots]int16 {
	var out [SharedSlots]int16
	for k := range out {
		off := k * 2
		if off+2 > len(b) {
			break
		}
		out[k] = int16(binary.LittleEndian.Uint16(b[off:]))
	}
	return out
}
