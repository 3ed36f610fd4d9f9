package board

import (
	"math"

	"github.com/srg/mbitmore/internal/layout"
)

// Animate moves the readings to step of a deterministic motion: the board
// turns 5 degrees per step, tilts with it and sees light and sound swell.
// Used by the simulator so a connected central observes changing values.
func (b *Board) Animate(step int) {
	heading := (step * 5) % 360
	rad := float64(heading) * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)

	m := layout.Motion{
		AccelX:  int16(512 * sin),
		AccelY:  int16(512 * cos),
		AccelZ:  -1024,
		Pitch:   int16(50 * sin),
		Roll:    int16(50 * cos),
		MagX:    int16(300 * cos),
		MagY:    int16(300 * sin),
		MagZ:    -100,
		Heading: uint16(heading),
	}
	wave := uint8(127 + 127*sin)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.motion = m
	b.sensors.LightLevel = wave
	b.sensors.SoundLevel = 255 - wave
	b.sensors.Temperature = 21
	for pin := range b.analog {
		b.analog[pin] = uint16((step*(pin+1)*16 + pin*341) % 1024)
	}
}
