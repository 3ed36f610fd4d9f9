package service

import (
	"github.com/srg/mbitmore/internal/characteristic"
	"github.com/srg/mbitmore/internal/layout"
)

// periodic lists the channels refreshed on every tick, in notification order.
var periodic = [...]characteristic.Index{
	characteristic.Sensors,
	characteristic.Direction,
	characteristic.AnalogInP0,
	characteristic.AnalogInP1,
	characteristic.AnalogInP2,
	characteristic.SharedData,
}

var analogChannels = [layout.AnalogPins]characteristic.Index{
	characteristic.AnalogInP0,
	characteristic.AnalogInP1,
	characteristic.AnalogInP2,
}

type snapshot struct {
	sensors [layout.SensorsSize]byte
	motion  [layout.DirectionSize]byte
	analog  [layout.AnalogPins][layout.AnalogSize]byte
}

// pull reads and encodes the device state. Runs without the service lock.
func (s *Service) pull(snap *snapshot) {
	layout.EncodeSensors(&snap.sensors, s.device.Sensors())
	layout.EncodeMotion(&snap.motion, s.device.Motion())
	for pin := range snap.analog {
		layout.EncodeAnalog(&snap.analog[pin], s.device.AnalogIn(pin))
	}
}

// Tick refreshes the outgoing buffers from the device and notifies the
// periodic channels according to the policy. Repeated ticks over an
// unchanged device produce identical buffers and, with PolicyChanged, no
// further notifications.
func (s *Service) Tick() {
	var snap snapshot
	s.pull(&snap)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.Ticks++
	_, _ = s.store.Write(characteristic.Sensors, snap.sensors[:])
	_, _ = s.store.Write(characteristic.Direction, snap.motion[:])
	for pin, idx := range analogChannels {
		_, _ = s.store.Write(idx, snap.analog[pin][:])
	}

	if !s.gate.Connected() {
		return
	}
	for _, idx := range periodic {
		if s.policy == PolicyChanged {
			p, _ := s.store.Payload(idx)
			if s.shadow[idx].matches(p) {
				continue
			}
		}
		s.notifyLocked(idx)
	}
}
