package service

import (
	"math"

	"github.com/sirupsen/logrus"
	"github.com/srg/mbitmore/internal/characteristic"
)

func saturate16(v int) int16 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	default:
		return int16(v)
	}
}

// SetSharedData stores value in shared slot index, saturated to int16, and
// notifies the shared-data channel.
func (s *Service) SetSharedData(index int, value int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.SetSharedSlot(index, saturate16(value)); err != nil {
		return err
	}
	s.notifyLocked(characteristic.SharedData)
	return nil
}

// SharedData returns the value held in shared slot index.
func (s *Service) SharedData(index int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.store.SharedSlot(index)
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

// NotifySharedData notifies the current shared-data buffer.
func (s *Service) NotifySharedData() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifyLocked(characteristic.SharedData)
}

// NotifyBasicData writes data into the sensors channel and notifies it.
func (s *Service) NotifyBasicData(data []byte) {
	s.push(characteristic.Sensors, data)
}

// NotifyActionEvent writes data into the action-event channel and notifies it.
func (s *Service) NotifyActionEvent(data []byte) {
	s.push(characteristic.ActionEvent, data)
}

// NotifyIOEvent writes data into the pin-event channel and notifies it.
func (s *Service) NotifyIOEvent(data []byte) {
	s.push(characteristic.PinEvent, data)
}

func (s *Service) push(i characteristic.Index, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.store.Write(i, data)
	if err != nil {
		return
	}
	if n < len(data) {
		s.logger.WithFields(logrus.Fields{
			"characteristic": i.String(),
			"length":         len(data),
			"capacity":       n,
		}).Debug("Event payload truncated")
	}
	s.notifyLocked(i)
}
