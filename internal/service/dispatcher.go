package service

import (
	"bytes"

	"github.com/sirupsen/logrus"
	"github.com/srg/mbitmore/internal/characteristic"
	"github.com/srg/mbitmore/internal/layout"
)

// OnConnect opens the gate and invalidates every last-notified value so the
// next tick resends all periodic channels to the new central.
func (s *Service) OnConnect() {
	s.mu.Lock()
	s.gate.Open()
	for i := range s.shadow {
		s.shadow[i].valid = false
	}
	s.mu.Unlock()

	s.device.Reset()
	s.logger.Info("Central connected")
}

// OnDisconnect closes the gate.
func (s *Service) OnDisconnect() {
	s.mu.Lock()
	s.gate.Close()
	s.mu.Unlock()

	s.logger.Info("Central disconnected")
}

// OnDataWritten handles a write from the central.
//
// Command payloads are truncated to the channel capacity and handed to the
// device synchronously, once. Shared-data payloads are stored and the decoded
// slots applied to the device immediately.
func (s *Service) OnDataWritten(i characteristic.Index, payload []byte) error {
	d := s.table.At(i)
	if d == nil {
		return s.reject("write", i, ErrUnknownCharacteristic)
	}
	if !d.Writable() {
		return s.reject("write", i, ErrNotWritable)
	}

	var (
		command []byte
		slots   [layout.SharedSlots]int16
	)

	s.mu.Lock()
	n, err := s.store.Write(i, payload)
	if err != nil {
		s.stats.RejectedWrites++
		s.mu.Unlock()
		return &AccessError{Op: "write", Index: i, Err: err}
	}
	s.stats.Writes++
	if n < len(payload) {
		s.stats.Truncated++
	}
	switch i {
	case characteristic.Command:
		command = bytes.Clone(payload[:n])
	case characteristic.SharedData:
		slots = s.store.SharedSlots()
	}
	s.mu.Unlock()

	fields := logrus.Fields{"characteristic": i.String(), "length": len(payload)}
	if n < len(payload) {
		s.logger.WithFields(fields).WithField("capacity", d.Capacity).Debug("Write truncated")
	} else {
		s.logger.WithFields(fields).Debug("Write received")
	}

	switch i {
	case characteristic.Command:
		s.device.HandleCommand(command)
	case characteristic.SharedData:
		s.device.ApplySharedData(slots)
	}
	return nil
}

// OnDataRead returns a copy of the current payload of i. It never calls the
// device; values are precomputed by Tick.
func (s *Service) OnDataRead(i characteristic.Index) ([]byte, error) {
	d := s.table.At(i)
	if d == nil {
		return nil, s.reject("read", i, ErrUnknownCharacteristic)
	}
	if !d.Readable() {
		return nil, s.reject("read", i, ErrNotReadable)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.store.Payload(i)
	if err != nil {
		return nil, &AccessError{Op: "read", Index: i, Err: err}
	}
	return bytes.Clone(p), nil
}

func (s *Service) reject(op string, i characteristic.Index, err error) error {
	if op == "write" {
		s.mu.Lock()
		s.stats.RejectedWrites++
		s.mu.Unlock()
	}
	s.logger.WithFields(logrus.Fields{
		"characteristic": i.String(),
		"op":             op,
	}).WithError(err).Warn("Rejected characteristic access")
	return &AccessError{Op: op, Index: i, Err: err}
}
