package service

import (
	"errors"
	"fmt"

	"github.com/srg/mbitmore/internal/characteristic"
)

// Dispatch errors
var (
	ErrUnknownCharacteristic = errors.New("unknown characteristic")
	ErrNotWritable           = errors.New("characteristic is not writable")
	ErrNotReadable           = errors.New("characteristic is not readable")
)

// ErrNoSubscriber is returned by a Transport when the central has not enabled
// notifications on the characteristic. The gate treats it as not sent.
var ErrNoSubscriber = errors.New("no subscriber")

// AccessError reports a rejected read or write on a characteristic.
type AccessError struct {
	Op    string // "read" or "write"
	Index characteristic.Index
	Err   error
}

func (e *AccessError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Index, e.Err)
}

func (e *AccessError) Unwrap() error {
	return e.Err
}
