package main

import (
	"errors"
	"os"
	"strings"

	"github.com/srg/mbitmore/internal/service"
)

// Command-level errors
var (
	// ErrNoController indicates the host has no usable BLE controller.
	ErrNoController = errors.New("no BLE controller available")
)

// FormatUserError turns an error chain into a single line for the terminal.
// Known causes get a hint; everything else is printed as is.
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	switch {
	case errors.Is(err, ErrNoController):
		return msg + " (is Bluetooth enabled? on Linux try running as root or with CAP_NET_ADMIN)"
	case errors.Is(err, os.ErrPermission):
		return msg + " (permission denied: on Linux try running as root or with CAP_NET_ADMIN)"
	case errors.Is(err, service.ErrUnknownCharacteristic):
		return msg + " (run 'mbitmore table' to list characteristics)"
	}
	return strings.TrimSpace(msg)
}
