package goble

import (
	"github.com/go-ble/ble"
)

// DeviceFactory opens the host BLE controller in the peripheral role.
// This is a variable so that it can be overridden in tests.
//
//nolint:revive // DeviceFactory name is intentional for test mocking
var DeviceFactory = func(hciID int) (ble.Device, error) {
	return newDevice(hciID)
}
