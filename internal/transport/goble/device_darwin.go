package goble

import (
	"github.com/go-ble/ble"
	"github.com/go-ble/ble/darwin"
)

// The HCI index has no meaning on CoreBluetooth.
func newDevice(int) (ble.Device, error) {
	return darwin.NewDevice(ble.OptPeripheralRole())
}
