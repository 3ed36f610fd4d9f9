package goble

import (
	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
)

func newDevice(hciID int) (ble.Device, error) {
	return linux.NewDevice(ble.OptDeviceID(hciID))
}
