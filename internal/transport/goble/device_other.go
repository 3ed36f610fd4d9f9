//go:build !linux && !darwin

package goble

import (
	"fmt"
	"runtime"

	"github.com/go-ble/ble"
)

func newDevice(int) (ble.Device, error) {
	return nil, fmt.Errorf("no BLE peripheral support on %s", runtime.GOOS)
}
