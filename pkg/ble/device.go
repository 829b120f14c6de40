package ble

import (
	"sync"

	"github.com/go-ble/ble"
)

var (
	deviceOnce sync.Once
	deviceErr  error
)

// InitHostDevice opens the host BLE adapter and installs it as the process
// default, exactly once. The handle is shared by discovery and every
// connection cycle for the life of the process; HCI adapters do not tolerate
// being reopened per connection. Subsequent calls return the first outcome.
func InitHostDevice() error {
	deviceOnce.Do(func() {
		d, err := DeviceFactory()
		if err != nil {
			deviceErr = err
			return
		}
		ble.SetDefaultDevice(d)
	})
	return deviceErr
}
