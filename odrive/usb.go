package odrive

import (
	"github.com/google/gousb"
)

const (
	// VendorID is the pid.codes vendor ID ODrive Robotics ships under
	VendorID = gousb.ID(0x1209)

	// ProductID is the ODrive v3 product ID in its normal (non-DFU) mode
	ProductID = gousb.ID(0x0D32)
)

// USBDevice describes an attached controller
type USBDevice struct {
	SerialNumber string
	Product      string
}

// Enumerator lists attached controllers
type Enumerator interface {
	Enumerate() ([]USBDevice, error)
}

// USBEnumerator finds controllers with libusb
type USBEnumerator struct{}

// Enumerate returns every attached device matching VendorID and ProductID
func (USBEnumerator) Enumerate() ([]USBDevice, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()
	// OpenDevices can return both devices and an error when some
	// matching devices could not be opened (permissions, usually)
	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == VendorID && desc.Product == ProductID
	})
	defer func() {
		for _, d := range devs {
			d.Close()
		}
	}()
	out := make([]USBDevice, 0, len(devs))
	for _, d := range devs {
		sn, serr := d.SerialNumber()
		if serr != nil {
			continue
		}
		prod, _ := d.Product()
		out = append(out, USBDevice{SerialNumber: sn, Product: prod})
	}
	if len(out) == 0 && err != nil {
		return nil, err
	}
	return out, nil
}
