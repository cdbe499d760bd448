package usbio

import (
	"github.com/google/gousb"
	usbhid "rafaelmartins.com/p/usbhid"
)

// HIDInfo describes one enumerated HID device for the -list diagnostic.
type HIDInfo struct {
	Path         string
	Vendor       uint16
	Product      uint16
	Manufacturer string
	Name         string
}

// ListHID enumerates the HID devices visible to this process so users can
// check whether the tablet's interfaces show up before binding.
func ListHID() ([]HIDInfo, error) {
	devs, err := usbhid.Enumerate(nil)
	if err != nil {
		return nil, err
	}
	out := make([]HIDInfo, 0, len(devs))
	for _, d := range devs {
		out = append(out, HIDInfo{
			Path:         d.Path(),
			Vendor:       d.VendorId(),
			Product:      d.ProductId(),
			Manufacturer: d.Manufacturer(),
			Name:         d.Product(),
		})
	}
	return out, nil
}

// IsTablet reports whether an enumerated device matches the tablet's ids.
func (i HIDInfo) IsTablet() bool {
	return gousb.ID(i.Vendor) == VendorID && gousb.ID(i.Product) == ProductID
}
