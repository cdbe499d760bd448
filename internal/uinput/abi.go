// Package uinput creates and drives the virtual pen device through the
// kernel's user-level input subsystem.
package uinput

const (
	maxNameSize = 80
	busUSB      = 0x03

	devNode  = "/dev/uinput"
	inputDir = "/dev/input"
)

// The structs below are handed to the kernel by pointer, so their byte
// layout must match the uinput ABI exactly, padding included.

type inputID struct {
	BusType uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

type absInfo struct {
	Value      int32
	Minimum    int32
	Maximum    int32
	Fuzz       int32
	Flat       int32
	Resolution int32
}

type devSetup struct {
	ID           inputID
	Name         [maxNameSize]byte
	FFEffectsMax uint32
}

type absSetup struct {
	Code uint16
	_    [2]byte
	Info absInfo
}

// axes holds the calibration for the Deco Mini7 V2 active area. Each entry is
// registered and configured before the device-creation ioctl; the kernel
// ignores axis metadata set afterwards.
var axes = []struct {
	code       uint16
	min, max   int32
	resolution int32
}{
	{absX, 0, 0x4585, 5080},
	{absY, 0, 0x2B65, 5080},
	{absPressure, 0, 0x3FFF, 1},
	{absTiltX, -127, 127, 1},
	{absTiltY, -127, 127, 1},
}

var keys = []uint16{btnTouch, btnStylus, btnStylus2, btnToolPen, btnToolRubber}

// fitName truncates name to the ABI limit, leaving room for the terminating
// NUL the kernel expects.
func fitName(name string) [maxNameSize]byte {
	var fixed [maxNameSize]byte
	copy(fixed[:maxNameSize-1], name)
	return fixed
}
