// Package stylus decodes the fixed-layout stylus reports the Deco Mini7 V2
// streams on its vendor interface once unlocked.
package stylus

import "encoding/binary"

const (
	// ReportID is the leading byte of every stylus report.
	ReportID = 0x07

	// MinReportLen is the shortest buffer that can carry a full report.
	MinReportLen = 10
)

// Status byte bit assignments. Bits outside these masks are ignored.
const (
	bitTip     = 0x01
	bitBarrel  = 0x02
	bitEraser  = 0x04
	bitInRange = 0x08
	bitInvert  = 0x20
)

// Sample is one decoded pen state. The json tags double as the wire names
// the socket forwarder emits, one object per line.
type Sample struct {
	Tip      bool   `json:"tip"`
	Barrel   bool   `json:"barrel"`
	Eraser   bool   `json:"eraser"`
	InRange  bool   `json:"in_range"`
	Invert   bool   `json:"invert"`
	X        uint16 `json:"x"`
	Y        uint16 `json:"y"`
	Pressure uint16 `json:"pressure"`
	TiltX    int8   `json:"tilt_x"`
	TiltY    int8   `json:"tilt_y"`
}

// Decode maps a raw report to a Sample. Buffers shorter than MinReportLen or
// with a different report id are rejected; everything else decodes. X and Y
// are deliberately not validated against the advertised axis ranges.
func Decode(payload []byte) (Sample, bool) {
	if len(payload) < MinReportLen || payload[0] != ReportID {
		return Sample{}, false
	}
	status := payload[1]
	return Sample{
		Tip:      status&bitTip != 0,
		Barrel:   status&bitBarrel != 0,
		Eraser:   status&bitEraser != 0,
		InRange:  status&bitInRange != 0,
		Invert:   status&bitInvert != 0,
		X:        binary.LittleEndian.Uint16(payload[2:4]),
		Y:        binary.LittleEndian.Uint16(payload[4:6]),
		Pressure: binary.LittleEndian.Uint16(payload[6:8]),
		TiltX:    int8(payload[8]),
		TiltY:    int8(payload[9]),
	}, true
}
