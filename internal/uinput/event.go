package uinput

import (
	"encoding/binary"

	"github.com/seagrayinc/mini7-bridge/internal/stylus"
)

// Event class, key, and axis codes (input-event-codes.h).
const (
	evSyn = 0x00
	evKey = 0x01
	evAbs = 0x03

	synReport = 0x00

	btnToolPen    = 0x140
	btnToolRubber = 0x141
	btnTouch      = 0x14A
	btnStylus     = 0x14B
	btnStylus2    = 0x14C

	absX        = 0x00
	absY        = 0x01
	absPressure = 0x18
	absTiltX    = 0x1A
	absTiltY    = 0x1B
)

// Event mirrors the kernel input_event layout on 64-bit targets: two wide
// timestamp fields, class, code, and a signed 32-bit value.
type Event struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

const eventSize = 24

func (e Event) bytes() []byte {
	var b [eventSize]byte
	binary.LittleEndian.PutUint64(b[0:8], uint64(e.Sec))
	binary.LittleEndian.PutUint64(b[8:16], uint64(e.Usec))
	binary.LittleEndian.PutUint16(b[16:18], e.Type)
	binary.LittleEndian.PutUint16(b[18:20], e.Code)
	binary.LittleEndian.PutUint32(b[20:24], uint32(e.Value))
	return b[:]
}

// sampleEvents expands one decoded sample into the frame written to the
// node: the five absolute axes, then the five key states. The caller appends
// the SYN_REPORT that closes the frame; consumers must never see the sync
// before every event above it.
func sampleEvents(s stylus.Sample) []Event {
	return []Event{
		{Type: evAbs, Code: absX, Value: int32(s.X)},
		{Type: evAbs, Code: absY, Value: int32(s.Y)},
		{Type: evAbs, Code: absPressure, Value: int32(s.Pressure)},
		{Type: evAbs, Code: absTiltX, Value: int32(s.TiltX)},
		{Type: evAbs, Code: absTiltY, Value: int32(s.TiltY)},
		{Type: evKey, Code: btnTouch, Value: boolValue(s.Tip)},
		{Type: evKey, Code: btnStylus, Value: boolValue(s.Barrel)},
		{Type: evKey, Code: btnStylus2, Value: boolValue(s.Eraser)},
		{Type: evKey, Code: btnToolPen, Value: boolValue(s.InRange && !s.Invert)},
		{Type: evKey, Code: btnToolRubber, Value: boolValue(s.InRange && s.Invert)},
	}
}

func boolValue(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
