package uinput

import (
	"encoding/binary"
	"strings"
	"testing"
	"unsafe"

	"github.com/seagrayinc/mini7-bridge/internal/stylus"
)

// The kernel consumes these structs by pointer; a size drift means silent ABI
// corruption, so pin the layouts down.
func TestPackedStructSizes(t *testing.T) {
	tests := []struct {
		name string
		size uintptr
		want uintptr
	}{
		{"inputID", unsafe.Sizeof(inputID{}), 8},
		{"absInfo", unsafe.Sizeof(absInfo{}), 24},
		{"devSetup", unsafe.Sizeof(devSetup{}), 92},
		{"absSetup", unsafe.Sizeof(absSetup{}), 28},
		{"event", unsafe.Sizeof(Event{}), eventSize},
	}
	for _, tt := range tests {
		if tt.size != tt.want {
			t.Errorf("%s is %d bytes, want %d", tt.name, tt.size, tt.want)
		}
	}
}

func TestFitName(t *testing.T) {
	short := fitName("pen")
	if got := string(short[:3]); got != "pen" {
		t.Fatalf("name prefix %q", got)
	}
	if short[3] != 0 {
		t.Fatalf("short name not NUL padded")
	}

	long := fitName(strings.Repeat("x", 200))
	if long[maxNameSize-1] != 0 {
		t.Fatalf("long name overwrote the terminator byte")
	}
	for _, b := range long[:maxNameSize-1] {
		if b != 'x' {
			t.Fatalf("long name truncated short of %d bytes", maxNameSize-1)
		}
	}
}

func parseEvent(b []byte) Event {
	return Event{
		Sec:   int64(binary.LittleEndian.Uint64(b[0:8])),
		Usec:  int64(binary.LittleEndian.Uint64(b[8:16])),
		Type:  binary.LittleEndian.Uint16(b[16:18]),
		Code:  binary.LittleEndian.Uint16(b[18:20]),
		Value: int32(binary.LittleEndian.Uint32(b[20:24])),
	}
}

func TestEventBytesRoundTrip(t *testing.T) {
	ev := Event{Sec: 1700000000, Usec: 123456, Type: evAbs, Code: absTiltY, Value: -5}
	got := parseEvent(ev.bytes())
	if got != ev {
		t.Fatalf("round trip produced %+v, want %+v", got, ev)
	}
}

func TestSampleEventsRoundTrip(t *testing.T) {
	sample := stylus.Sample{
		Tip:      true,
		Barrel:   false,
		Eraser:   true,
		InRange:  true,
		Invert:   false,
		X:        0x1234,
		Y:        0x0FF0,
		Pressure: 0x3FFF,
		TiltX:    -42,
		TiltY:    17,
	}
	byCode := map[[2]uint16]int32{}
	for _, ev := range sampleEvents(sample) {
		byCode[[2]uint16{ev.Type, ev.Code}] = parseEvent(ev.bytes()).Value
	}

	checks := []struct {
		typ, code uint16
		want      int32
	}{
		{evAbs, absX, 0x1234},
		{evAbs, absY, 0x0FF0},
		{evAbs, absPressure, 0x3FFF},
		{evAbs, absTiltX, -42},
		{evAbs, absTiltY, 17},
		{evKey, btnTouch, 1},
		{evKey, btnStylus, 0},
		{evKey, btnStylus2, 1},
		{evKey, btnToolPen, 1},
		{evKey, btnToolRubber, 0},
	}
	for _, c := range checks {
		got, ok := byCode[[2]uint16{c.typ, c.code}]
		if !ok {
			t.Fatalf("no event for type %#x code %#x", c.typ, c.code)
		}
		if got != c.want {
			t.Fatalf("type %#x code %#x: value %d, want %d", c.typ, c.code, got, c.want)
		}
	}
}

func TestSampleEventsOrder(t *testing.T) {
	events := sampleEvents(stylus.Sample{})
	if len(events) != 10 {
		t.Fatalf("frame has %d events, want 10", len(events))
	}
	for i, ev := range events[:5] {
		if ev.Type != evAbs {
			t.Fatalf("event %d has type %#x, want axis events before key events", i, ev.Type)
		}
	}
	for i, ev := range events[5:] {
		if ev.Type != evKey {
			t.Fatalf("event %d has type %#x, want key events after axis events", i+5, ev.Type)
		}
	}
}

func TestToolDerivation(t *testing.T) {
	tests := []struct {
		inRange, invert bool
		pen, rubber     int32
	}{
		{false, false, 0, 0},
		{true, false, 1, 0},
		{true, true, 0, 1},
		{false, true, 0, 0},
	}
	for _, tt := range tests {
		var pen, rubber int32
		for _, ev := range sampleEvents(stylus.Sample{InRange: tt.inRange, Invert: tt.invert}) {
			switch {
			case ev.Type == evKey && ev.Code == btnToolPen:
				pen = ev.Value
			case ev.Type == evKey && ev.Code == btnToolRubber:
				rubber = ev.Value
			}
		}
		if pen != tt.pen || rubber != tt.rubber {
			t.Fatalf("in_range=%v invert=%v: pen=%d rubber=%d, want pen=%d rubber=%d",
				tt.inRange, tt.invert, pen, rubber, tt.pen, tt.rubber)
		}
	}
}
