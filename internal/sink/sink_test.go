package sink

import (
	"bufio"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/seagrayinc/mini7-bridge/internal/stylus"
)

type fakePen struct {
	samples []stylus.Sample
	closed  bool
}

func (f *fakePen) Emit(s stylus.Sample) error {
	f.samples = append(f.samples, s)
	return nil
}

func (f *fakePen) Close() error {
	f.closed = true
	return nil
}

func listen(t *testing.T) (string, net.Listener) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relay.sock")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	return path, ln
}

func TestSocketForwardsJSONLines(t *testing.T) {
	path, ln := listen(t)

	s, err := NewSocket(path)
	if err != nil {
		t.Fatalf("NewSocket: %v", err)
	}
	defer s.Close()

	conn, err := ln.Accept()
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	defer conn.Close()

	sample := stylus.Sample{Tip: true, InRange: true, X: 100, Y: 200, Pressure: 512, TiltX: -3, TiltY: 9}
	if err := s.Forward(sample); err != nil {
		t.Fatalf("Forward: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		t.Fatalf("read line: %v", err)
	}
	var got stylus.Sample
	if err := json.Unmarshal(line, &got); err != nil {
		t.Fatalf("unmarshal %q: %v", line, err)
	}
	if got != sample {
		t.Fatalf("relayed %+v, want %+v", got, sample)
	}
}

func TestSocketWireFieldNames(t *testing.T) {
	path, ln := listen(t)

	s, err := NewSocket(path)
	if err != nil {
		t.Fatalf("NewSocket: %v", err)
	}
	defer s.Close()

	conn, err := ln.Accept()
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	defer conn.Close()

	if err := s.Forward(stylus.Sample{}); err != nil {
		t.Fatalf("Forward: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		t.Fatalf("read line: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(line, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, name := range []string{"tip", "barrel", "eraser", "in_range", "invert", "x", "y", "pressure", "tilt_x", "tilt_y"} {
		if _, ok := fields[name]; !ok {
			t.Fatalf("wire record is missing %q: %s", name, line)
		}
	}
}

func TestSocketConnectFailure(t *testing.T) {
	if _, err := NewSocket(filepath.Join(t.TempDir(), "missing.sock")); err == nil {
		t.Fatal("connecting to a missing socket must fail")
	}
}

func TestDeadSocketGoesQuiet(t *testing.T) {
	path, ln := listen(t)

	s, err := NewSocket(path)
	if err != nil {
		t.Fatalf("NewSocket: %v", err)
	}
	defer s.Close()

	conn, err := ln.Accept()
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	conn.Close()
	ln.Close()

	// The first write after the peer vanishes may still land in the socket
	// buffer; the sink must notice within a few forwards and never error.
	deadline := time.Now().Add(2 * time.Second)
	for !s.Dead() {
		if time.Now().After(deadline) {
			t.Fatal("sink never marked itself dead after peer close")
		}
		if err := s.Forward(stylus.Sample{Tip: true}); err != nil {
			t.Fatalf("dead sink returned error: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err := s.Forward(stylus.Sample{}); err != nil {
		t.Fatalf("forward on dead sink returned error: %v", err)
	}
}

func TestDeadSocketDoesNotBlockOthers(t *testing.T) {
	path, ln := listen(t)

	sock, err := NewSocket(path)
	if err != nil {
		t.Fatalf("NewSocket: %v", err)
	}
	defer sock.Close()

	conn, err := ln.Accept()
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	conn.Close()
	ln.Close()

	pen := &fakePen{}
	sinks := []Sink{sock, NewUinput(pen)}

	const n = 25
	for i := 0; i < n; i++ {
		for _, s := range sinks {
			if err := s.Forward(stylus.Sample{X: uint16(i)}); err != nil {
				t.Fatalf("forward %d: %v", i, err)
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	if len(pen.samples) != n {
		t.Fatalf("pen sink received %d samples, want %d", len(pen.samples), n)
	}
	if !sock.Dead() {
		t.Fatal("socket sink should have died")
	}
}

func TestUinputSinkPropagatesClose(t *testing.T) {
	pen := &fakePen{}
	u := NewUinput(pen)
	if err := u.Forward(stylus.Sample{Tip: true}); err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if err := u.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !pen.closed {
		t.Fatal("close did not reach the device")
	}
	if len(pen.samples) != 1 || !pen.samples[0].Tip {
		t.Fatalf("device saw %+v", pen.samples)
	}
}
