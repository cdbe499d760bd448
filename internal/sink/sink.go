// Package sink fans decoded samples out to their consumers: the virtual pen
// device and, optionally, a local socket relay.
package sink

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"

	"github.com/seagrayinc/mini7-bridge/internal/stylus"
)

// Sink consumes decoded stylus samples. The session treats a returned error
// as fatal for the whole device, so sinks that can degrade on their own must
// swallow their failures instead of returning them.
type Sink interface {
	Forward(s stylus.Sample) error
	Close() error
}

// PenDevice is the part of the uinput device the sink drives.
type PenDevice interface {
	Emit(stylus.Sample) error
	Close() error
}

// Uinput relays samples to the virtual pen device. Emit failures propagate:
// a node that rejects writes is unusable and ends the session.
type Uinput struct {
	dev PenDevice
}

func NewUinput(dev PenDevice) *Uinput {
	return &Uinput{dev: dev}
}

func (u *Uinput) Forward(s stylus.Sample) error {
	return u.dev.Emit(s)
}

func (u *Uinput) Close() error {
	return u.dev.Close()
}

// Socket relays samples as newline-terminated JSON objects over a local
// stream socket. A write failure kills only this sink: the connection is
// closed, later forwards become no-ops, and no error ever escapes.
type Socket struct {
	path string
	conn net.Conn
}

// NewSocket connects once; a failure to connect is a setup error.
func NewSocket(path string) (*Socket, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", path, err)
	}
	return &Socket{path: path, conn: conn}, nil
}

func (s *Socket) Forward(sample stylus.Sample) error {
	if s.conn == nil {
		return nil
	}
	payload, err := json.Marshal(sample)
	if err != nil {
		slog.Error("sample encoding failed", slog.Any("error", err))
		return nil
	}
	if _, err := s.conn.Write(append(payload, '\n')); err != nil {
		slog.Error("socket send failed", slog.String("path", s.path), slog.Any("error", err))
		s.conn.Close()
		s.conn = nil
	}
	return nil
}

// Dead reports whether the sink has given up on its connection.
func (s *Socket) Dead() bool {
	return s.conn == nil
}

func (s *Socket) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
