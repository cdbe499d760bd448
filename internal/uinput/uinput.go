//go:build freebsd || linux

package uinput

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/seagrayinc/mini7-bridge/internal/stylus"
)

// Config identifies the virtual device to input consumers.
type Config struct {
	Name    string
	Vendor  uint16
	Product uint16
}

// Device is one created virtual pen node. It owns the control descriptor and,
// when the kernel answers the sysname query, the resolved event node path.
type Device struct {
	f       *os.File
	created bool
	path    string
}

// Open creates and configures a virtual pen device on the default control
// node. Events may be written only after Open returns successfully.
func Open(cfg Config) (*Device, error) {
	return OpenPath(devNode, cfg)
}

// OpenPath is Open against an explicit control node.
func OpenPath(path string, cfg Config) (*Device, error) {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	d := &Device{f: f}
	if err := d.configure(cfg); err != nil {
		d.Close()
		return nil, err
	}
	d.path = d.querySysPath()
	return d, nil
}

func (d *Device) configure(cfg Config) error {
	for _, class := range []int{evKey, evAbs} {
		if err := d.ioctlInt(uiSetEvBit, class); err != nil {
			return fmt.Errorf("register event class %#x: %w", class, err)
		}
	}
	for _, key := range keys {
		if err := d.ioctlInt(uiSetKeyBit, int(key)); err != nil {
			return fmt.Errorf("register key %#x: %w", key, err)
		}
	}
	for _, axis := range axes {
		if err := d.ioctlInt(uiSetAbsBit, int(axis.code)); err != nil {
			return fmt.Errorf("register axis %#x: %w", axis.code, err)
		}
	}
	// Axis calibration must land before the setup/create pair.
	for _, axis := range axes {
		setup := absSetup{
			Code: axis.code,
			Info: absInfo{
				Value:      axis.min,
				Minimum:    axis.min,
				Maximum:    axis.max,
				Resolution: axis.resolution,
			},
		}
		if err := d.ioctlPtr(uiAbsSetup, unsafe.Pointer(&setup)); err != nil {
			return fmt.Errorf("calibrate axis %#x: %w", axis.code, err)
		}
	}

	setup := devSetup{
		ID: inputID{
			BusType: busUSB,
			Vendor:  cfg.Vendor,
			Product: cfg.Product,
			Version: 0,
		},
		Name: fitName(cfg.Name),
	}
	if err := d.ioctlPtr(uiDevSetup, unsafe.Pointer(&setup)); err != nil {
		return fmt.Errorf("device setup: %w", err)
	}
	if err := d.ioctlInt(uiDevCreate, 0); err != nil {
		return fmt.Errorf("device create: %w", err)
	}
	d.created = true
	return nil
}

// querySysPath asks the kernel for the assigned event node name, growing the
// buffer until a size fits. An empty result is fine; it only means permission
// fixup gets skipped.
func (d *Device) querySysPath() string {
	for _, size := range []int{32, 64, 128} {
		buf := make([]byte, size)
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, d.f.Fd(), uiGetSysname(size), uintptr(unsafe.Pointer(&buf[0])))
		if errno != 0 {
			continue
		}
		if i := bytes.IndexByte(buf, 0); i >= 0 {
			buf = buf[:i]
		}
		if len(buf) > 0 {
			return filepath.Join(inputDir, string(buf))
		}
	}
	return ""
}

// Path returns the resolved event node path, or "" when the kernel did not
// report one.
func (d *Device) Path() string {
	return d.path
}

// ApplyPermissions sets the event node's mode and, when group is non-empty,
// its group ownership with the owner preserved. Every failure is logged and
// swallowed; the device stays usable by this process regardless.
func (d *Device) ApplyPermissions(mode os.FileMode, group string) {
	if d.path == "" {
		return
	}
	if _, err := os.Stat(d.path); err != nil {
		return
	}
	if err := os.Chmod(d.path, mode); err != nil {
		slog.Warn("could not chmod event node", slog.String("path", d.path), slog.Any("error", err))
	}
	if group == "" {
		return
	}
	g, err := user.LookupGroup(group)
	if err != nil {
		slog.Warn("event node group not found", slog.String("group", group))
		return
	}
	gid, err := strconv.Atoi(g.Gid)
	if err != nil {
		slog.Warn("unusable gid for group", slog.String("group", group), slog.String("gid", g.Gid))
		return
	}
	if err := os.Chown(d.path, -1, gid); err != nil {
		slog.Warn("could not chown event node", slog.String("path", d.path), slog.Any("error", err))
	}
}

// Emit replays one sample as its event frame: axes, keys, then the closing
// SYN_REPORT. Each event carries a timestamp sampled at write time.
func (d *Device) Emit(s stylus.Sample) error {
	events := append(sampleEvents(s), Event{Type: evSyn, Code: synReport})
	for _, ev := range events {
		now := time.Now()
		ev.Sec = now.Unix()
		ev.Usec = int64(now.Nanosecond() / 1000)
		if _, err := d.f.Write(ev.bytes()); err != nil {
			return fmt.Errorf("write event %#x/%#x: %w", ev.Type, ev.Code, err)
		}
	}
	return nil
}

// Close destroys the virtual device and closes the control descriptor, in
// that order. Safe on a partially-initialized instance; the descriptor is
// closed exactly once either way.
func (d *Device) Close() error {
	if d.f == nil {
		return nil
	}
	if d.created {
		if err := d.ioctlInt(uiDevDestroy, 0); err != nil {
			slog.Warn("device destroy failed", slog.Any("error", err))
		}
		d.created = false
	}
	err := d.f.Close()
	d.f = nil
	return err
}

func (d *Device) ioctlInt(req uintptr, val int) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, d.f.Fd(), req, uintptr(val))
	if errno != 0 {
		return errno
	}
	return nil
}

func (d *Device) ioctlPtr(req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, d.f.Fd(), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}
