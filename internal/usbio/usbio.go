// Package usbio locates the tablet, runs the firmware unlock sequence, and
// streams raw stylus reports from the claimed vendor interface.
package usbio

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/google/gousb"
)

const (
	VendorID  gousb.ID = 0x28BD
	ProductID gousb.ID = 0x0928

	// StylusInterface carries the raw pen reports once unlocked.
	StylusInterface = 2
	stylusEndpoint  = 3 // IN endpoint 0x83
	readSize        = 64
)

// reportLengths holds the report descriptor length the firmware serves for
// each interface, indexed by interface number. The unlock sequence walks all
// of them in order.
var reportLengths = []int{18, 104, 110}

// ErrNotFound reports that no matching tablet is connected.
var ErrNotFound = errors.New("tablet not found")

// Device is one bound tablet. A single serve session owns it: Claim and
// Release bracket streaming, Close disposes the handle.
type Device struct {
	uctx *gousb.Context
	dev  *gousb.Device

	cfg  *gousb.Config
	intf *gousb.Interface
	ep   *gousb.InEndpoint

	bus, addr  int
	autoDetach bool
}

// Find locates the tablet by vendor/product id. A non-empty selector is a
// device path of the form "ugenB.A" restricting the match to one bus/address.
// Both an empty enumeration and a selector miss yield ErrNotFound.
func Find(selector string) (*Device, error) {
	var bus, addr int
	if selector != "" {
		var err error
		bus, addr, err = ParseUgen(selector)
		if err != nil {
			return nil, err
		}
	}
	uctx := gousb.NewContext()
	devs, err := uctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if desc.Vendor != VendorID || desc.Product != ProductID {
			return false
		}
		if selector == "" {
			return true
		}
		return desc.Bus == bus && desc.Address == addr
	})
	if err != nil {
		for _, d := range devs {
			d.Close()
		}
		uctx.Close()
		return nil, fmt.Errorf("usb enumerate: %w", err)
	}
	if len(devs) == 0 {
		uctx.Close()
		return nil, ErrNotFound
	}
	for _, d := range devs[1:] {
		d.Close()
	}
	dev := devs[0]
	return &Device{
		uctx: uctx,
		dev:  dev,
		bus:  dev.Desc.Bus,
		addr: dev.Desc.Address,
	}, nil
}

// ParseUgen splits a "ugenB.A" device path into bus and address.
func ParseUgen(s string) (bus, addr int, err error) {
	rest, ok := strings.CutPrefix(s, "ugen")
	if !ok {
		return 0, 0, fmt.Errorf("invalid ugen path %q", s)
	}
	busStr, addrStr, ok := strings.Cut(rest, ".")
	if !ok {
		return 0, 0, fmt.Errorf("invalid ugen path %q", s)
	}
	bus, err = strconv.Atoi(busStr)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid ugen bus in %q", s)
	}
	addr, err = strconv.Atoi(addrStr)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid ugen address in %q", s)
	}
	return bus, addr, nil
}

// Ugen returns the device's "ugenB.A" path.
func (d *Device) Ugen() string {
	return fmt.Sprintf("ugen%d.%d", d.bus, d.addr)
}

// Unlock runs the configuration + SET_IDLE + report-descriptor sequence the
// firmware requires before it streams stylus reports. The descriptors are
// only logged.
func (d *Device) Unlock(verbose bool) error {
	if err := d.ensureConfiguration(); err != nil {
		return err
	}
	for iface, length := range reportLengths {
		slog.Debug("set idle", slog.Int("interface", iface))
		if err := d.setIdle(iface); err != nil {
			return fmt.Errorf("set idle on interface %d: %w", iface, err)
		}
		desc, err := d.reportDescriptor(iface, length)
		if err != nil {
			return fmt.Errorf("report descriptor on interface %d: %w", iface, err)
		}
		if verbose {
			slog.Debug("report descriptor",
				slog.Int("interface", iface),
				slog.String("bytes", hex.EncodeToString(desc)))
		}
	}
	return nil
}

// ensureConfiguration activates configuration 1 if nothing has yet. Busy
// means another driver already configured the device, which counts as done.
func (d *Device) ensureConfiguration() error {
	if num, err := d.dev.ActiveConfigNum(); err == nil && num != 0 {
		return nil
	}
	if _, err := d.dev.Control(0x00, 0x09, 1, 0, nil); err != nil {
		if errors.Is(err, gousb.ErrorBusy) {
			return nil
		}
		return fmt.Errorf("set configuration: %w", err)
	}
	return nil
}

func (d *Device) setIdle(iface int) error {
	_, err := d.dev.Control(0x21, 0x0A, 0, uint16(iface), nil)
	return err
}

func (d *Device) reportDescriptor(iface, length int) ([]byte, error) {
	buf := make([]byte, length)
	n, err := d.dev.Control(0x81, 0x06, 0x2200, uint16(iface), buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// DetachKernelDriver arms libusb auto-detach so claiming the stylus interface
// evicts any kernel driver bound to it. Reports whether detach handling is
// now active; failure is fatal to the serve attempt.
func (d *Device) DetachKernelDriver() (bool, error) {
	if err := d.dev.SetAutoDetach(true); err != nil {
		return false, fmt.Errorf("detach kernel driver: %w", err)
	}
	d.autoDetach = true
	return true, nil
}

// AttachKernelDriver disarms auto-detach after the interface has been
// released; libusb performs the reattach itself at release time. Never fatal.
func (d *Device) AttachKernelDriver() {
	if !d.autoDetach {
		return
	}
	if err := d.dev.SetAutoDetach(false); err != nil {
		slog.Warn("could not reattach kernel driver", slog.Any("error", err))
	}
	d.autoDetach = false
}

// Claim takes the stylus interface and resolves its IN endpoint. Streaming
// must not start before Claim succeeds.
func (d *Device) Claim() error {
	num, err := d.dev.ActiveConfigNum()
	if err != nil {
		return fmt.Errorf("active configuration: %w", err)
	}
	cfg, err := d.dev.Config(num)
	if err != nil {
		return fmt.Errorf("claim configuration %d: %w", num, err)
	}
	intf, err := cfg.Interface(StylusInterface, 0)
	if err != nil {
		cfg.Close()
		return fmt.Errorf("claim interface %d: %w", StylusInterface, err)
	}
	ep, err := intf.InEndpoint(stylusEndpoint)
	if err != nil {
		intf.Close()
		cfg.Close()
		return fmt.Errorf("stylus endpoint: %w", err)
	}
	d.cfg, d.intf, d.ep = cfg, intf, ep
	return nil
}

// Release undoes Claim. Idempotent, and safe when Claim failed partway or was
// never made.
func (d *Device) Release() {
	if d.intf != nil {
		d.intf.Close()
		d.intf = nil
	}
	if d.cfg != nil {
		if err := d.cfg.Close(); err != nil {
			slog.Warn("release configuration failed", slog.Any("error", err))
		}
		d.cfg = nil
	}
	d.ep = nil
}

// ReadReport performs one bounded interrupt read from the stylus endpoint. A
// timed-out or cancelled transfer yields (nil, nil) so the caller just polls
// again; any other transport error is returned for the session to classify.
func (d *Device) ReadReport(timeout time.Duration) ([]byte, error) {
	if d.ep == nil {
		return nil, errors.New("stylus interface not claimed")
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	buf := make([]byte, readSize)
	n, err := d.ep.ReadContext(ctx, buf)
	if err != nil {
		if isTimeout(err) {
			return nil, nil
		}
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return buf[:n], nil
}

func isTimeout(err error) bool {
	return errors.Is(err, gousb.TransferTimedOut) ||
		errors.Is(err, gousb.TransferCancelled) ||
		errors.Is(err, gousb.ErrorTimeout) ||
		errors.Is(err, context.DeadlineExceeded)
}

// ForceReset shells out to usbconfig to push the stylus interface back to
// alternate setting 0. Interface state can stay wedged after an abnormal
// disconnect, and no in-process call reliably clears it. Never fatal.
func (d *Device) ForceReset() {
	path, err := exec.LookPath("usbconfig")
	if err != nil {
		slog.Warn("usbconfig not found; skipping interface reset")
		return
	}
	cmd := exec.Command(path, "-d", d.Ugen(), "-i", strconv.Itoa(StylusInterface), "set_alt", "0")
	out, err := cmd.CombinedOutput()
	if err != nil {
		slog.Warn("usbconfig set_alt failed",
			slog.Any("error", err),
			slog.String("output", strings.TrimSpace(string(out))))
		return
	}
	slog.Info("forced alternate setting 0",
		slog.String("device", d.Ugen()),
		slog.Int("interface", StylusInterface))
}

// Close releases any claimed interface and disposes the device handle and the
// usb context, each exactly once.
func (d *Device) Close() {
	d.Release()
	if d.dev != nil {
		if err := d.dev.Close(); err != nil {
			slog.Warn("close device failed", slog.Any("error", err))
		}
		d.dev = nil
	}
	if d.uctx != nil {
		if err := d.uctx.Close(); err != nil {
			slog.Warn("close usb context failed", slog.Any("error", err))
		}
		d.uctx = nil
	}
}
