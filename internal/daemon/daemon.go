// Package daemon runs the bind → stream → teardown cycle for one tablet and
// retries it until stopped.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/seagrayinc/mini7-bridge/internal/sink"
	"github.com/seagrayinc/mini7-bridge/internal/stylus"
	"github.com/seagrayinc/mini7-bridge/internal/uinput"
	"github.com/seagrayinc/mini7-bridge/internal/usbio"
)

// ErrNoSinks reports a configuration with every output target disabled.
var ErrNoSinks = errors.New("no output targets configured")

// Tablet is the bound-device surface a serve session drives. *usbio.Device
// implements it.
type Tablet interface {
	Unlock(verbose bool) error
	DetachKernelDriver() (bool, error)
	AttachKernelDriver()
	Claim() error
	Release()
	ForceReset()
	ReadReport(timeout time.Duration) ([]byte, error)
	Close()
	Ugen() string
}

// Options is the resolved runtime configuration for one daemon instance.
type Options struct {
	Selector     string
	ScanInterval time.Duration
	ReadTimeout  time.Duration
	ForceDetach  bool
	SkipReset    bool
	Verbose      bool

	UinputEnabled bool
	UinputName    string
	EventMode     os.FileMode
	EventGroup    string

	SocketPath string
}

// Daemon owns the outer retry loop. The find and sink constructors are
// fields so tests can substitute fakes.
type Daemon struct {
	opts     Options
	wake     <-chan struct{}
	find     func(selector string) (Tablet, error)
	newSinks func(opts Options) ([]sink.Sink, error)
}

// New builds a daemon. wake may be nil; when set, a receive on it cuts the
// rescan backoff short.
func New(opts Options, wake <-chan struct{}) *Daemon {
	return &Daemon{
		opts:     opts,
		wake:     wake,
		find:     func(selector string) (Tablet, error) { return usbio.Find(selector) },
		newSinks: buildSinks,
	}
}

// Run executes the scan/serve cycle until ctx is cancelled. A configuration
// with nothing to consume samples is rejected before any device binding.
func (d *Daemon) Run(ctx context.Context) error {
	if !d.opts.UinputEnabled && d.opts.SocketPath == "" {
		return ErrNoSinks
	}
	for ctx.Err() == nil {
		tab, err := d.find(d.opts.Selector)
		if err != nil {
			if errors.Is(err, usbio.ErrNotFound) {
				slog.Debug("tablet not found; rescanning",
					slog.Duration("backoff", d.opts.ScanInterval))
			} else {
				slog.Warn("device scan failed", slog.Any("error", err))
			}
			d.sleep(ctx, d.opts.ScanInterval)
			continue
		}
		d.serve(ctx, tab)
		// brief pause before rebinding, matching a replug cycle
		d.sleep(ctx, time.Second)
	}
	return nil
}

// serve runs one session against a bound tablet. Teardown always executes in
// reverse acquisition order; its individual failures are logged, never
// escalated, and never block later steps.
func (d *Daemon) serve(ctx context.Context, tab Tablet) {
	slog.Info("binding tablet", slog.String("device", tab.Ugen()))
	var (
		detached bool
		sinks    []sink.Sink
	)
	defer func() {
		for i := len(sinks) - 1; i >= 0; i-- {
			if err := sinks[i].Close(); err != nil {
				slog.Warn("sink close failed", slog.Any("error", err))
			}
		}
		tab.Release()
		if detached {
			tab.AttachKernelDriver()
		}
		if !d.opts.SkipReset {
			tab.ForceReset()
		}
		tab.Close()
	}()

	if err := tab.Unlock(d.opts.Verbose); err != nil {
		slog.Warn("unlock failed", slog.Any("error", err))
		return
	}
	if d.opts.ForceDetach {
		var err error
		detached, err = tab.DetachKernelDriver()
		if err != nil {
			slog.Warn("kernel driver detach failed", slog.Any("error", err))
			return
		}
	}
	if err := tab.Claim(); err != nil {
		slog.Warn("claim failed", slog.Any("error", err))
		return
	}

	var err error
	sinks, err = d.newSinks(d.opts)
	if err != nil {
		slog.Warn("sink setup failed", slog.Any("error", err))
		return
	}

	if err := d.pump(ctx, tab, sinks); err != nil {
		slog.Warn("streaming ended; will rebind", slog.Any("error", err))
	}
}

// pump is the read → decode → forward loop. Empty reads are silent retries,
// rejected reports are dropped, and samples reach every sink in registration
// order. It returns on the first fatal transport or sink error, or when ctx
// is cancelled between reads so no frame is ever torn.
func (d *Daemon) pump(ctx context.Context, tab Tablet, sinks []sink.Sink) error {
	for ctx.Err() == nil {
		payload, err := tab.ReadReport(d.opts.ReadTimeout)
		if err != nil {
			return err
		}
		if len(payload) == 0 {
			continue
		}
		sample, ok := stylus.Decode(payload)
		if !ok {
			continue
		}
		for _, s := range sinks {
			if err := s.Forward(sample); err != nil {
				return fmt.Errorf("forward sample: %w", err)
			}
		}
	}
	return nil
}

func (d *Daemon) sleep(ctx context.Context, dur time.Duration) {
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	case <-d.wake:
	}
}

// buildSinks constructs the configured sinks, cleaning up behind itself on
// failure.
func buildSinks(opts Options) ([]sink.Sink, error) {
	var sinks []sink.Sink
	fail := func(err error) ([]sink.Sink, error) {
		for i := len(sinks) - 1; i >= 0; i-- {
			sinks[i].Close()
		}
		return nil, err
	}
	if opts.UinputEnabled {
		dev, err := uinput.Open(uinput.Config{
			Name:    opts.UinputName,
			Vendor:  uint16(usbio.VendorID),
			Product: uint16(usbio.ProductID),
		})
		if err != nil {
			return fail(fmt.Errorf("create uinput device: %w", err))
		}
		dev.ApplyPermissions(opts.EventMode, opts.EventGroup)
		if dev.Path() != "" {
			slog.Info("created event node", slog.String("path", dev.Path()))
		}
		sinks = append(sinks, sink.NewUinput(dev))
	}
	if opts.SocketPath != "" {
		s, err := sink.NewSocket(opts.SocketPath)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, s)
	}
	if len(sinks) == 0 {
		return nil, ErrNoSinks
	}
	return sinks, nil
}
