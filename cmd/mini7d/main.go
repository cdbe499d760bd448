// Command mini7d bridges an XP-Pen Deco Mini7 V2 tablet to a virtual pen
// device and, optionally, a local socket relay.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/seagrayinc/mini7-bridge/internal/config"
	"github.com/seagrayinc/mini7-bridge/internal/daemon"
	"github.com/seagrayinc/mini7-bridge/internal/devmon"
	"github.com/seagrayinc/mini7-bridge/internal/usbio"
)

const version = "0.3.1"

func main() {
	var (
		configPath   = flag.String("config", "", "path to a TOML config file")
		device       = flag.String("device", "", "bind a specific ugenX.Y device (default: scan)")
		scanInterval = flag.Int("scan-interval", 0, "milliseconds between scan attempts")
		timeout      = flag.Int("timeout", 0, "USB read timeout in milliseconds")
		noUinput     = flag.Bool("no-uinput", false, "disable the uinput bridge")
		socketPath   = flag.String("socket-path", "", "unix socket to forward samples to")
		eventMode    = flag.String("event-mode", "", "octal file mode for the created event node")
		eventGroup   = flag.String("event-group", "", "group owner for the created event node")
		forceDetach  = flag.Bool("force-detach", false, "detach the kernel driver from the stylus interface")
		skipReset    = flag.Bool("skip-reset", false, "skip the usbconfig set_alt recovery step")
		verbose      = flag.Bool("verbose", false, "enable debug logging")
		list         = flag.Bool("list", false, "list visible HID devices and exit")
		showVersion  = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("mini7d %s\n", version)
		return
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if *list {
		if err := listDevices(os.Stdout); err != nil {
			slog.Error("device listing failed", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			slog.Error("could not load config", slog.Any("error", err))
			os.Exit(1)
		}
		cfg = loaded
		slog.Info("loaded config", slog.String("path", *configPath))
	}

	// flags that were set on the command line win over the file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "device":
			cfg.Device.Ugen = *device
		case "scan-interval":
			cfg.Device.ScanIntervalMS = *scanInterval
		case "timeout":
			cfg.Device.ReadTimeoutMS = *timeout
		case "force-detach":
			cfg.Device.ForceDetach = *forceDetach
		case "skip-reset":
			cfg.Device.SkipReset = *skipReset
		case "no-uinput":
			cfg.Uinput.Enabled = !*noUinput
		case "event-mode":
			cfg.Uinput.Mode = *eventMode
		case "event-group":
			cfg.Uinput.Group = *eventGroup
		case "socket-path":
			cfg.Socket.Path = *socketPath
		}
	})

	mode, err := cfg.Uinput.FileMode()
	if err != nil {
		slog.Error("invalid event node mode", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mon := devmon.Watch("/dev", "ugen")
	defer mon.Stop()
	var wake <-chan struct{}
	if mon != nil {
		wake = mon.C
	}

	d := daemon.New(daemon.Options{
		Selector:      cfg.Device.Ugen,
		ScanInterval:  cfg.Device.ScanInterval(),
		ReadTimeout:   cfg.Device.ReadTimeout(),
		ForceDetach:   cfg.Device.ForceDetach,
		SkipReset:     cfg.Device.SkipReset,
		Verbose:       *verbose,
		UinputEnabled: cfg.Uinput.Enabled,
		UinputName:    cfg.Uinput.Name,
		EventMode:     mode,
		EventGroup:    cfg.Uinput.Group,
		SocketPath:    cfg.Socket.Path,
	}, wake)

	slog.Info("starting", slog.String("version", version))
	if err := d.Run(ctx); err != nil {
		slog.Error("daemon stopped", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("stopped")
}

func listDevices(w *os.File) error {
	infos, err := usbio.ListHID()
	if err != nil {
		return err
	}
	for _, info := range infos {
		marker := " "
		if info.IsTablet() {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %04x:%04x %-24s %s (%s)\n",
			marker, info.Vendor, info.Product, info.Name, info.Manufacturer, info.Path)
	}
	if len(infos) == 0 {
		fmt.Fprintln(w, "no HID devices visible")
	}
	return nil
}
