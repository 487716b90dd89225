// Command hidock-cli manages HiDock voice recorders over USB.
//
// It speaks the Jensen protocol directly: device identity, file catalog
// and downloads, clock sync, settings, storage and Bluetooth control,
// plus an interactive shell.
//
// Usage:
//
//	hidock-cli [flags] <command> [args]
//
// Commands:
//
//	devices              List attached recorders
//	info                 Show device identity and capabilities
//	list                 List recordings on the device
//	download <name>      Download a recording to the current directory
//	delete <name>        Delete a recording
//	time                 Show the device clock
//	sync-time            Set the device clock from the host
//	settings             Show device settings
//	card                 Show storage card usage
//	shell                Interactive shell
//
// Flags:
//
//	-config string    YAML configuration file
//	-trace string     Write a protocol trace file
//	-device string    Pin a device as bus:address
//	-timeout duration Per-command timeout
//	-safe             Block all mutating commands at the transport
//
// Examples:
//
//	# Download with a trace for later analysis
//	hidock-cli -trace session.jtrace download 20250512093045-Rec01.hda
//
//	# Inspect an unknown device without any risk of writes
//	hidock-cli -safe shell
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/jensen-protocol/jensen-go/cmd/hidock-cli/interactive"
	"github.com/jensen-protocol/jensen-go/pkg/discovery"
	"github.com/jensen-protocol/jensen-go/pkg/jensen"
	"github.com/jensen-protocol/jensen-go/pkg/log"
	"github.com/jensen-protocol/jensen-go/pkg/transport"
)

const usage = `hidock-cli - HiDock recorder manager

Usage:
  hidock-cli [flags] <command> [args]

Commands:
  devices              List attached recorders
  info                 Show device identity and capabilities
  list                 List recordings on the device
  download <name>      Download a recording to the current directory
  delete <name>        Delete a recording
  time                 Show the device clock
  sync-time            Set the device clock from the host
  settings             Show device settings
  card                 Show storage card usage
  shell                Interactive shell

Flags:
`

func main() {
	fs := flag.NewFlagSet("hidock-cli", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fs.PrintDefaults()
	}

	configPath := fs.String("config", "", "YAML configuration file")
	tracePath := fs.String("trace", "", "Write a protocol trace file")
	devicePin := fs.String("device", "", "Pin a device as bus:address")
	timeout := fs.Duration("timeout", 0, "Per-command timeout")
	safe := fs.Bool("safe", false, "Block all mutating commands")

	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fs.Usage()
		os.Exit(1)
	}

	cfg, err := LoadConfig(*configPath)
	fatalOn(err)

	// Flags override the config file.
	if *tracePath != "" {
		cfg.Trace = *tracePath
	}
	if *devicePin != "" {
		cfg.Device = *devicePin
	}
	if *timeout != 0 {
		cfg.Timeout = *timeout
	}
	if *safe {
		cfg.Safe = true
	}

	cmd := fs.Arg(0)
	args := fs.Args()[1:]

	if cmd == "devices" {
		fatalOn(runDevices())
		return
	}

	client, teardown, err := openSession(cfg)
	fatalOn(err)
	defer teardown()

	switch cmd {
	case "info":
		err = runInfo(client)
	case "list":
		err = runList(client)
	case "download":
		err = runDownload(client, args)
	case "delete":
		err = runDelete(client, args)
	case "time":
		err = runTime(client)
	case "sync-time":
		err = runSyncTime(client)
	case "settings":
		err = runSettings(client)
	case "card":
		err = runCard(client)
	case "shell":
		err = runShell(client)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fs.Usage()
		os.Exit(1)
	}
	fatalOn(err)
}

// openSession finds a device, builds the transport stack, and connects.
func openSession(cfg Config) (*jensen.Client, func(), error) {
	handles, err := discovery.Find()
	if err != nil {
		return nil, nil, err
	}
	if len(handles) == 0 {
		return nil, nil, fmt.Errorf("no HiDock device found")
	}

	handle, err := pickDevice(handles, cfg.Device)
	if err != nil {
		return nil, nil, err
	}

	var t transport.Transport = transport.NewUSBTransport(transport.USBConfig{
		VendorID:  handle.VendorID,
		ProductID: handle.ProductID,
		Bus:       handle.Bus,
		Address:   handle.Address,
	})
	if cfg.Safe {
		t = transport.NewSafeTransport(t)
	}

	var logger log.Logger
	var traceFile *log.FileLogger
	if cfg.Trace != "" {
		traceFile, err = log.NewFileLogger(cfg.Trace)
		if err != nil {
			return nil, nil, err
		}
		logger = traceFile
	}

	client := jensen.NewClient(t, jensen.ClientConfig{
		Model:          handle.Model,
		CommandTimeout: cfg.Timeout,
		Logger:         logger,
		KeepAlive: jensen.KeepAliveConfig{
			Interval: cfg.KeepAliveInterval,
			Disabled: cfg.NoKeepAlive,
		},
	})

	identity, err := client.Connect()
	if err != nil {
		if traceFile != nil {
			traceFile.Close()
		}
		return nil, nil, fmt.Errorf("connect %s: %w", handle, err)
	}
	fmt.Fprintf(os.Stderr, "Connected: %s %s (firmware %s)\n", identity.Model, identity.Serial, identity.Firmware)

	teardown := func() {
		client.Disconnect()
		if traceFile != nil {
			traceFile.Close()
		}
	}
	return client, teardown, nil
}

// pickDevice selects one handle, honoring a bus:address pin.
func pickDevice(handles []discovery.DeviceHandle, pin string) (discovery.DeviceHandle, error) {
	if pin == "" {
		return handles[0], nil
	}

	parts := strings.SplitN(pin, ":", 2)
	if len(parts) != 2 {
		return discovery.DeviceHandle{}, fmt.Errorf("invalid -device %q, want bus:address", pin)
	}
	bus, err1 := strconv.Atoi(parts[0])
	addr, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return discovery.DeviceHandle{}, fmt.Errorf("invalid -device %q, want bus:address", pin)
	}

	for _, h := range handles {
		if h.Bus == bus && h.Address == addr {
			return h, nil
		}
	}
	return discovery.DeviceHandle{}, fmt.Errorf("no device at bus %d address %d", bus, addr)
}

func runDevices() error {
	handles, err := discovery.Find()
	if err != nil {
		return err
	}
	if len(handles) == 0 {
		fmt.Println("No recorders attached")
		return nil
	}
	for _, h := range handles {
		fmt.Printf("%-4s bus %d  address %d  (pid 0x%04X)\n", h.Model, h.Bus, h.Address, h.ProductID)
	}
	return nil
}

func runInfo(c *jensen.Client) error {
	identity := c.Identity()
	fmt.Printf("Model:    %s\n", identity.Model)
	fmt.Printf("Serial:   %s\n", identity.Serial)
	fmt.Printf("Firmware: %s\n", identity.Firmware)
	fmt.Println(interactive.FormatCapabilities(c.Capabilities()))
	return nil
}

func runList(c *jensen.Client) error {
	entries, err := c.Files().List()
	if err != nil {
		return err
	}
	interactive.PrintCatalog(os.Stdout, entries)
	return nil
}

func runDownload(c *jensen.Client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: download <name>")
	}
	name := args[0]

	entries, err := c.Files().List()
	if err != nil {
		return fmt.Errorf("list files: %w", err)
	}
	var size uint32
	found := false
	for _, e := range entries {
		if e.Name == name {
			size = e.Size
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("no such file: %s", name)
	}

	out, err := os.Create(name)
	if err != nil {
		return err
	}
	defer out.Close()

	bar := progressbar.DefaultBytes(int64(size), name)
	n, err := c.Files().Download(context.Background(), name, size, io.MultiWriter(out, bar), nil)
	if err != nil {
		return err
	}
	if n < size {
		fmt.Fprintf(os.Stderr, "\nWarning: partial download, %d of %d bytes\n", n, size)
	}
	return nil
}

func runDelete(c *jensen.Client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: delete <name>")
	}
	if err := c.Files().Delete(args[0]); err != nil {
		return err
	}
	fmt.Println("Deleted", args[0])
	return nil
}

func runTime(c *jensen.Client) error {
	ts, ok, err := c.Clock().Get()
	if err != nil {
		return err
	}
	fmt.Println("Device clock:", jensen.FormatTime(ts, ok))
	return nil
}

func runSyncTime(c *jensen.Client) error {
	now := time.Now()
	if err := c.Clock().Set(now); err != nil {
		return err
	}
	fmt.Println("Device clock set to", now.Format("2006-01-02 15:04:05"))
	return nil
}

func runSettings(c *jensen.Client) error {
	s, err := c.Settings().Get()
	if err != nil {
		return err
	}
	interactive.PrintSettings(os.Stdout, s)
	return nil
}

func runCard(c *jensen.Client) error {
	info, err := c.System().CardInfo()
	if err != nil {
		return err
	}
	interactive.PrintCardInfo(os.Stdout, info)
	return nil
}

func runShell(c *jensen.Client) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	shell, err := interactive.New(c)
	if err != nil {
		return err
	}
	shell.Run(ctx, cancel)
	return nil
}

func fatalOn(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
