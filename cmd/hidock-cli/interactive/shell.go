// Package interactive provides the interactive shell for hidock-cli.
package interactive

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/schollz/progressbar/v3"

	"github.com/jensen-protocol/jensen-go/pkg/device"
	"github.com/jensen-protocol/jensen-go/pkg/jensen"
)

// Shell handles interactive mode for hidock-cli.
type Shell struct {
	client *jensen.Client
	rl     *readline.Instance
}

// New creates an interactive shell over a connected client.
func New(client *jensen.Client) (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "hidock> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("create readline: %w", err)
	}
	return &Shell{client: client, rl: rl}, nil
}

// Run starts the command loop. It returns when the user exits or ctx is
// cancelled.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.rl.Close()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			s.printHelp()

		case "info", "i":
			s.cmdInfo()

		case "list", "ls", "l":
			s.cmdList()

		case "download", "dl":
			s.cmdDownload(ctx, args)

		case "delete", "rm":
			s.cmdDelete(args)

		case "time":
			s.cmdTime()

		case "sync-time":
			s.cmdSyncTime()

		case "settings":
			s.cmdSettings()

		case "set":
			s.cmdSet(args)

		case "card":
			s.cmdCard()

		case "format":
			s.cmdFormat(args)

		case "battery":
			s.cmdBattery()

		case "recording":
			s.cmdRecording()

		case "idle":
			s.cmdIdle(args)

		case "bt-status":
			s.cmdBTStatus()

		case "bt-scan":
			s.cmdBTScan()

		case "bt-paired":
			s.cmdBTPaired()

		case "bt-connect":
			s.cmdBTConnect(args)

		case "bt-disconnect":
			s.cmdBTDisconnect()

		case "storage":
			s.cmdStorage()

		case "quit", "exit", "q":
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Fprintf(s.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.rl.Stdout(), `
HiDock Commands:
  Files:
    list                - List recordings
    download <name>     - Download a recording
    delete <name>       - Delete a recording
    recording           - Show the file currently being recorded

  Device:
    info                - Show identity and capabilities
    time                - Show the device clock
    sync-time           - Set the device clock from the host
    settings            - Show settings
    set <name> on|off   - Change a setting (auto-record, auto-play, tone, notification)
    idle [seconds]      - Show or set the USB idle timeout

  Storage:
    card                - Show card usage
    format confirm      - Erase the card (irreversible)
    storage             - Reboot into USB mass-storage mode

  Bluetooth (H1E):
    bt-status           - Show dongle state
    bt-scan             - Scan for audio devices
    bt-paired           - List paired devices
    bt-connect <mac>    - Connect to a peer
    bt-disconnect       - Drop the audio connection

  General:
    battery             - Show battery state (P1)
    help                - Show this help
    quit                - Exit`)
}

func (s *Shell) cmdInfo() {
	identity := s.client.Identity()
	fmt.Fprintf(s.rl.Stdout(), "Model:    %s\n", identity.Model)
	fmt.Fprintf(s.rl.Stdout(), "Serial:   %s\n", identity.Serial)
	fmt.Fprintf(s.rl.Stdout(), "Firmware: %s\n", identity.Firmware)
	fmt.Fprintln(s.rl.Stdout(), FormatCapabilities(s.client.Capabilities()))
}

func (s *Shell) cmdList() {
	entries, err := s.client.Files().List()
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	PrintCatalog(s.rl.Stdout(), entries)
}

func (s *Shell) cmdDownload(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: download <name>")
		return
	}
	name := args[0]

	entries, err := s.client.Files().List()
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
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
		fmt.Fprintf(s.rl.Stdout(), "No such file: %s\n", name)
		return
	}

	out, err := os.Create(name)
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	defer out.Close()

	bar := progressbar.DefaultBytes(int64(size), name)
	n, err := s.client.Files().Download(ctx, name, size, io.MultiWriter(out, bar), nil)
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	if n < size {
		fmt.Fprintf(s.rl.Stdout(), "Warning: partial download, %d of %d bytes\n", n, size)
		return
	}
	fmt.Fprintf(s.rl.Stdout(), "Saved %s (%d bytes)\n", name, n)
}

func (s *Shell) cmdDelete(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: delete <name>")
		return
	}
	if err := s.client.Files().Delete(args[0]); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	fmt.Fprintln(s.rl.Stdout(), "Deleted", args[0])
}

func (s *Shell) cmdTime() {
	ts, ok, err := s.client.Clock().Get()
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	fmt.Fprintln(s.rl.Stdout(), "Device clock:", jensen.FormatTime(ts, ok))
}

func (s *Shell) cmdSyncTime() {
	now := time.Now()
	if err := s.client.Clock().Set(now); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	fmt.Fprintln(s.rl.Stdout(), "Device clock set to", now.Format("2006-01-02 15:04:05"))
}

func (s *Shell) cmdSettings() {
	settings, err := s.client.Settings().Get()
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	PrintSettings(s.rl.Stdout(), settings)
}

func (s *Shell) cmdSet(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: set <auto-record|auto-play|tone|notification> on|off")
		return
	}

	var on bool
	switch strings.ToLower(args[1]) {
	case "on", "true", "1":
		on = true
	case "off", "false", "0":
		on = false
	default:
		fmt.Fprintf(s.rl.Stdout(), "Invalid value %q, want on or off\n", args[1])
		return
	}

	var patch jensen.SettingsPatch
	switch strings.ToLower(args[0]) {
	case "auto-record":
		patch.AutoRecord = &on
	case "auto-play":
		patch.AutoPlay = &on
	case "tone":
		patch.ToneEnabled = &on
	case "notification":
		patch.Notification = &on
	default:
		fmt.Fprintf(s.rl.Stdout(), "Unknown setting %q\n", args[0])
		return
	}

	if err := s.client.Settings().Set(patch); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	fmt.Fprintln(s.rl.Stdout(), "OK")
}

func (s *Shell) cmdCard() {
	info, err := s.client.System().CardInfo()
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	PrintCardInfo(s.rl.Stdout(), info)
}

func (s *Shell) cmdFormat(args []string) {
	if len(args) < 1 || args[0] != "confirm" {
		fmt.Fprintln(s.rl.Stdout(), "Formatting erases every recording. Run 'format confirm' to proceed.")
		return
	}
	if err := s.client.System().FormatCard(); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	fmt.Fprintln(s.rl.Stdout(), "Card formatted")
}

func (s *Shell) cmdBattery() {
	status, err := s.client.System().Battery()
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	state := "discharging"
	if status.Charging {
		state = "charging"
	}
	fmt.Fprintf(s.rl.Stdout(), "Battery: %d%%  %.2fV (%s)\n", status.Level, float64(status.VoltageMV)/1000, state)
}

func (s *Shell) cmdRecording() {
	name, ok, err := s.client.System().RecordingFile()
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	if !ok {
		fmt.Fprintln(s.rl.Stdout(), "Not recording")
		return
	}
	fmt.Fprintln(s.rl.Stdout(), "Recording:", name)
}

func (s *Shell) cmdIdle(args []string) {
	if len(args) == 0 {
		d, err := s.client.System().USBIdleTimeout()
		if err != nil {
			fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
			return
		}
		fmt.Fprintf(s.rl.Stdout(), "USB idle timeout: %s\n", d)
		return
	}

	secs, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Invalid seconds: %v\n", err)
		return
	}
	if err := s.client.System().SetUSBIdleTimeout(time.Duration(secs) * time.Second); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	fmt.Fprintln(s.rl.Stdout(), "OK")
}

func (s *Shell) cmdBTStatus() {
	status, err := s.client.Bluetooth().Status()
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.rl.Stdout(), "State: %s\n", status.State)
	if status.HasPeerInfo {
		fmt.Fprintf(s.rl.Stdout(), "Peer:  %s (%s)\n", status.PeerName, status.PeerMAC)
		fmt.Fprintf(s.rl.Stdout(), "Profiles: a2dp=%v hfp=%v avrcp=%v\n", status.A2DP, status.HFP, status.AVRCP)
		fmt.Fprintf(s.rl.Stdout(), "Peer battery: %d%%\n", status.PeerBattery)
	}
}

func (s *Shell) cmdBTScan() {
	fmt.Fprintln(s.rl.Stdout(), "Scanning...")
	results, err := s.client.Bluetooth().Scan(jensen.DefaultScanWindow)
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	if len(results) == 0 {
		fmt.Fprintln(s.rl.Stdout(), "No devices found")
		return
	}
	for _, r := range results {
		tag := ""
		if r.IsAudio {
			tag = "  [audio]"
		}
		fmt.Fprintf(s.rl.Stdout(), "  %s  %-24s rssi %d%s\n", r.MAC, r.Name, r.RSSI, tag)
	}
}

func (s *Shell) cmdBTPaired() {
	devices, err := s.client.Bluetooth().PairedList()
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	if len(devices) == 0 {
		fmt.Fprintln(s.rl.Stdout(), "No paired devices")
		return
	}
	for _, d := range devices {
		fmt.Fprintf(s.rl.Stdout(), "  %d: %s  %s\n", d.Sequence, d.MAC, d.Name)
	}
}

func (s *Shell) cmdBTConnect(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: bt-connect <aa:bb:cc:dd:ee:ff>")
		return
	}
	mac, err := ParseMAC(args[0])
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	if err := s.client.Bluetooth().Connect(mac); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	fmt.Fprintln(s.rl.Stdout(), "Connecting to", mac)
}

func (s *Shell) cmdBTDisconnect() {
	if err := s.client.Bluetooth().Disconnect(); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	fmt.Fprintln(s.rl.Stdout(), "Disconnected")
}

func (s *Shell) cmdStorage() {
	if err := s.client.System().EnterMassStorage(); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	fmt.Fprintln(s.rl.Stdout(), "Device rebooting into mass-storage mode; this session is over.")
}

// ParseMAC parses a colon-separated Bluetooth address.
func ParseMAC(s string) (jensen.MACAddress, error) {
	var mac jensen.MACAddress
	parts := strings.Split(s, ":")
	if len(parts) != 6 {
		return mac, fmt.Errorf("invalid MAC %q", s)
	}
	for i, p := range parts {
		b, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return mac, fmt.Errorf("invalid MAC %q: %v", s, err)
		}
		mac[i] = byte(b)
	}
	return mac, nil
}

// FormatCapabilities renders the supported-feature list.
func FormatCapabilities(caps device.Capabilities) string {
	features := []device.Feature{
		device.FeatureBluetooth,
		device.FeatureBattery,
		device.FeatureToneUpdate,
		device.FeatureCodecUpdate,
		device.FeatureUSBIdleTimeout,
		device.FeatureMassStorage,
	}
	var b strings.Builder
	b.WriteString("Features:")
	for _, f := range features {
		if caps.Supports(f) {
			b.WriteString(" ")
			b.WriteString(f.String())
		}
	}
	return b.String()
}

// PrintCatalog renders a file listing.
func PrintCatalog(w io.Writer, entries []jensen.FileEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No recordings")
		return
	}
	var total uint32
	for _, e := range entries {
		created := ""
		if !e.CreatedAt.IsZero() {
			created = e.CreatedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%-32s %10d  %8s  %-9s %s\n",
			e.Name, e.Size, e.Duration.Round(time.Second), e.Mode, created)
		total += e.Size
	}
	fmt.Fprintf(w, "%d recordings, %d bytes\n", len(entries), total)
}

// PrintSettings renders the settings bitfield.
func PrintSettings(w io.Writer, s jensen.DeviceSettings) {
	onOff := func(b bool) string {
		if b {
			return "on"
		}
		return "off"
	}
	fmt.Fprintf(w, "auto-record:  %s\n", onOff(s.AutoRecord))
	fmt.Fprintf(w, "auto-play:    %s\n", onOff(s.AutoPlay))
	fmt.Fprintf(w, "tone:         %s\n", onOff(s.ToneEnabled))
	fmt.Fprintf(w, "notification: %s\n", onOff(s.Notification))
}

// PrintCardInfo renders storage usage.
func PrintCardInfo(w io.Writer, info jensen.CardInfo) {
	fmt.Fprintf(w, "Capacity: %d MB\n", info.CapacityMB)
	fmt.Fprintf(w, "Free:     %d MB", info.FreeMB)
	if info.CapacityMB > 0 {
		fmt.Fprintf(w, " (%.0f%%)", float64(info.FreeMB)/float64(info.CapacityMB)*100)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Status:   0x%08X\n", info.Status)
}
