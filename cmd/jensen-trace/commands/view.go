// Package commands implements the jensen-trace CLI commands.
package commands

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/jensen-protocol/jensen-go/pkg/log"
	"github.com/jensen-protocol/jensen-go/pkg/wire"
)

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	Layer     *log.Layer
	Direction *log.Direction
	Category  *log.Category
	CommandID *uint16
}

// RunView streams matching events from the trace file to w in
// human-readable form.
func RunView(path string, filter ViewFilter, w io.Writer) error {
	reader, err := log.NewFilteredReader(path, log.Filter{
		Layer:     filter.Layer,
		Direction: filter.Direction,
		Category:  filter.Category,
		CommandID: filter.CommandID,
	})
	if err != nil {
		return fmt.Errorf("open trace file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read event: %w", err)
		}
		formatEvent(w, event)
	}
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	connID := shortenConnID(event.ConnectionID)

	var typeLabel string
	switch {
	case event.Command != nil:
		typeLabel = event.Command.CommandName
	case event.Packet != nil:
		typeLabel = "Packet"
	case event.StateChange != nil:
		typeLabel = "State"
	case event.Error != nil:
		typeLabel = "Error"
	default:
		typeLabel = "Unknown"
	}

	fmt.Fprintf(w, "%s [conn:%s] %-3s %s %s\n", ts, connID, event.Direction, event.Layer, typeLabel)

	switch {
	case event.Command != nil:
		formatCommandDetails(w, event.Command)
	case event.Packet != nil:
		formatPacketDetails(w, event.Packet)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w)
}

// shortenConnID returns the first 8 characters of the connection ID.
func shortenConnID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatCommandDetails(w io.Writer, cmd *log.CommandEvent) {
	fmt.Fprintf(w, "  Command: 0x%04X  Seq: %d  Body: %d bytes\n", cmd.CommandID, cmd.Sequence, cmd.BodySize)
	if cmd.Matched != nil {
		if *cmd.Matched {
			fmt.Fprintln(w, "  Matched: yes")
		} else {
			fmt.Fprintln(w, "  Matched: no (discarded)")
		}
	}
}

func formatPacketDetails(w io.Writer, packet *log.PacketEvent) {
	fmt.Fprintf(w, "  Size: %d bytes\n", packet.Size)
	if len(packet.Data) > 0 {
		fmt.Fprintf(w, "  Data: %s", hex.EncodeToString(packet.Data))
		if packet.Truncated {
			fmt.Fprint(w, " (truncated)")
		}
		fmt.Fprintln(w)
	}
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatErrorDetails(w io.Writer, e *log.ErrorEventData) {
	fmt.Fprintf(w, "  Error: %s\n", e.Message)
	if e.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", e.Context)
	}
}

// ParseLayerFlag converts a -layer flag value.
func ParseLayerFlag(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "transport":
		return log.LayerTransport, nil
	case "wire":
		return log.LayerWire, nil
	case "session":
		return log.LayerSession, nil
	default:
		return 0, fmt.Errorf("unknown layer %q (transport, wire, session)", s)
	}
}

// ParseDirectionFlag converts a -direction flag value.
func ParseDirectionFlag(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("unknown direction %q (in, out)", s)
	}
}

// ParseCategoryFlag converts a -category flag value.
func ParseCategoryFlag(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "command":
		return log.CategoryCommand, nil
	case "keepalive":
		return log.CategoryKeepAlive, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("unknown category %q (command, keepalive, state, error)", s)
	}
}

// ParseCommandFlag converts a -command flag value: a symbolic name like
// GET_FILE_LIST or a numeric ID like 0x0004.
func ParseCommandFlag(s string) (uint16, error) {
	upper := strings.ToUpper(s)
	for id := wire.CommandID(0); id < 0x30; id++ {
		if id.Known() && id.String() == upper {
			return uint16(id), nil
		}
	}
	for _, id := range []wire.CommandID{
		wire.CmdBluetoothScanStart, wire.CmdBluetoothScanStop,
		wire.CmdBluetoothScanResults, wire.CmdBluetoothGetPairedList,
		wire.CmdBluetoothConnect, wire.CmdBluetoothDisconnect,
		wire.CmdBluetoothReconnect, wire.CmdBluetoothClearPaired,
		wire.CmdBluetoothGetStatus,
	} {
		if id.String() == upper {
			return uint16(id), nil
		}
	}

	var n uint16
	if _, err := fmt.Sscanf(s, "0x%x", &n); err == nil {
		return n, nil
	}
	if _, err := fmt.Sscanf(s, "%d", &n); err == nil {
		return n, nil
	}
	return 0, fmt.Errorf("unknown command %q", s)
}
