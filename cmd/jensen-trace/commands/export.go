package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jensen-protocol/jensen-go/pkg/log"
)

// Export formats.
const (
	FormatJSONL = "jsonl"
	FormatCSV   = "csv"
)

// RunExport converts the trace file to the given format on w.
func RunExport(path, format string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("open trace file: %w", err)
	}
	defer reader.Close()

	switch format {
	case FormatJSONL:
		return exportJSONL(reader, w)
	case FormatCSV:
		return exportCSV(reader, w)
	default:
		return fmt.Errorf("unknown format %q (jsonl, csv)", format)
	}
}

// exportEvent is the JSON shape of one trace event, with the integer-key
// CBOR fields expanded to names.
type exportEvent struct {
	Timestamp    time.Time             `json:"timestamp"`
	ConnectionID string                `json:"connection_id"`
	Direction    string                `json:"direction"`
	Layer        string                `json:"layer"`
	Category     string                `json:"category"`
	Model        string                `json:"model,omitempty"`
	Serial       string                `json:"serial,omitempty"`
	Command      *log.CommandEvent     `json:"command,omitempty"`
	Packet       *log.PacketEvent      `json:"packet,omitempty"`
	StateChange  *log.StateChangeEvent `json:"state_change,omitempty"`
	Error        *log.ErrorEventData   `json:"error,omitempty"`
}

func exportJSONL(reader *log.Reader, w io.Writer) error {
	enc := json.NewEncoder(w)
	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read event: %w", err)
		}
		out := exportEvent{
			Timestamp:    event.Timestamp,
			ConnectionID: event.ConnectionID,
			Direction:    event.Direction.String(),
			Layer:        event.Layer.String(),
			Category:     event.Category.String(),
			Model:        event.Model,
			Serial:       event.Serial,
			Command:      event.Command,
			Packet:       event.Packet,
			StateChange:  event.StateChange,
			Error:        event.Error,
		}
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("encode event: %w", err)
		}
	}
}

func exportCSV(reader *log.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"timestamp", "connection_id", "direction", "layer", "category", "command", "sequence", "body_size", "matched"}
	if err := cw.Write(header); err != nil {
		return err
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			return cw.Error()
		}
		if err != nil {
			return fmt.Errorf("read event: %w", err)
		}

		row := []string{
			event.Timestamp.UTC().Format(time.RFC3339Nano),
			event.ConnectionID,
			event.Direction.String(),
			event.Layer.String(),
			event.Category.String(),
			"", "", "", "",
		}
		if event.Command != nil {
			row[5] = event.Command.CommandName
			row[6] = strconv.FormatUint(uint64(event.Command.Sequence), 10)
			row[7] = strconv.Itoa(event.Command.BodySize)
			if event.Command.Matched != nil {
				row[8] = strconv.FormatBool(*event.Command.Matched)
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
}
