package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/genl-protocol/genl-go/pkg/log"
)

// RunExport exports the log file to the specified format.
func RunExport(path, format, output string) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch format {
	case "jsonl":
		return exportJSONL(reader, w)
	case "csv":
		return exportCSV(reader, w)
	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}
}

// jsonEvent is the export shape of an event. CBOR integer keys do not
// survive a json.Marshal of log.Event, so the fields are flattened here.
type jsonEvent struct {
	Timestamp    string `json:"timestamp"`
	ConnectionID string `json:"connection_id"`
	Direction    string `json:"direction"`
	Layer        string `json:"layer"`
	Category     string `json:"category"`

	Sequence   *uint32 `json:"sequence,omitempty"`
	Family     *uint16 `json:"family,omitempty"`
	Command    *uint8  `json:"command,omitempty"`
	Version    *uint8  `json:"version,omitempty"`
	Multipart  bool    `json:"multipart,omitempty"`
	PayloadLen int     `json:"payload_len,omitempty"`

	OldState string `json:"old_state,omitempty"`
	NewState string `json:"new_state,omitempty"`
	Reason   string `json:"reason,omitempty"`

	Error string `json:"error,omitempty"`
	Errno *int32 `json:"errno,omitempty"`
}

func toJSONEvent(event log.Event) jsonEvent {
	out := jsonEvent{
		Timestamp:    event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
		ConnectionID: event.ConnectionID,
		Direction:    event.Direction.String(),
		Layer:        event.Layer.String(),
		Category:     event.Category.String(),
	}

	switch {
	case event.Message != nil:
		m := event.Message
		out.Sequence = &m.Sequence
		out.Family = &m.Family
		out.Command = &m.Command
		out.Version = &m.Version
		out.Multipart = m.Multipart
		out.PayloadLen = m.PayloadLen
	case event.StateChange != nil:
		out.OldState = event.StateChange.OldState
		out.NewState = event.StateChange.NewState
		out.Reason = event.StateChange.Reason
	case event.Error != nil:
		e := event.Error
		if e.Sequence != 0 {
			out.Sequence = &e.Sequence
		}
		out.Error = e.Message
		out.Errno = e.Code
	}

	return out
}

func exportJSONL(reader *log.Reader, w io.Writer) error {
	encoder := json.NewEncoder(w)
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := encoder.Encode(toJSONEvent(event)); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}
	return nil
}

func exportCSV(reader *log.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"timestamp", "connection_id", "direction", "layer", "category", "sequence", "family", "command", "detail"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		var seq, fam, cmd, detail string
		switch {
		case event.Message != nil:
			m := event.Message
			seq = strconv.FormatUint(uint64(m.Sequence), 10)
			fam = strconv.FormatUint(uint64(m.Family), 10)
			cmd = strconv.FormatUint(uint64(m.Command), 10)
			detail = fmt.Sprintf("%d bytes", m.PayloadLen)
		case event.StateChange != nil:
			detail = event.StateChange.NewState
		case event.Error != nil:
			if event.Error.Sequence != 0 {
				seq = strconv.FormatUint(uint64(event.Error.Sequence), 10)
			}
			detail = event.Error.Message
		}

		row := []string{
			event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
			event.ConnectionID,
			event.Direction.String(),
			event.Layer.String(),
			event.Category.String(),
			seq,
			fam,
			cmd,
			detail,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	return nil
}
