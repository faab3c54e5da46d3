// Package commands implements the genl-log CLI commands.
package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/genl-protocol/genl-go/pkg/log"
)

// FilterFlags holds the raw string flag values shared by the view and
// filter commands.
type FilterFlags struct {
	ConnID    string
	TimeStart string
	TimeEnd   string
	Layer     string
	Direction string
	Category  string
	Sequence  uint
}

// BuildFilter validates flag values and assembles a log.Filter.
func BuildFilter(flags FilterFlags) (log.Filter, error) {
	filter := log.Filter{ConnectionID: flags.ConnID}

	if flags.Layer != "" {
		l, err := parseLayer(flags.Layer)
		if err != nil {
			return filter, err
		}
		filter.Layer = &l
	}
	if flags.Direction != "" {
		d, err := parseDirection(flags.Direction)
		if err != nil {
			return filter, err
		}
		filter.Direction = &d
	}
	if flags.Category != "" {
		c, err := parseCategory(flags.Category)
		if err != nil {
			return filter, err
		}
		filter.Category = &c
	}
	if flags.Sequence != 0 {
		seq := uint32(flags.Sequence)
		filter.Sequence = &seq
	}
	if flags.TimeStart != "" {
		ts, err := time.Parse(time.RFC3339, flags.TimeStart)
		if err != nil {
			return filter, fmt.Errorf("invalid time-start: %w", err)
		}
		filter.TimeStart = &ts
	}
	if flags.TimeEnd != "" {
		ts, err := time.Parse(time.RFC3339, flags.TimeEnd)
		if err != nil {
			return filter, fmt.Errorf("invalid time-end: %w", err)
		}
		filter.TimeEnd = &ts
	}

	return filter, nil
}

func parseLayer(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "transport":
		return log.LayerTransport, nil
	case "conn":
		return log.LayerConn, nil
	case "family":
		return log.LayerFamily, nil
	default:
		return 0, fmt.Errorf("unknown layer %q (transport, conn, family)", s)
	}
}

func parseDirection(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("unknown direction %q (in, out)", s)
	}
}

func parseCategory(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "message":
		return log.CategoryMessage, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("unknown category %q (message, state, error)", s)
	}
}

// RunView prints every matching event in human-readable form.
func RunView(path string, filter log.Filter, w io.Writer) error {
	r, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return err
	}
	defer r.Close()

	count := 0
	for {
		event, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read event: %w", err)
		}
		formatEvent(w, event)
		count++
	}

	fmt.Fprintf(w, "%d events\n", count)
	return nil
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	connID := shortenConnID(event.ConnectionID)

	var typeLabel string
	switch {
	case event.Message != nil:
		typeLabel = "Message"
	case event.StateChange != nil:
		typeLabel = "State"
	case event.Error != nil:
		typeLabel = "Error"
	default:
		typeLabel = "Unknown"
	}

	fmt.Fprintf(w, "%s [conn:%s] %-3s %s %s\n",
		ts, connID, event.Direction.String(), event.Layer.String(), typeLabel)

	switch {
	case event.Message != nil:
		formatMessageDetails(w, event.Message)
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

func formatMessageDetails(w io.Writer, msg *log.MessageEvent) {
	fmt.Fprintf(w, "  Seq: %d  Family: %d  Cmd: %d  Version: %d\n",
		msg.Sequence, msg.Family, msg.Command, msg.Version)
	if msg.Flags != 0 {
		fmt.Fprintf(w, "  Flags: %#x", msg.Flags)
		if msg.Multipart {
			fmt.Fprint(w, " (multipart)")
		}
		fmt.Fprintln(w)
	}
	if msg.PayloadLen > 0 {
		fmt.Fprintf(w, "  Payload: %d bytes\n", msg.PayloadLen)
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
	if e.Sequence != 0 {
		fmt.Fprintf(w, "  Seq: %d\n", e.Sequence)
	}
	if e.Code != nil {
		fmt.Fprintf(w, "  Errno: %d\n", *e.Code)
	}
}
