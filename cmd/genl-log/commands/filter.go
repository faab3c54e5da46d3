package commands

import (
	"fmt"
	"io"

	"github.com/genl-protocol/genl-go/pkg/log"
)

// RunFilter copies the events matching the filter into a new log file.
// The output stays in the CBOR log format so it can be fed back into any
// genl-log command.
func RunFilter(path, output string, filter log.Filter) error {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	out, err := log.NewFileLogger(output)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer out.Close()

	count := 0
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		out.Log(event)
		count++
	}

	fmt.Printf("Wrote %d events to %s\n", count, output)
	return nil
}
