package log

import (
	"testing"
	"time"
)

// captureLogger records events for assertions.
type captureLogger struct {
	events []Event
}

func (c *captureLogger) Log(event Event) {
	c.events = append(c.events, event)
}

func TestNoopLogger(t *testing.T) {
	// Must accept events without side effects, including as a zero value.
	var l NoopLogger
	l.Log(Event{Timestamp: time.Now(), ConnectionID: "x"})
}

func TestMultiLogger(t *testing.T) {
	a := &captureLogger{}
	b := &captureLogger{}
	m := NewMultiLogger(a, b)

	e := Event{ConnectionID: "conn", Category: CategoryState}
	m.Log(e)

	if len(a.events) != 1 || len(b.events) != 1 {
		t.Fatalf("expected one event in each logger, got %d and %d", len(a.events), len(b.events))
	}
	if a.events[0].ConnectionID != "conn" {
		t.Errorf("unexpected event: %+v", a.events[0])
	}
}

func TestMultiLoggerEmpty(t *testing.T) {
	// A MultiLogger with no targets is a valid no-op.
	NewMultiLogger().Log(Event{})
}
