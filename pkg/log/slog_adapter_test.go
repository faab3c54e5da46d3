package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func newTestSlog() (*SlogAdapter, *bytes.Buffer) {
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return NewSlogAdapter(slog.New(h)), &buf
}

func TestSlogAdapterMessage(t *testing.T) {
	a, buf := newTestSlog()

	a.Log(Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-1",
		Direction:    DirectionOut,
		Layer:        LayerConn,
		Category:     CategoryMessage,
		Message:      &MessageEvent{Sequence: 5, Family: 0x10, Command: 3, Version: 2, Multipart: true},
	})

	out := buf.String()
	for _, want := range []string{"conn_id=conn-1", "direction=OUT", "seq=5", "family=16", "multipart=true"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSlogAdapterError(t *testing.T) {
	a, buf := newTestSlog()

	code := int32(-1)
	a.Log(Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-1",
		Direction:    DirectionIn,
		Layer:        LayerConn,
		Category:     CategoryError,
		Error:        &ErrorEventData{Sequence: 9, Message: "permission denied", Code: &code},
	})

	out := buf.String()
	for _, want := range []string{"category=ERROR", "seq=9", "errno=-1"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSlogAdapterStateChange(t *testing.T) {
	a, buf := newTestSlog()

	a.Log(Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-1",
		Layer:        LayerConn,
		Category:     CategoryState,
		StateChange:  &StateChangeEvent{OldState: "RUNNING", NewState: "CLOSED", Reason: "socket closed"},
	})

	out := buf.String()
	for _, want := range []string{"old_state=RUNNING", "new_state=CLOSED"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
