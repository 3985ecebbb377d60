package audit

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"sync"
	"time"
)

// Event types emitted by the session store and checkout.
const (
	EventLogin           = "login"
	EventRegister        = "register"
	EventPasswordReset   = "password_reset"
	EventLogout          = "logout"
	EventForcedLogout    = "forced_logout"
	EventSessionRestored = "session_restored"
	EventSessionInvalid  = "session_invalid"
	EventOrderSubmitted  = "order_submitted"
)

// Event is one session lifecycle record.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	Source    string            `json:"source,omitempty"`
	UserID    string            `json:"user_id,omitempty"`
	Email     string            `json:"email,omitempty"`
	Role      string            `json:"role,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Critical reports whether e records a session ending or being refused.
// Critical events get the dispatcher's bounded wait instead of an
// immediate drop.
func (e Event) Critical() bool {
	switch e.EventType {
	case EventForcedLogout, EventSessionInvalid:
		return true
	case EventLogin:
		return !e.Success
	}
	return false
}

// Sink receives emitted audit events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops audit events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink writes audit events into a buffered channel.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan Event, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.writer.Write(data)
}

// LogSink prints a one-line summary of each event.
type LogSink struct {
	Logger *log.Logger
}

func (s LogSink) Emit(_ context.Context, event Event) {
	logger := s.Logger
	if logger == nil {
		logger = log.Default()
	}
	outcome := "ok"
	if !event.Success {
		outcome = "failed"
	}
	if event.Error != "" {
		logger.Printf("audit: %s %s user=%s error=%q", event.EventType, outcome, event.UserID, event.Error)
		return
	}
	logger.Printf("audit: %s %s user=%s", event.EventType, outcome, event.UserID)
}
