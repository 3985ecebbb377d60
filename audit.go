package dealerportal

import (
	"context"
	"io"
	"time"

	"github.com/askgroup/dealerportal/internal/audit"
)

// AuditEvent is one session lifecycle record.
type AuditEvent = audit.Event

// AuditSink receives audit events from the dispatcher goroutine.
type AuditSink = audit.Sink

type NoOpSink = audit.NoOpSink

type ChannelSink = audit.ChannelSink

type JSONWriterSink = audit.JSONWriterSink

// LogSink prints events through a *log.Logger.
type LogSink = audit.LogSink

const (
	AuditLogin           = audit.EventLogin
	AuditRegister        = audit.EventRegister
	AuditPasswordReset   = audit.EventPasswordReset
	AuditLogout          = audit.EventLogout
	AuditForcedLogout    = audit.EventForcedLogout
	AuditSessionRestored = audit.EventSessionRestored
	AuditSessionInvalid  = audit.EventSessionInvalid
	AuditOrderSubmitted  = audit.EventOrderSubmitted
)

func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *audit.Dispatcher {
	return audit.NewDispatcher(audit.Config{
		Enabled:      cfg.Enabled,
		BufferSize:   cfg.BufferSize,
		DropIfFull:   cfg.DropIfFull,
		CriticalWait: cfg.CriticalWait,
		Source:       cfg.Source,
	}, sink)
}

func emitAudit(ctx context.Context, sink AuditSink, eventType string, u *User, err error, metadata map[string]string) {
	if sink == nil {
		return
	}
	if d, ok := sink.(*audit.Dispatcher); ok && d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Success:   err == nil,
		Metadata:  metadata,
	}
	if u != nil {
		event.UserID = u.ID
		event.Email = u.Email
		event.Role = u.Role
	}
	if err != nil {
		event.Error = err.Error()
	}
	sink.Emit(ctx, event)
}
