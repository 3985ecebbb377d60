package dealerportal

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/askgroup/dealerportal/api"
	"github.com/askgroup/dealerportal/internal/apitest"
	"github.com/askgroup/dealerportal/storage"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// drain collects what the dispatcher delivered. Close flushes the queue.
func drain(p *Portal, sink *ChannelSink) []AuditEvent {
	_ = p.Close()
	var events []AuditEvent
	for len(sink.Events()) > 0 {
		events = append(events, <-sink.Events())
	}
	return events
}

func TestAuditDisabledNoSinkCalls(t *testing.T) {
	fake := apitest.Start(t)
	fake.AddUser("a@b.com", testPassword, api.RoleBuyer)

	sink := &countingSink{}
	p := newTestPortal(t, fake, func(b *Builder) {
		b.WithAuditSink(sink)
		cfg := b.config
		cfg.Audit.Enabled = false
		b.WithConfig(cfg)
	})

	_, _ = p.Session().Login(context.Background(), "a@b.com", "wrong-password")
	_ = p.Close()

	if n := sink.count.Load(); n != 0 {
		t.Fatalf("expected no sink calls when disabled, got %d", n)
	}
}

func TestAuditLoginEventsCarryUser(t *testing.T) {
	fake := apitest.Start(t)
	u := fake.AddUser("a@b.com", testPassword, api.RoleBuyer)

	sink := NewChannelSink(16)
	p := newTestPortal(t, fake, func(b *Builder) { b.WithAuditSink(sink) })
	ctx := context.Background()

	_, _ = p.Session().Login(ctx, "a@b.com", "wrong-password")
	if _, err := p.Session().Login(ctx, "a@b.com", testPassword); err != nil {
		t.Fatal(err)
	}
	p.Session().Logout(ctx)

	events := drain(p, sink)
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %+v", events)
	}

	failed, ok, out := events[0], events[1], events[2]
	if failed.EventType != AuditLogin || failed.Success || failed.Error == "" || failed.Email != "a@b.com" {
		t.Fatalf("unexpected failed login event %+v", failed)
	}
	if ok.EventType != AuditLogin || !ok.Success || ok.UserID != u.UserID || ok.Role != api.RoleBuyer {
		t.Fatalf("unexpected login event %+v", ok)
	}
	if out.EventType != AuditLogout || out.UserID != u.UserID {
		t.Fatalf("unexpected logout event %+v", out)
	}
	for _, ev := range events {
		if ev.Timestamp.IsZero() {
			t.Fatal("expected timestamp")
		}
	}
}

func TestAuditRestoreOutcomes(t *testing.T) {
	fake := apitest.Start(t)
	u := fake.AddUser("a@b.com", testPassword, api.RoleBuyer)
	ctx := context.Background()

	st := storage.NewMemoryStorage()
	_ = st.Set(ctx, storage.TokenKey, fake.Token(u.UserID))
	sink := NewChannelSink(4)
	p := newTestPortal(t, fake, func(b *Builder) { b.WithStorage(st).WithAuditSink(sink) })
	if events := drain(p, sink); len(events) != 1 || events[0].EventType != AuditSessionRestored || events[0].UserID != u.UserID {
		t.Fatalf("expected session_restored, got %+v", events)
	}

	_ = st.Set(ctx, storage.TokenKey, fake.ExpiredToken(u.UserID))
	sink = NewChannelSink(4)
	p = newTestPortal(t, fake, func(b *Builder) { b.WithStorage(st).WithAuditSink(sink) })
	events := drain(p, sink)
	if len(events) != 1 || events[0].EventType != AuditSessionInvalid || events[0].Success {
		t.Fatalf("expected session_invalid, got %+v", events)
	}
}

func TestAuditNoSecretsInEvents(t *testing.T) {
	fake := apitest.Start(t)
	u := fake.AddUser("a@b.com", testPassword, api.RoleBuyer)

	var buf syncBuffer
	p := newTestPortal(t, fake, func(b *Builder) { b.WithAuditSink(NewJSONWriterSink(&buf)) })
	ctx := context.Background()

	_, _ = p.Session().Login(ctx, "a@b.com", "not-"+testPassword)
	if _, err := p.Session().Login(ctx, "a@b.com", testPassword); err != nil {
		t.Fatal(err)
	}
	token := p.Session().Token()
	if err := p.Session().ResetPassword(ctx, "a@b.com", "brand-new-secret", "brand-new-secret"); err != nil {
		t.Fatal(err)
	}
	_ = p.Close()

	out := buf.String()
	if !strings.Contains(out, `"user_id":"`+u.UserID+`"`) {
		t.Fatalf("expected JSON lines with user id, got %q", out)
	}
	if got := strings.Count(out, "\n"); got != 3 {
		t.Fatalf("expected 3 JSON lines, got %d", got)
	}
	for _, needle := range []string{testPassword, "brand-new-secret", token} {
		if strings.Contains(out, needle) {
			t.Fatalf("sensitive value leaked into audit log: %q", needle)
		}
	}
}

func TestEmitAuditToleratesNilDispatcher(t *testing.T) {
	d := newAuditDispatcher(AuditConfig{Enabled: false}, nil)
	var noCtx context.Context

	done := make(chan struct{})
	go func() {
		emitAudit(noCtx, d, AuditLogout, nil, nil, nil)
		emitAudit(context.Background(), nil, AuditLogout, nil, nil, nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("emitAudit blocked")
	}
}

func TestAuditEventsCarrySource(t *testing.T) {
	fake := apitest.Start(t)
	fake.AddUser("a@b.com", testPassword, api.RoleBuyer)

	sink := NewChannelSink(4)
	p := newTestPortal(t, fake, func(b *Builder) {
		b.WithAuditSink(sink)
		cfg := b.config
		cfg.Audit.Source = "shop-a"
		b.WithConfig(cfg)
	})
	if _, err := p.Session().Login(context.Background(), "a@b.com", testPassword); err != nil {
		t.Fatal(err)
	}

	events := drain(p, sink)
	if len(events) != 1 || events[0].Source != "shop-a" {
		t.Fatalf("expected sourced login event, got %+v", events)
	}
	if p.AuditDroppedByType() == nil || len(p.AuditDroppedByType()) != 0 {
		t.Fatalf("expected empty drop breakdown, got %v", p.AuditDroppedByType())
	}
}
