package goClone

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goClone/permission"
	"github.com/MrEthical07/goClone/selector"
	"github.com/MrEthical07/goClone/state"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

func (s *countingSink) Count() int64 {
	return s.count.Load()
}

type gateSink struct {
	gate chan struct{}
}

func newGateSink() *gateSink {
	return &gateSink{
		gate: make(chan struct{}),
	}
}

func (s *gateSink) Emit(context.Context, AuditEvent) {
	<-s.gate
}

type panicSink struct{}

func (panicSink) Emit(context.Context, AuditEvent) { panic("sink exploded") }

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Contains(s string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Contains(b.buf.String(), s)
}

func auditContract() *Contract {
	return MustContract("Audited",
		Func("set()", func(_ context.Context, st state.State, _ []byte) ([]byte, error) {
			state.SetUint64(st, "n", 1)
			return nil, nil
		}),
		Func("fail()", func(context.Context, state.State, []byte) ([]byte, error) {
			return nil, errors.New("rejected by implementation")
		}),
	)
}

func buildAuditTestFactory(t *testing.T, sink AuditSink) *Factory {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 32
	cfg.Audit.DropIfFull = false

	f, err := New().
		WithConfig(cfg).
		WithImplementation(auditContract()).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func nextEvent(t *testing.T, sink *ChannelSink) AuditEvent {
	t.Helper()
	select {
	case ev := <-sink.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for audit event")
		return AuditEvent{}
	}
}

func TestAuditDisabledNoSinkCalls(t *testing.T) {
	sink := &countingSink{}
	f, err := New().WithImplementation(auditContract()).WithAuditSink(sink).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	m, _ := permission.NewMask(256)
	if _, err := f.Clone(context.Background(), m); err != nil {
		t.Fatalf("clone: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if sink.Count() != 0 {
		t.Fatalf("expected no sink calls with audit disabled, got %d", sink.Count())
	}
}

func TestAuditFactoryLifecycleEvents(t *testing.T) {
	ctx := WithCaller(context.Background(), "tester")
	sink := NewChannelSink(32)
	f := buildAuditTestFactory(t, sink)

	ev := nextEvent(t, sink)
	if ev.EventType != EventFactoryInitialized || ev.Metadata["entry_points"] != "2" {
		t.Fatalf("unexpected init event %+v", ev)
	}

	m, _ := permission.MaskFromUint64(256, 0b01)
	proxy, err := f.Clone(ctx, m)
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	ev = nextEvent(t, sink)
	if ev.EventType != EventProxyCreated || ev.Proxy != proxy.Address().String() {
		t.Fatalf("expected proxy_created with address, got %+v", ev)
	}
	if ev.Factory != f.Address().String() || ev.Caller != "tester" || !ev.Success || ev.ID == "" {
		t.Fatalf("missing envelope fields: %+v", ev)
	}
	if ev.Mask != "0b1" {
		t.Fatalf("expected mask 0b1, got %q", ev.Mask)
	}

	if _, err := proxy.CallSignature(ctx, "fail()", nil); !errors.Is(err, ErrNoPermission) {
		t.Fatalf("expected denial, got %v", err)
	}
	ev = nextEvent(t, sink)
	if ev.EventType != EventCallDenied || ev.Success || ev.Error != string(auditErrNoPermission) || ev.EntryID != 2 {
		t.Fatalf("unexpected denial event %+v", ev)
	}

	all, _ := permission.MaskFromUint64(256, 0b11)
	if err := f.UpdateFeatureSet(ctx, proxy.Address(), all); err != nil {
		t.Fatalf("update: %v", err)
	}
	ev = nextEvent(t, sink)
	if ev.EventType != EventFeatureSetUpdated || ev.Mask != "0b11" {
		t.Fatalf("unexpected update event %+v", ev)
	}

	if _, err := proxy.CallSignature(ctx, "fail()", nil); !errors.Is(err, ErrForwardingFailure) {
		t.Fatalf("expected forwarding failure, got %v", err)
	}
	ev = nextEvent(t, sink)
	if ev.EventType != EventCallFailed || ev.Error != string(auditErrForwarding) || ev.Metadata["cause"] != "rejected by implementation" {
		t.Fatalf("unexpected failure event %+v", ev)
	}

	next := MustContract("AuditedV2", Func("set()", noopHandler), Func("extra()", noopHandler))
	if err := f.UpgradeImplementation(ctx, next, Selectors(next)); err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	ev = nextEvent(t, sink)
	if ev.EventType != EventImplementationUpgrade || ev.Implementation != next.Address().String() {
		t.Fatalf("unexpected upgrade event %+v", ev)
	}
	if ev.Metadata["registered"] != "1" || ev.Metadata["version"] != "2" {
		t.Fatalf("unexpected upgrade metadata %+v", ev.Metadata)
	}

	// Successful calls are not notified.
	if _, err := proxy.CallSignature(ctx, "set()", nil); err != nil {
		t.Fatalf("set: %v", err)
	}
	select {
	case ev := <-sink.Events():
		t.Fatalf("unexpected event for successful call: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func noopHandler(context.Context, state.State, []byte) ([]byte, error) { return nil, nil }

func TestAuditOwnerRejected(t *testing.T) {
	sink := NewChannelSink(32)
	cfg := DefaultConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = false

	f, err := New().
		WithConfig(cfg).
		WithImplementation(auditContract()).
		WithAuditSink(sink).
		WithOwnerAuthorizer(OwnerFunc(func(context.Context, Address, string) error {
			return errors.New("nope")
		})).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer f.Close()
	nextEvent(t, sink)

	c := auditContract()
	if err := f.UpgradeImplementation(context.Background(), c, Selectors(c)); !errors.Is(err, ErrOwnerUnauthorized) {
		t.Fatalf("expected ErrOwnerUnauthorized, got %v", err)
	}
	ev := nextEvent(t, sink)
	if ev.EventType != EventOwnerRejected || ev.Metadata["operation"] != OwnerOpUpgradeImplementation || ev.Error != string(auditErrOwner) {
		t.Fatalf("unexpected owner event %+v", ev)
	}
}

func TestAuditBufferFullDropIfFullTrueDoesNotBlock(t *testing.T) {
	sink := newGateSink()
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: true,
	}, sink, nil)
	defer func() {
		close(sink.gate)
		dispatcher.Close()
	}()

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e1"})
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e2"})

	start := time.Now()
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e3"})
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("expected non-blocking emit when DropIfFull is true")
	}
	if dispatcher.Dropped() == 0 {
		t.Fatal("expected dropped counter to increment when queue is full")
	}
}

func TestAuditBufferFullDropIfFullFalseBlocksUntilSpace(t *testing.T) {
	sink := newGateSink()
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: false,
	}, sink, nil)
	defer func() {
		close(sink.gate)
		dispatcher.Close()
	}()

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e1"})
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e2"})

	done := make(chan struct{})
	go func() {
		dispatcher.Emit(context.Background(), AuditEvent{EventType: "e3"})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("expected emit to block while buffer is full")
	case <-time.After(150 * time.Millisecond):
	}

	sink.gate <- struct{}{}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected blocked emit to proceed after space is available")
	}
}

func TestAuditBlockedEmitGivesUpWithContext(t *testing.T) {
	sink := newGateSink()
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 1,
	}, sink, nil)
	defer func() {
		close(sink.gate)
		dispatcher.Close()
	}()

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e1"})
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e2"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	dispatcher.Emit(ctx, AuditEvent{EventType: "e3"})
	if dispatcher.Dropped() != 1 {
		t.Fatalf("expected one dropped event, got %d", dispatcher.Dropped())
	}
}

func TestAuditSinkPanicDoesNotStopDispatcher(t *testing.T) {
	counting := &countingSink{}
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 4,
	}, MultiSink{counting, panicSink{}}, nil)

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e1"})
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e2"})
	dispatcher.Close()

	if counting.Count() != 2 {
		t.Fatalf("expected both events delivered before the panicking sink, got %d", counting.Count())
	}
}

func TestAuditJSONWriterSinkWritesJSONLines(t *testing.T) {
	var buf syncBuffer
	sink := NewJSONWriterSink(&buf)
	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: EventProxyCreated,
		Proxy:     "0x00000000000000000000000000000000000000aa",
		Selector:  selector.FromSignature("func12()").String(),
		Success:   true,
	}
	sink.Emit(context.Background(), event)

	if !buf.Contains("proxy_created") {
		t.Fatal("expected JSON log line to contain event type")
	}
	if !buf.Contains(`"proxy":"0x00000000000000000000000000000000000000aa"`) {
		t.Fatal("expected JSON log line to contain proxy address")
	}
}

func TestAuditDispatcherCloseIdempotentAndEmitAfterCloseSafe(t *testing.T) {
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 4,
		DropIfFull: true,
	}, &countingSink{}, nil)

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e1"})
	dispatcher.Close()
	dispatcher.Close()
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e2"})
	if dispatcher.Delivered() != 1 {
		t.Fatalf("expected 1 delivered event, got %d", dispatcher.Delivered())
	}
}

func TestAuditErrorCodes(t *testing.T) {
	tests := []struct {
		err  error
		want AuditErrorCode
	}{
		{nil, ""},
		{ErrNoPermission, auditErrNoPermission},
		{&ForwardingError{Err: errors.New("x")}, auditErrForwarding},
		{permission.ErrRegistryFull, auditErrRegistryFull},
		{storeError(state.ErrNotFound), auditErrProxyNotFound},
		{storeError(state.ErrConflict), auditErrUnavailable},
		{errors.New("other"), auditErrInternal},
	}
	for _, tt := range tests {
		if got := auditErrorCode(tt.err); got != tt.want {
			t.Fatalf("auditErrorCode(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
