package dispatcher

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scangate/scangate/pkg/output/events"
	"github.com/scangate/scangate/pkg/testutil"
)

func newEvent(t events.EventType) events.Event {
	return &events.PhaseEvent{BaseEvent: events.NewBase(t, "run-1")}
}

type mockWriter struct {
	mu        sync.Mutex
	supported []events.EventType
	written   []events.EventType
	flushed   int
	closed    int
	fail      error
}

func (w *mockWriter) Write(e events.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail != nil {
		return w.fail
	}
	w.written = append(w.written, e.EventType())
	return nil
}

func (w *mockWriter) Flush() error { w.flushed++; return nil }
func (w *mockWriter) Close() error { w.closed++; return nil }

func (w *mockWriter) SupportsEvent(t events.EventType) bool {
	if len(w.supported) == 0 {
		return true
	}
	for _, s := range w.supported {
		if s == t {
			return true
		}
	}
	return false
}

type mockHook struct {
	types    []events.EventType
	received []events.EventType
	fail     error
	shutdown int
}

func (h *mockHook) OnEvent(_ context.Context, e events.Event) error {
	h.received = append(h.received, e.EventType())
	return h.fail
}

func (h *mockHook) EventTypes() []events.EventType { return h.types }

func (h *mockHook) Shutdown(context.Context) error {
	h.shutdown++
	return nil
}

func TestDispatch_RoutesByType(t *testing.T) {
	d := New(Config{})
	all := &mockWriter{}
	verdictOnly := &mockWriter{supported: []events.EventType{events.EventTypeVerdict}}
	hook := &mockHook{types: []events.EventType{events.EventTypeScanStatus}}
	d.RegisterWriter(all)
	d.RegisterWriter(verdictOnly)
	d.RegisterHook(hook)

	for _, et := range []events.EventType{events.EventTypeStart, events.EventTypeScanStatus, events.EventTypeVerdict} {
		d.Dispatch(context.Background(), newEvent(et))
	}

	assert.Len(t, all.written, 3)
	assert.Equal(t, []events.EventType{events.EventTypeVerdict}, verdictOnly.written)
	assert.Equal(t, []events.EventType{events.EventTypeScanStatus}, hook.received)
}

func TestDispatch_FailuresDoNotStopOthers(t *testing.T) {
	d := New(Config{})
	bad := &mockWriter{fail: errors.New("disk full")}
	good := &mockWriter{}
	badHook := &mockHook{fail: errors.New("webhook down")}
	goodHook := &mockHook{}
	d.RegisterWriter(bad)
	d.RegisterWriter(good)
	d.RegisterHook(badHook)
	d.RegisterHook(goodHook)

	d.Dispatch(context.Background(), newEvent(events.EventTypeComplete))

	assert.Len(t, good.written, 1)
	assert.Len(t, badHook.received, 1)
	assert.Len(t, goodHook.received, 1)
}

func TestClose(t *testing.T) {
	d := New(Config{})
	w := &mockWriter{}
	h := &mockHook{}
	d.RegisterWriter(w)
	d.RegisterHook(h)

	require.NoError(t, d.Close(context.Background()))
	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, 1, w.flushed)
	assert.Equal(t, 1, w.closed)
	assert.Equal(t, 1, h.shutdown)

	d.Dispatch(context.Background(), newEvent(events.EventTypeComplete))
	assert.Empty(t, w.written, "events after Close are dropped")
	assert.Empty(t, h.received)
}

func TestFlush(t *testing.T) {
	d := New(Config{})
	w1, w2 := &mockWriter{}, &mockWriter{}
	d.RegisterWriter(w1)
	d.RegisterWriter(w2)

	require.NoError(t, d.Flush())
	assert.Equal(t, 1, w1.flushed)
	assert.Equal(t, 1, w2.flushed)
}

func TestDispatch_Concurrent(t *testing.T) {
	tracker := testutil.TrackGoroutines()
	d := New(Config{})
	w := &mockWriter{}
	d.RegisterWriter(w)

	testutil.RunConcurrently(20, func(int) {
		d.Dispatch(context.Background(), newEvent(events.EventTypeScanStatus))
	})
	assert.Len(t, w.written, 20)
	require.NoError(t, d.Close(context.Background()))
	tracker.CheckLeaks(t, 0)
}
