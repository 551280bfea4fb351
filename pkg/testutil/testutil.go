// Package testutil holds fault-injection and concurrency helpers shared by
// the scangate tests.
package testutil

import (
	"errors"
	"runtime"
	"sync"
	"testing"
	"time"
)

// ErrFault is returned by every injected failure.
var ErrFault = errors.New("injected fault")

// FailingWriter accepts Limit bytes and then fails, like a full disk.
// A zero Limit fails the first Write.
type FailingWriter struct {
	written int
	Limit   int
}

func (w *FailingWriter) Write(p []byte) (int, error) {
	if w.written+len(p) <= w.Limit {
		w.written += len(p)
		return len(p), nil
	}
	n := w.Limit - w.written
	w.written = w.Limit
	return n, ErrFault
}

// FailingWriteCloser keeps everything written and fails on Close.
type FailingWriteCloser struct {
	mu       sync.Mutex
	buf      []byte
	CloseErr error
}

func NewFailingWriteCloser() *FailingWriteCloser {
	return &FailingWriteCloser{CloseErr: ErrFault}
}

func (w *FailingWriteCloser) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, p...)
	return len(p), nil
}

func (w *FailingWriteCloser) Close() error { return w.CloseErr }

// String returns what was written so far.
func (w *FailingWriteCloser) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return string(w.buf)
}

// GoroutineTracker detects goroutines left running by a test.
type GoroutineTracker struct {
	before int
}

// TrackGoroutines snapshots the goroutine count. Call CheckLeaks after.
func TrackGoroutines() *GoroutineTracker {
	runtime.Gosched()
	return &GoroutineTracker{before: runtime.NumGoroutine()}
}

// CheckLeaks waits up to two seconds for the count to drop back to the
// snapshot plus tolerance.
func (g *GoroutineTracker) CheckLeaks(t testing.TB, tolerance int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		runtime.Gosched()
		if runtime.NumGoroutine() <= g.before+tolerance {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	if after := runtime.NumGoroutine(); after > g.before+tolerance {
		t.Errorf("goroutine leak: before=%d after=%d tolerance=%d", g.before, after, tolerance)
	}
}

// WithinTimeout runs fn and fails the test if it has not returned after d.
func WithinTimeout(t testing.TB, name string, d time.Duration, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatalf("%s: still running after %v", name, d)
	}
}

// RunConcurrently starts count goroutines together and waits for all.
func RunConcurrently(count int, fn func(i int)) {
	var wg sync.WaitGroup
	start := make(chan struct{})
	wg.Add(count)
	for i := range count {
		go func() {
			defer wg.Done()
			<-start
			fn(i)
		}()
	}
	close(start)
	wg.Wait()
}
