package cli

import (
	"bytes"
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scangate/scangate/pkg/output/exitcode"
)

// syncBuffer guards a bytes.Buffer written from the signal goroutine.
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

func waitDone(t *testing.T, ctx context.Context) {
	t.Helper()
	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context was not cancelled")
	}
}

func TestSignalContext_CancelOnInterrupt(t *testing.T) {
	sigChan := make(chan os.Signal, 1)
	var msg syncBuffer
	ctx, cancel := signalContext(context.Background(), 5*time.Second, &msg, sigChan, func(int) {})
	defer cancel()

	sigChan <- os.Interrupt
	waitDone(t, ctx)
	assert.Eventually(t, func() bool {
		return bytes.Contains([]byte(msg.String()), []byte("logging out"))
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSignalContext_ParentCancel(t *testing.T) {
	parent, parentCancel := context.WithCancel(context.Background())
	ctx, cancel := signalContext(parent, 5*time.Second, nil, make(chan os.Signal, 1), nil)
	defer cancel()

	parentCancel()
	waitDone(t, ctx)
}

func TestSignalContext_SecondSignalExits(t *testing.T) {
	sigChan := make(chan os.Signal, 2)
	var code atomic.Int32
	code.Store(-1)

	ctx, cancel := signalContext(context.Background(), 5*time.Second, nil, sigChan, func(c int) {
		code.Store(int32(c))
	})
	defer cancel()

	sigChan <- os.Interrupt
	waitDone(t, ctx)
	sigChan <- os.Interrupt

	require.Eventually(t, func() bool {
		return code.Load() == int32(exitcode.Interrupted)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSignalContext_GraceExpires(t *testing.T) {
	sigChan := make(chan os.Signal, 1)
	var exited atomic.Bool

	_, cancel := signalContext(context.Background(), 50*time.Millisecond, nil, sigChan, func(int) {
		exited.Store(true)
	})
	defer cancel()

	sigChan <- os.Interrupt
	time.Sleep(200 * time.Millisecond)
	assert.False(t, exited.Load(), "one signal must not exit")
}

func TestSignalContext_NoSignal(t *testing.T) {
	ctx, cancel := signalContext(context.Background(), 5*time.Second, nil, make(chan os.Signal, 1), nil)
	defer cancel()

	select {
	case <-ctx.Done():
		t.Fatal("context cancelled without signal")
	default:
	}
}
