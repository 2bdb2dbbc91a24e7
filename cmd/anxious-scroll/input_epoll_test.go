//go:build linux

package main

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"anxiousscroll/scroll"
)

// newBlockingPipe returns a pipe whose read end is in blocking mode, the
// same state the evdev library leaves a device fd in.
func newBlockingPipe(t *testing.T) (*os.File, *os.File) {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	_ = r.Fd()
	t.Cleanup(func() {
		_ = r.Close()
		_ = w.Close()
	})
	return r, w
}

func newTestWaiter(t *testing.T, f *os.File) *fdWaiter {
	t.Helper()
	w, err := newFdWaiter(int(f.Fd()))
	if err != nil {
		t.Fatalf("newFdWaiter: %v", err)
	}
	t.Cleanup(w.close)
	return w
}

func waitAsync(w *fdWaiter) <-chan error {
	done := make(chan error, 1)
	go func() { done <- w.wait() }()
	return done
}

func TestFdWaiter_ReadableData(t *testing.T) {
	r, wr := newBlockingPipe(t)
	w := newTestWaiter(t, r)

	if _, err := wr.Write([]byte{1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case err := <-waitAsync(w):
		if err != nil {
			t.Fatalf("wait: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("wait did not see readable data")
	}
}

func TestFdWaiter_WakeEndsBlockedWait(t *testing.T) {
	r, _ := newBlockingPipe(t)
	w := newTestWaiter(t, r)

	done := waitAsync(w)
	time.Sleep(20 * time.Millisecond)
	w.wake()

	select {
	case err := <-done:
		if !errors.Is(err, errReadInterrupted) || !errors.Is(err, os.ErrClosed) {
			t.Fatalf("wait error = %v, want errReadInterrupted", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("wait still blocked after wake")
	}

	// Later waits return immediately as well.
	if err := w.wait(); !errors.Is(err, errReadInterrupted) {
		t.Fatalf("second wait error = %v", err)
	}
}

func TestFdWaiter_HangupIsDeviceGone(t *testing.T) {
	r, wr := newBlockingPipe(t)
	w := newTestWaiter(t, r)

	_ = wr.Close()
	err := w.wait()
	if !errors.Is(err, unix.ENODEV) {
		t.Fatalf("wait error = %v, want ENODEV", err)
	}
	if !isDeviceGone(err) {
		t.Fatalf("hangup not treated as device gone")
	}
}

// pipeSource reads input_event records from a blocking pipe.
type pipeSource struct {
	r      *os.File
	waiter *fdWaiter
}

func (p *pipeSource) ReadBatch() ([]scroll.Event, error) {
	if err := p.waiter.wait(); err != nil {
		return nil, err
	}
	var rec inputEvent
	if err := binary.Read(p.r, binary.NativeEndian, &rec); err != nil {
		return nil, err
	}
	return []scroll.Event{{Type: rec.Type, Code: rec.Code, Value: rec.Value}}, nil
}

func (p *pipeSource) Interrupt() { p.waiter.wake() }

func TestRunSession_CancelWhileReadBlocked(t *testing.T) {
	r, wr := newBlockingPipe(t)
	src := &pipeSource{r: r, waiter: newTestWaiter(t, r)}
	sink := &fakeSink{}
	pipeline := scroll.NewPipeline(scroll.DefaultParams(), scroll.NewState(sessionStart))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- runSession(ctx, src, sink, pipeline, nil, time.Millisecond, testLogger())
	}()

	// One motion event (plus its SYN_REPORT), then the pipe goes idle.
	if err := encodeEvents(wr, []scroll.Event{{Type: EV_REL, Code: REL_X, Value: 4}}); err != nil {
		t.Fatalf("encodeEvents: %v", err)
	}
	waitUntil(t, time.Second, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.batches) == 2
	}, "events not forwarded")

	// The session is now blocked waiting for input that never comes.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runSession: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("session still blocked on an idle source after cancel")
	}
}
