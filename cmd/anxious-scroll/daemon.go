package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"anxiousscroll/scroll"
)

// ============================================================================
// Session Loop - read -> classify -> emit
// ============================================================================
//
// One goroutine owns the pipeline (and with it the timing state) for the
// lifetime of the device session. Batches are strictly serialized: one read,
// one Process call, one emit.
//
// Shutdown semantics:
//   - Exits with nil when ctx is canceled (sources with Interrupt are woken)
//   - Exits with an error when the device disappears or an emit fails
//   - Transient read errors are logged and retried after a short sleep
//
// ============================================================================

// eventSource yields batches of events from the physical device.
type eventSource interface {
	ReadBatch() ([]scroll.Event, error)
}

// interruptible sources can end a blocked ReadBatch from another goroutine.
type interruptible interface {
	Interrupt()
}

// eventSink accepts batches for the virtual device.
type eventSink interface {
	Emit(batch []scroll.Event) error
}

func runSession(
	ctx context.Context,
	src eventSource,
	sink eventSink,
	pipeline *scroll.Pipeline,
	stats *sessionStats,
	retryDelay time.Duration,
	logger *slog.Logger,
) error {
	if in, ok := src.(interruptible); ok {
		stop := context.AfterFunc(ctx, in.Interrupt)
		defer stop()
	}

	for {
		if ctx.Err() != nil {
			logger.Info("session stopping (context canceled)")
			return nil
		}

		batch, err := src.ReadBatch()
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("session stopping (context canceled)")
				return nil
			}
			if isDeviceGone(err) {
				return fmt.Errorf("input device gone: %w", err)
			}

			logger.Error("error reading events", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(retryDelay):
			}
			continue
		}

		out, st := pipeline.Process(batch)
		if stats != nil {
			stats.recordBatch(st)
		}
		logger.Debug("processed batch",
			"in", len(batch),
			"out", len(out),
			"transformed", st.Transformed,
			"dropped", st.Dropped)

		if len(out) == 0 {
			continue
		}
		if err := sink.Emit(out); err != nil {
			return fmt.Errorf("emit batch: %w", err)
		}
	}
}

// isDeviceGone reports read errors that will not go away by retrying.
func isDeviceGone(err error) bool {
	return errors.Is(err, unix.ENODEV) ||
		errors.Is(err, os.ErrClosed) ||
		errors.Is(err, io.EOF)
}
