package observability

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"

	"go.uber.org/zap"
)

// FlushTelemetry drains buffered telemetry before exit. Metrics are
// pull-based so only the log buffers need a sync; call it after in-flight
// requests have drained. Sync errors against a terminal stderr are
// ignored.
func FlushTelemetry(ctx context.Context, logger *zap.Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if logger == nil {
		return nil
	}
	if err := logger.Sync(); err != nil && !isTerminalSyncErr(err) {
		return fmt.Errorf("flush logs: %w", err)
	}
	return nil
}

// isTerminalSyncErr reports whether err is the EINVAL/ENOTTY that fsync on a
// tty or pipe returns.
func isTerminalSyncErr(err error) bool {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		err = pathErr.Err
	}
	return errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY)
}
