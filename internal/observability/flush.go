package observability

import (
	"context"
	"errors"
	"fmt"
	"syscall"

	"go.uber.org/zap"
)

// FlushTelemetry flushes buffered logs during shutdown, after in-flight requests
// have drained. Prometheus is pull-based so metrics need no flush.
func FlushTelemetry(ctx context.Context, logger *zap.Logger) error {
	if logger == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := logger.Sync(); err != nil && !isUnsyncable(err) {
		return fmt.Errorf("flush logs: %w", err)
	}
	return nil
}

// isUnsyncable reports the errors stderr returns on Sync when it is a terminal or pipe.
func isUnsyncable(err error) bool {
	return errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) || errors.Is(err, syscall.EBADF)
}
