package cmdlog

import (
	"time"

	"cultivator/internal/logging"
	"cultivator/internal/metrics"
)

// Run executes one CLI command body, counting it and logging how it ended.
func Run(cmd string, f func() error) error {
	metrics.IncCommandRun(cmd)
	start := time.Now()
	err := f()
	fields := map[string]any{"command": cmd, "elapsed_ms": time.Since(start).Milliseconds()}
	if err != nil {
		metrics.IncCommandError(cmd)
		fields["error"] = err
		logging.Error("command_failed", fields)
		return err
	}
	logging.Info("command_done", fields)
	return nil
}
