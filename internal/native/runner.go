package native

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"time"
)

// Runner lets us stub the automation bridge binary in tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// A wedged editor instance can hang a bridge verb indefinitely, so every
// invocation carries its own deadline on top of the caller's context.
const defaultVerbTimeout = 60 * time.Second

// bridgeRunner executes one automation verb per invocation and logs the
// outcome under the launcher's logger.
type bridgeRunner struct {
	timeout time.Duration
	logger  *slog.Logger
}

func newBridgeRunner(logger *slog.Logger) bridgeRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return bridgeRunner{timeout: defaultVerbTimeout, logger: logger}
}

func (r bridgeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	dur := time.Since(start)

	verb := ""
	if len(args) > 0 {
		verb = args[0]
	}
	if err != nil {
		r.logger.Warn("native.bridge_failed",
			"verb", verb,
			"duration_ms", dur.Milliseconds(),
			"error", err,
			"stderr", truncateOutput(errb.String(), 8<<10),
		)
	} else {
		r.logger.Debug("native.bridge_ok",
			"verb", verb,
			"duration_ms", dur.Milliseconds(),
			"stdout_bytes", out.Len(),
		)
	}

	return out.Bytes(), errb.Bytes(), err
}

func truncateOutput(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
