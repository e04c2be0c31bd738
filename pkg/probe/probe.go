package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// defaultTimeout bounds a single check when the probe sets none.
const defaultTimeout = 5 * time.Second

// Probe is one named startup check. Critical probes abort startup on
// failure; the rest log and let the application come up degraded.
type Probe struct {
	Name     string
	Check    func(ctx context.Context) error
	Critical bool
	Timeout  time.Duration
}

// Run executes the probes in order, logs a summary line per probe, and
// returns the joined errors of all critical failures.
func Run(ctx context.Context, probes []Probe) error {
	var critical []error

	slog.Info("Startup Checks")
	for _, p := range probes {
		timeout := p.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		checkCtx, cancel := context.WithTimeout(ctx, timeout)
		start := time.Now()
		err := p.Check(checkCtx)
		cancel()
		elapsed := time.Since(start).Round(time.Millisecond)

		if err == nil {
			slog.Info(fmt.Sprintf("[PASS] %-20s (%v)", p.Name, elapsed))
			continue
		}
		slog.Error(fmt.Sprintf("[FAIL] %-20s (%v)", p.Name, elapsed), "error", err)
		if p.Critical {
			critical = append(critical, fmt.Errorf("%s: %w", p.Name, err))
		}
	}

	return errors.Join(critical...)
}
