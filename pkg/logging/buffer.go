package logging

import "sync"

// captureDepth is how many recent lines the capture writer retains.
const captureDepth = 20

// LogCaptureWriter tees log output into a small in-memory ring so the API
// can serve recent activity without reading the log file back.
type LogCaptureWriter struct {
	mu    sync.RWMutex
	lines []string
}

// GlobalLogCapture is the process-wide capture instance wired into the
// slog handler chain at Init.
var GlobalLogCapture = &LogCaptureWriter{}

// Write implements io.Writer. Each write is one rendered log line.
func (w *LogCaptureWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lines = append(w.lines, string(p))
	if len(w.lines) > captureDepth {
		w.lines = w.lines[len(w.lines)-captureDepth:]
	}
	return len(p), nil
}

// GetLastLine returns the most recent log line, or "" before any write.
func (w *LogCaptureWriter) GetLastLine() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if len(w.lines) == 0 {
		return ""
	}
	return w.lines[len(w.lines)-1]
}

// Recent returns up to captureDepth recent lines, oldest first.
func (w *LogCaptureWriter) Recent() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]string, len(w.lines))
	copy(out, w.lines)
	return out
}
