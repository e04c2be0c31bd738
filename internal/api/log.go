package api

import (
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"menagerie/pkg/logging"
)

// Matches key=value and key="value with spaces" pairs in a slog text line.
var logRegex = regexp.MustCompile(`([a-zA-Z0-9_\-.]+)=(?:"([^"]*)"|([^ ]+))`)

// handleLatestLog returns the last captured log line, condensed for display.
func handleLatestLog(w http.ResponseWriter, r *http.Request) {
	line := logging.GlobalLogCapture.GetLastLine()
	writeJSON(w, http.StatusOK, map[string]string{
		"log": formatLogLine(line),
	})
}

// handleRecentLog returns the captured tail of the log, condensed, oldest first.
func handleRecentLog(w http.ResponseWriter, r *http.Request) {
	lines := logging.GlobalLogCapture.Recent()
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, formatLogLine(strings.TrimRight(l, "\n")))
	}
	writeJSON(w, http.StatusOK, map[string][]string{"log": out})
}

// formatLogLine condenses a slog text line to "HH:MM:SS msg (key=value, ...)".
// Level is dropped, long values are elided, params are sorted.
func formatLogLine(raw string) string {
	matches := logRegex.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		return raw
	}

	var msg, timeStr string
	var params []string

	for _, m := range matches {
		key := m[1]
		val := strings.TrimSpace(m[2])
		if val == "" {
			val = strings.TrimSpace(m[3])
		}

		switch key {
		case "time":
			if t, err := time.Parse(time.RFC3339, val); err == nil {
				timeStr = t.Format("15:04:05")
			}
		case "level":
			// dropped
		case "msg":
			msg = val
		default:
			if len(val) <= 20 {
				params = append(params, fmt.Sprintf("%s=%s", key, val))
			}
		}
	}

	if msg == "" {
		return raw
	}

	sort.Strings(params)

	out := msg
	if timeStr != "" {
		out = timeStr + " " + msg
	}
	if len(params) > 0 {
		out += " (" + strings.Join(params, ", ") + ")"
	}
	return out
}
