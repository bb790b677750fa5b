// Package logstream relays log lines to WebSocket clients. Lines come from
// files tailed in the log directory and from bot logs posted to the API.
package logstream

import (
	"strings"
	"time"
)

// Message types sent to clients.
const (
	TypeLog    = "log"
	TypeSystem = "system"
	TypePong   = "pong"
)

// Entry is one message on the log stream.
type Entry struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp,omitempty"`
	Level     string `json:"level,omitempty"`
	Source    string `json:"source,omitempty"`
	Message   string `json:"message,omitempty"`
}

// SystemEntry builds a system notice stamped with now.
func SystemEntry(message string, now time.Time) Entry {
	return Entry{Type: TypeSystem, Message: message, Timestamp: now.Format(time.RFC3339)}
}

// BotEntry builds the stream entry for a bot log posted through the API.
func BotEntry(botName, level, message, timestamp string) Entry {
	return Entry{
		Type:      TypeLog,
		Timestamp: timestamp,
		Level:     level,
		Source:    "bot:" + botName,
		Message:   message,
	}
}

// ParseLine turns a raw log line from source into a log entry. The level is
// guessed from keywords in the line. A line that starts with a date and a
// clock time ("2025-02-05 14:03:22,123 rest...") keeps that timestamp, with
// the time cut to whole seconds, and the remainder becomes the message.
// Other lines are stamped with now.
func ParseLine(source, line string, now time.Time) Entry {
	e := Entry{
		Type:      TypeLog,
		Timestamp: now.Format(time.RFC3339),
		Level:     guessLevel(line),
		Source:    source,
		Message:   line,
	}

	if strings.HasPrefix(line, "20") {
		parts := strings.SplitN(line, " ", 3)
		if len(parts) >= 2 && strings.Contains(parts[1], ":") {
			clock := parts[1]
			if len(clock) > 8 {
				clock = clock[:8]
			}
			e.Timestamp = parts[0] + " " + clock
			if len(parts) == 3 {
				e.Message = parts[2]
			}
		}
	}
	return e
}

func guessLevel(line string) string {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "error"):
		return "ERROR"
	case strings.Contains(lower, "warn"):
		return "WARNING"
	case strings.Contains(lower, "debug"):
		return "DEBUG"
	case strings.Contains(lower, "critical"), strings.Contains(lower, "fatal"):
		return "CRITICAL"
	default:
		return "INFO"
	}
}
