package viewmodel

import "strings"

// LogTone classifies a scalper log line for colouring.
type LogTone string

const (
	LogSignal LogTone = "signal"
	LogError  LogTone = "error"
	LogInfo   LogTone = "info"
)

type LogLine struct {
	Text string  `json:"text"`
	Tone LogTone `json:"tone"`
}

// ClassifyLog tones a line by substring, SIGNAL taking precedence over Error.
func ClassifyLog(line string) LogTone {
	switch {
	case strings.Contains(line, "SIGNAL"):
		return LogSignal
	case strings.Contains(line, "Error"):
		return LogError
	default:
		return LogInfo
	}
}

// LogsNewestFirst reverses receipt-ordered logs for display.
func LogsNewestFirst(logs []string) []LogLine {
	out := make([]LogLine, len(logs))
	for i, l := range logs {
		out[len(logs)-1-i] = LogLine{Text: l, Tone: ClassifyLog(l)}
	}
	return out
}
