package styles

const (
	IconCheck   = "✔"
	IconSuccess = "✓"
	IconError   = "✗"
	IconWarning = "⚠"
	IconInfo    = "ℹ"
	IconRunning = "▶"
	IconPending = "○"
	IconIdle    = "…"
	IconBullet  = "•"
)

// LevelIcon returns the icon shown in front of an event of the given level.
func LevelIcon(level string) string {
	switch level {
	case "ERROR":
		return IconError
	case "WARN", "WARNING":
		return IconWarning
	case "INFO":
		return IconInfo
	default:
		return IconBullet
	}
}

// OutcomeIcon maps a monitor outcome kind to its icon.
func OutcomeIcon(kind string) string {
	switch kind {
	case "success":
		return IconSuccess
	case "failure":
		return IconError
	case "timeout_exhausted":
		return IconIdle
	default:
		return IconPending
	}
}
