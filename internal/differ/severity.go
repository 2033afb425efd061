package differ

import "strings"

// SeverityLevel ranks a change: safe < moderate < critical.
type SeverityLevel int

const (
	SeveritySafe SeverityLevel = iota
	SeverityModerate
	SeverityCritical
)

// String is the report name of the level; safe changes are reported as info.
func (s SeverityLevel) String() string {
	switch s {
	case SeverityCritical:
		return "critical"
	case SeverityModerate:
		return "moderate"
	case SeveritySafe:
		return "info"
	default:
		return "unknown"
	}
}

// GetSeverity classifies a translated change sentence.
func GetSeverity(translation string) SeverityLevel {
	lowerMsg := strings.ToLower(translation)

	// Critical changes (Red)
	if strings.Contains(translation, "⚠️") ||
		strings.Contains(translation, "CRITICAL") ||
		strings.Contains(lowerMsg, "removed") ||
		strings.Contains(lowerMsg, "is now ignorable") ||
		strings.Contains(lowerMsg, "is now optional") {
		return SeverityCritical
	}

	// Safe changes (Green)
	if strings.Contains(lowerMsg, "documentation") {
		return SeveritySafe
	}

	// Everything else is moderate (Yellow)
	return SeverityModerate
}
