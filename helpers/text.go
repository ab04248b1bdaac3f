package helpers

import (
	"fmt"
	"math"
	"strings"
)

// EscapeHTML escapes the characters Telegram's HTML parse mode rejects
func EscapeHTML(s string) string {
	s = strings.ReplaceAll(s, "<", "&lt;")
	return strings.ReplaceAll(s, ">", "&gt;")
}

// TimeAgoES renders an age in hours as the Spanish "hace ..." fragment used
// in notifications, e.g. "3 horas" or "12 minutos".
func TimeAgoES(hours float64) string {
	if hours >= 1 {
		if hours >= 1.5 {
			return fmt.Sprintf("%d horas", int(math.Round(hours)))
		}
		return "1 hora"
	}

	minutes := int(math.Round(hours * 60))
	if minutes > 1 {
		return fmt.Sprintf("%d minutos", minutes)
	}
	return "1 minuto"
}

// Truncate clips s to at most limit characters, appending an ellipsis when
// something was cut. Counts runes, not bytes: the Spanish copy and emoji are
// multibyte and a byte slice could land mid-rune.
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}
