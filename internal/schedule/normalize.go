package schedule

import "strings"

// Normalize converts a 5-field cron expression to the 6-field form by
// prepending a "0" seconds field. Any other field count is returned
// unchanged; the parser reports it.
func Normalize(raw string) string {
	fields := strings.Fields(raw)
	if len(fields) != 5 {
		return raw
	}
	return "0 " + strings.Join(fields, " ")
}

// IsPlaceholder reports whether raw is an app-setting reference ("%NAME%")
// with a non-empty name.
func IsPlaceholder(raw string) bool {
	s := strings.TrimSpace(raw)
	return len(s) > 2 && strings.HasPrefix(s, "%") && strings.HasSuffix(s, "%")
}
