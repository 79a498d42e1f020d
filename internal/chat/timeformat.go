package chat

import (
	"fmt"
	"time"
)

// FormatRelative renders a message timestamp relative to now: "Just now"
// under a minute, then minutes, then hours, then the absolute date once a
// day has passed.
func FormatRelative(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "Just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return t.Format("Jan 2, 2006 3:04 PM")
	}
}
