package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatRelative(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		ago  time.Duration
		want string
	}{
		{"under a minute", 5 * time.Second, "Just now"},
		{"just under a minute", 59 * time.Second, "Just now"},
		{"minutes", 90 * time.Second, "1m ago"},
		{"many minutes", 59 * time.Minute, "59m ago"},
		{"hours", 61 * time.Minute, "1h ago"},
		{"many hours", 23 * time.Hour, "23h ago"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FormatRelative(now.Add(-tc.ago), now))
		})
	}

	t.Run("over a day is absolute", func(t *testing.T) {
		got := FormatRelative(now.Add(-25*time.Hour), now)
		assert.Equal(t, "Feb 28, 2026 11:00 AM", got)
	})
}
