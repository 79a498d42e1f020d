package chat

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestSuperChatColorTiers(t *testing.T) {
	cases := []struct {
		cents int64
		want  string
	}{
		{1, colorBase},
		{4_99, colorBase},
		{5_00, colorTier5},
		{9_99, colorTier5},
		{10_00, colorTier10},
		{19_99, colorTier10},
		{20_00, colorTier20},
		{49_99, colorTier20},
		{50_00, colorTier50},
		{99_99, colorTier50},
		{100_00, colorTier100},
		{250_00, colorTier100},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, SuperChatColor(tc.cents), "amount %d", tc.cents)
	}
}

func TestSuperChatColorIsMonotonic(t *testing.T) {
	rank := map[string]int{
		colorBase:    0,
		colorTier5:   1,
		colorTier10:  2,
		colorTier20:  3,
		colorTier50:  4,
		colorTier100: 5,
	}

	properties := gopter.NewProperties(nil)
	properties.Property("larger tips never rank below smaller ones", prop.ForAll(
		func(a, b int64) bool {
			if a > b {
				a, b = b, a
			}
			return rank[SuperChatColor(a)] <= rank[SuperChatColor(b)]
		},
		gen.Int64Range(0, 500_00),
		gen.Int64Range(0, 500_00),
	))
	properties.TestingRun(t)
}
