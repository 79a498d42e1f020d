package chat

// Super-chat highlight colors by tip amount, largest tier first.
const (
	colorTier100 = "#ff0000"
	colorTier50  = "#ff6b00"
	colorTier20  = "#ffaa00"
	colorTier10  = "#00e5ff"
	colorTier5   = "#1de9b6"
	colorBase    = "#4CAF50"
)

// SuperChatColor returns the highlight color for a tip amount in cents.
func SuperChatColor(amountCents int64) string {
	switch {
	case amountCents >= 100_00:
		return colorTier100
	case amountCents >= 50_00:
		return colorTier50
	case amountCents >= 20_00:
		return colorTier20
	case amountCents >= 10_00:
		return colorTier10
	case amountCents >= 5_00:
		return colorTier5
	default:
		return colorBase
	}
}
