package replay

// Cost is the coin price of re-opening the completed game at index.
func Cost(index int) int {
	switch {
	case index <= 25:
		return 2
	case index <= 50:
		return 4
	case index <= 75:
		return 6
	default:
		return 8
	}
}
