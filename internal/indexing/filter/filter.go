package filter

// Filter answers address membership questions for the scanner.
type Filter interface {
	// Contains checks if an address is tracked
	Contains(address string) bool

	// Size returns the number of tracked addresses
	Size() int
}

var (
	_ Filter = (*WatchList)(nil)
	_ Filter = (*AssetSet)(nil)
)
