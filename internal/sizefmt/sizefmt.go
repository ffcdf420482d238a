// Package sizefmt renders byte counts with binary (1024-based) unit suffixes.
package sizefmt

import "strconv"

// Overflow is printed in place of a unit for values of a terabyte and more.
const Overflow = "unit overflow"

const (
	step      = 1024
	threshold = step - 1
)

var units = []string{"B", "KB", "MB", "GB"}

// Unit returns the suffix for the given scale level (0 = bytes).
func Unit(level int) string {
	if level < 0 || level >= len(units) {
		return Overflow
	}
	return units[level]
}

// Format scales b down by 1024 until it is at most 1023 and appends the unit.
// Division truncates: 1536 is "1KB", 1023 stays "1023B".
func Format(b uint64) string {
	level := 0
	for b > threshold {
		b /= step
		level++
	}
	return strconv.FormatUint(b, 10) + Unit(level)
}
