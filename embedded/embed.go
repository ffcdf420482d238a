package embedded

import (
	_ "embed"
)

//go:embed partitions.bin
var partitions []byte

// Partitions returns the partition table image shipped with Papyrix firmware.
// The returned slice is shared; callers must not modify it.
func Partitions() []byte {
	return partitions
}
