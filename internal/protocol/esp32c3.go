package protocol

// Flash layout of Papyrix devices
const (
	PartitionTableAddress = 0x8000
	PartitionTableSize    = 0xC00
)

// DefaultBaudRate is the ROM loader link speed.
const DefaultBaudRate = 921600

// ReadFlashChunk is the largest block READ_FLASH_SLOW returns.
const ReadFlashChunk = 64

// ROMStatusBytes is the status trailer length of ESP32-family ROM responses.
const ROMStatusBytes = 4
