package protocol

// ESP ROM loader commands
const (
	CmdSync            = 0x08
	CmdReadReg         = 0x0A
	CmdSpiAttach       = 0x0D
	CmdReadFlashSlow   = 0x0E
	CmdGetSecurityInfo = 0x14
)

// Direction byte values
const (
	DirRequest  = 0x00
	DirResponse = 0x01
)

// Chip IDs reported by GET_SECURITY_INFO
const (
	ChipIDESP32C3 = 0x05
	ChipIDESP32S3 = 0x09
	ChipIDESP32C2 = 0x0C
	ChipIDESP32C6 = 0x0D
	ChipIDESP32H2 = 0x10
)

var chipNames = map[uint32]string{
	ChipIDESP32C3: "ESP32-C3",
	ChipIDESP32S3: "ESP32-S3",
	ChipIDESP32C2: "ESP32-C2",
	ChipIDESP32C6: "ESP32-C6",
	ChipIDESP32H2: "ESP32-H2",
}

// ChipName returns human-readable name for chip ID
func ChipName(id uint32) string {
	if name, ok := chipNames[id]; ok {
		return name
	}
	return "ESP32"
}

// ChipDetectMagicAddr holds a per-chip magic value on chips that predate
// GET_SECURITY_INFO chip IDs.
const ChipDetectMagicAddr = 0x40001000

var chipMagics = map[uint32]string{
	0x00F01D83: "ESP32",
	0x000007C6: "ESP32-S2",
	0x6921506F: "ESP32-C3",
	0x1B31506F: "ESP32-C3",
	0xFFF0C101: "ESP8266",
}

// ChipNameFromMagic maps the chip detect register value to a chip name.
func ChipNameFromMagic(magic uint32) (string, bool) {
	name, ok := chipMagics[magic]
	return name, ok
}

// Error codes from ROM loader
const (
	ErrInvalidMessage  = 0x05
	ErrFailedToAct     = 0x06
	ErrInvalidCRC      = 0x07
	ErrFlashWriteErr   = 0x08
	ErrFlashReadErr    = 0x09
	ErrFlashReadLenErr = 0x0A
	ErrDeflateError    = 0x0B
)

var errorMessages = map[byte]string{
	ErrInvalidMessage:  "invalid message",
	ErrFailedToAct:     "failed to act",
	ErrInvalidCRC:      "invalid CRC",
	ErrFlashWriteErr:   "flash write error",
	ErrFlashReadErr:    "flash read error",
	ErrFlashReadLenErr: "flash read length error",
	ErrDeflateError:    "deflate error",
}

// ErrorMessage returns human-readable error message
func ErrorMessage(code byte) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	return "unknown error"
}
