package protocol

import (
	"encoding/binary"
	"fmt"
)

// Request represents an ESP ROM loader request packet.
type Request struct {
	Command  byte
	Data     []byte
	Checksum uint32
}

// Response represents an ESP ROM loader response packet.
type Response struct {
	Command byte
	Data    []byte
	Value   uint32
	Status  byte
	Error   byte
}

// NewRequest creates a new request with calculated checksum.
func NewRequest(cmd byte, data []byte) *Request {
	r := &Request{
		Command: cmd,
		Data:    data,
	}
	r.Checksum = checksum(data)
	return r
}

// checksum is the XOR of all data bytes seeded with 0xEF.
func checksum(data []byte) uint32 {
	var sum byte = 0xEF
	for _, b := range data {
		sum ^= b
	}
	return uint32(sum)
}

// Encode serializes the request to bytes (before SLIP encoding).
//
//	0: direction (0x00)
//	1: command
//	2-3: data size (little-endian)
//	4-7: checksum (little-endian)
//	8+: data
func (r *Request) Encode() []byte {
	packet := make([]byte, 8+len(r.Data))

	packet[0] = DirRequest
	packet[1] = r.Command
	binary.LittleEndian.PutUint16(packet[2:4], uint16(len(r.Data)))
	binary.LittleEndian.PutUint32(packet[4:8], r.Checksum)
	copy(packet[8:], r.Data)

	return packet
}

// DecodeResponse parses a response from raw bytes (after SLIP decoding).
// statusLen is the length of the status trailer: 4 for ESP32-family ROMs,
// 2 for ESP8266 and flasher stubs. The first two trailer bytes are status
// and error.
func DecodeResponse(data []byte, statusLen int) (*Response, error) {
	if len(data) < 8+statusLen {
		return nil, fmt.Errorf("response too short: %d bytes", len(data))
	}

	if data[0] != DirResponse {
		return nil, fmt.Errorf("invalid direction byte: 0x%02X", data[0])
	}

	resp := &Response{
		Command: data[1],
		Value:   binary.LittleEndian.Uint32(data[4:8]),
	}

	size := int(binary.LittleEndian.Uint16(data[2:4]))
	if size > len(data)-8 {
		return nil, fmt.Errorf("data size mismatch: expected %d, have %d", size, len(data)-8)
	}
	if size < statusLen {
		return nil, fmt.Errorf("response data shorter than status trailer: %d bytes", size)
	}

	payload := data[8 : 8+size]
	trailer := payload[size-statusLen:]
	resp.Data = payload[:size-statusLen]
	resp.Status = trailer[0]
	resp.Error = trailer[1]

	return resp, nil
}

// IsSuccess returns true if the response indicates success.
func (r *Response) IsSuccess() bool {
	return r.Status == 0 && r.Error == 0
}

// ErrorString returns a human-readable error message.
func (r *Response) ErrorString() string {
	if r.IsSuccess() {
		return ""
	}
	return fmt.Sprintf("status=0x%02X error=0x%02X (%s)", r.Status, r.Error, ErrorMessage(r.Error))
}

// SyncData returns the data payload for a SYNC command:
// 0x07 0x07 0x12 0x20 followed by 32 bytes of 0x55.
func SyncData() []byte {
	data := make([]byte, 36)
	copy(data, []byte{0x07, 0x07, 0x12, 0x20})
	for i := 4; i < len(data); i++ {
		data[i] = 0x55
	}
	return data
}

// SpiAttachData creates the data payload for SPI_ATTACH command.
// All zeros selects the default SPI flash pins.
func SpiAttachData() []byte {
	return make([]byte, 8)
}

// ReadRegData creates the data payload for READ_REG command.
func ReadRegData(addr uint32) []byte {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, addr)
	return data
}

// ReadFlashSlowData creates the data payload for READ_FLASH_SLOW command.
func ReadFlashSlowData(address, size uint32) []byte {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint32(data[0:4], address)
	binary.LittleEndian.PutUint32(data[4:8], size)
	return data
}

// SecurityInfo is the decoded GET_SECURITY_INFO payload.
type SecurityInfo struct {
	Flags         uint32
	FlashCryptCnt uint8
	KeyPurposes   [7]uint8
	ChipID        uint32
	EcoVersion    uint32
}

// ParseSecurityInfo decodes a GET_SECURITY_INFO response. Older ROMs send
// only the first 12 bytes; ChipID and EcoVersion are zero then.
func ParseSecurityInfo(data []byte) (*SecurityInfo, error) {
	if len(data) < 12 {
		return nil, fmt.Errorf("security info too short: %d bytes", len(data))
	}

	info := &SecurityInfo{
		Flags:         binary.LittleEndian.Uint32(data[0:4]),
		FlashCryptCnt: data[4],
	}
	copy(info.KeyPurposes[:], data[5:12])

	if len(data) >= 20 {
		info.ChipID = binary.LittleEndian.Uint32(data[12:16])
		info.EcoVersion = binary.LittleEndian.Uint32(data[16:20])
	}

	return info, nil
}
