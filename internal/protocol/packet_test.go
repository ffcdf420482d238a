package protocol

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"
)

// response builds a raw ROM response with a 4-byte status trailer.
func response(cmd byte, value uint32, data []byte, status, errCode byte) []byte {
	payload := append(append([]byte{}, data...), status, errCode, 0, 0)
	packet := make([]byte, 8+len(payload))
	packet[0] = DirResponse
	packet[1] = cmd
	binary.LittleEndian.PutUint16(packet[2:4], uint16(len(payload)))
	binary.LittleEndian.PutUint32(packet[4:8], value)
	copy(packet[8:], payload)
	return packet
}

func TestNewRequest_Checksum(t *testing.T) {
	tests := []struct {
		data     []byte
		expected uint32
	}{
		{nil, 0xEF},
		{[]byte{0x01}, 0xEE},
		{[]byte{0x01, 0x02, 0x03}, 0xEF},
		{[]byte{0xFF}, 0x10},
	}

	for _, tc := range tests {
		req := NewRequest(CmdReadFlashSlow, tc.data)
		if req.Checksum != tc.expected {
			t.Errorf("NewRequest(%X).Checksum = 0x%X, want 0x%X", tc.data, req.Checksum, tc.expected)
		}
	}
}

func TestRequest_Encode(t *testing.T) {
	data := ReadFlashSlowData(PartitionTableAddress, ReadFlashChunk)
	encoded := NewRequest(CmdReadFlashSlow, data).Encode()

	if len(encoded) != 8+len(data) {
		t.Fatalf("Encode() length = %d, want %d", len(encoded), 8+len(data))
	}
	if encoded[0] != DirRequest || encoded[1] != CmdReadFlashSlow {
		t.Errorf("Encode() header = %X, want 00 0E", encoded[0:2])
	}
	if size := binary.LittleEndian.Uint16(encoded[2:4]); size != uint16(len(data)) {
		t.Errorf("Encode() size = %d, want %d", size, len(data))
	}
	if sum := binary.LittleEndian.Uint32(encoded[4:8]); sum != checksum(data) {
		t.Errorf("Encode() checksum = 0x%X, want 0x%X", sum, checksum(data))
	}
	if !bytes.Equal(encoded[8:], data) {
		t.Errorf("Encode() payload = %X, want %X", encoded[8:], data)
	}
}

func TestDecodeResponse_Success(t *testing.T) {
	flash := bytes.Repeat([]byte{0xAA}, ReadFlashChunk)
	raw := response(CmdReadFlashSlow, 0x1234, flash, 0, 0)

	resp, err := DecodeResponse(raw, ROMStatusBytes)
	if err != nil {
		t.Fatalf("DecodeResponse() error = %v", err)
	}
	if resp.Command != CmdReadFlashSlow {
		t.Errorf("Command = 0x%02X, want 0x%02X", resp.Command, CmdReadFlashSlow)
	}
	if resp.Value != 0x1234 {
		t.Errorf("Value = 0x%X, want 0x1234", resp.Value)
	}
	if !bytes.Equal(resp.Data, flash) {
		t.Errorf("Data length = %d, want %d", len(resp.Data), len(flash))
	}
	if !resp.IsSuccess() || resp.ErrorString() != "" {
		t.Errorf("IsSuccess() = false, ErrorString() = %q", resp.ErrorString())
	}
}

func TestDecodeResponse_Failure(t *testing.T) {
	resp, err := DecodeResponse(response(CmdReadFlashSlow, 0, nil, 1, ErrFlashReadErr), ROMStatusBytes)
	if err != nil {
		t.Fatalf("DecodeResponse() error = %v", err)
	}
	if resp.IsSuccess() {
		t.Error("IsSuccess() = true for failed response")
	}
	if !strings.Contains(resp.ErrorString(), "flash read error") {
		t.Errorf("ErrorString() = %q, want flash read error", resp.ErrorString())
	}
	if len(resp.Data) != 0 {
		t.Errorf("Data = %X, want empty", resp.Data)
	}
}

func TestDecodeResponse_StubStatusLength(t *testing.T) {
	raw := []byte{DirResponse, CmdSync, 0x02, 0x00, 0, 0, 0, 0, 0x00, 0x00}
	resp, err := DecodeResponse(raw, 2)
	if err != nil {
		t.Fatalf("DecodeResponse() error = %v", err)
	}
	if !resp.IsSuccess() {
		t.Errorf("IsSuccess() = false")
	}
}

func TestDecodeResponse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"too short", []byte{DirResponse, CmdSync, 0, 0}},
		{"wrong direction", []byte{DirRequest, CmdSync, 4, 0, 0, 0, 0, 0, 0, 0, 0, 0}},
		{"size beyond data", []byte{DirResponse, CmdSync, 0x40, 0, 0, 0, 0, 0, 0, 0, 0, 0}},
		{"size below trailer", []byte{DirResponse, CmdSync, 2, 0, 0, 0, 0, 0, 0, 0, 0, 0}},
	}

	for _, tc := range tests {
		if _, err := DecodeResponse(tc.data, ROMStatusBytes); err == nil {
			t.Errorf("%s: DecodeResponse() error = nil", tc.name)
		}
	}
}

func TestSyncData(t *testing.T) {
	data := SyncData()
	if len(data) != 36 {
		t.Fatalf("SyncData() length = %d, want 36", len(data))
	}
	if !bytes.Equal(data[:4], []byte{0x07, 0x07, 0x12, 0x20}) {
		t.Errorf("SyncData() header = %X", data[:4])
	}
	if !bytes.Equal(data[4:], bytes.Repeat([]byte{0x55}, 32)) {
		t.Errorf("SyncData() body = %X", data[4:])
	}
}

func TestPayloadBuilders(t *testing.T) {
	if data := SpiAttachData(); !bytes.Equal(data, make([]byte, 8)) {
		t.Errorf("SpiAttachData() = %X, want 8 zero bytes", data)
	}

	if data := ReadRegData(ChipDetectMagicAddr); binary.LittleEndian.Uint32(data) != ChipDetectMagicAddr {
		t.Errorf("ReadRegData() = %X", data)
	}

	data := ReadFlashSlowData(0x8000, 64)
	if binary.LittleEndian.Uint32(data[0:4]) != 0x8000 || binary.LittleEndian.Uint32(data[4:8]) != 64 {
		t.Errorf("ReadFlashSlowData() = %X", data)
	}
}

func TestParseSecurityInfo(t *testing.T) {
	data := make([]byte, 20)
	binary.LittleEndian.PutUint32(data[0:4], 0x01)
	data[4] = 0x03
	binary.LittleEndian.PutUint32(data[12:16], ChipIDESP32C3)
	binary.LittleEndian.PutUint32(data[16:20], 3)

	info, err := ParseSecurityInfo(data)
	if err != nil {
		t.Fatalf("ParseSecurityInfo() error = %v", err)
	}
	if info.ChipID != ChipIDESP32C3 || info.EcoVersion != 3 {
		t.Errorf("ChipID/EcoVersion = 0x%X/%d, want 0x%X/3", info.ChipID, info.EcoVersion, ChipIDESP32C3)
	}
	if info.Flags != 1 || info.FlashCryptCnt != 3 {
		t.Errorf("Flags/FlashCryptCnt = %d/%d, want 1/3", info.Flags, info.FlashCryptCnt)
	}

	short, err := ParseSecurityInfo(data[:12])
	if err != nil {
		t.Fatalf("ParseSecurityInfo(12 bytes) error = %v", err)
	}
	if short.ChipID != 0 {
		t.Errorf("ChipID = 0x%X for legacy payload, want 0", short.ChipID)
	}

	if _, err := ParseSecurityInfo(data[:8]); err == nil {
		t.Error("ParseSecurityInfo(8 bytes) error = nil")
	}
}

func TestChipName(t *testing.T) {
	tests := []struct {
		id       uint32
		expected string
	}{
		{ChipIDESP32C3, "ESP32-C3"},
		{ChipIDESP32S3, "ESP32-S3"},
		{ChipIDESP32C6, "ESP32-C6"},
		{0x00, "ESP32"},
		{0xFFFFFFFF, "ESP32"},
	}

	for _, tc := range tests {
		if result := ChipName(tc.id); result != tc.expected {
			t.Errorf("ChipName(0x%X) = %q, want %q", tc.id, result, tc.expected)
		}
	}
}

func TestChipNameFromMagic(t *testing.T) {
	if name, ok := ChipNameFromMagic(0x1B31506F); !ok || name != "ESP32-C3" {
		t.Errorf("ChipNameFromMagic(C3 eco3) = %q, %v", name, ok)
	}
	if _, ok := ChipNameFromMagic(0xDEADBEEF); ok {
		t.Error("ChipNameFromMagic(unknown) ok = true")
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		code     byte
		expected string
	}{
		{ErrInvalidMessage, "invalid message"},
		{ErrFailedToAct, "failed to act"},
		{ErrInvalidCRC, "invalid CRC"},
		{ErrFlashReadErr, "flash read error"},
		{ErrFlashReadLenErr, "flash read length error"},
		{0x00, "unknown error"},
		{0xFF, "unknown error"},
	}

	for _, tc := range tests {
		if result := ErrorMessage(tc.code); result != tc.expected {
			t.Errorf("ErrorMessage(0x%02X) = %q, want %q", tc.code, result, tc.expected)
		}
	}
}
