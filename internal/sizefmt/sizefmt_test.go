package sizefmt

import (
	"strconv"
	"strings"
	"testing"
)

func TestFormat_KnownValues(t *testing.T) {
	tests := []struct {
		input    uint64
		expected string
	}{
		{0, "0B"},
		{1, "1B"},
		{1023, "1023B"},
		{1024, "1KB"},
		{1536, "1KB"},
		{0x6000, "24KB"},
		{1024*1024 - 1, "1023KB"},
		{1024 * 1024, "1MB"},
		{0x180000, "1MB"},
		{1024 * 1024 * 1024, "1GB"},
		{1<<40 - 1, "1023GB"},
		{1 << 40, "1" + Overflow},
		{^uint64(0), "15" + Overflow},
	}

	for _, tc := range tests {
		result := Format(tc.input)
		if result != tc.expected {
			t.Errorf("Format(%d) = %q, want %q", tc.input, result, tc.expected)
		}
	}
}

func TestFormat_BytesRange(t *testing.T) {
	for b := uint64(0); b <= 1023; b++ {
		want := strconv.FormatUint(b, 10) + "B"
		if got := Format(b); got != want {
			t.Fatalf("Format(%d) = %q, want %q", b, got, want)
		}
	}
}

func TestFormat_KilobytesRange(t *testing.T) {
	for b := uint64(1024); b <= 1023*1024; b += 97 {
		got := Format(b)
		if !strings.HasSuffix(got, "KB") {
			t.Fatalf("Format(%d) = %q, want KB suffix", b, got)
		}
		prefix := strings.TrimSuffix(got, "KB")
		if prefix != strconv.FormatUint(b/1024, 10) {
			t.Fatalf("Format(%d) prefix = %q, want %d", b, prefix, b/1024)
		}
	}
}

func TestUnit(t *testing.T) {
	tests := []struct {
		level    int
		expected string
	}{
		{0, "B"},
		{1, "KB"},
		{2, "MB"},
		{3, "GB"},
		{4, Overflow},
		{17, Overflow},
		{-1, Overflow},
	}

	for _, tc := range tests {
		if got := Unit(tc.level); got != tc.expected {
			t.Errorf("Unit(%d) = %q, want %q", tc.level, got, tc.expected)
		}
	}
}
