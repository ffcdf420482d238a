// Package slip implements the SLIP framing used by the ESP ROM loader.
package slip

import "bytes"

const (
	End    = 0xC0
	Esc    = 0xDB
	EscEnd = 0xDC
	EscEsc = 0xDD
)

// Encode wraps data in END delimiters, escaping END and ESC bytes.
func Encode(data []byte) []byte {
	result := make([]byte, 0, len(data)+10)
	result = append(result, End)

	for _, b := range data {
		switch b {
		case End:
			result = append(result, Esc, EscEnd)
		case Esc:
			result = append(result, Esc, EscEsc)
		default:
			result = append(result, b)
		}
	}

	return append(result, End)
}

// Decode unescapes a frame. Leading and trailing END bytes are ignored.
// A dangling ESC at the end of the frame is dropped.
func Decode(frame []byte) []byte {
	frame = bytes.Trim(frame, string([]byte{End}))
	if len(frame) == 0 {
		return nil
	}

	result := make([]byte, 0, len(frame))
	for i := 0; i < len(frame); i++ {
		b := frame[i]
		if b != Esc {
			result = append(result, b)
			continue
		}

		if i+1 == len(frame) {
			break
		}
		i++
		switch frame[i] {
		case EscEnd:
			result = append(result, End)
		case EscEsc:
			result = append(result, Esc)
		default:
			result = append(result, frame[i])
		}
	}

	return result
}

// Split returns the first complete frame in data (delimiters included) and
// the bytes after it. Bytes before the opening END are line noise and are
// discarded. frame is nil when no complete frame is buffered yet.
func Split(data []byte) (frame, rest []byte) {
	start := bytes.IndexByte(data, End)
	if start < 0 {
		return nil, data
	}

	// Skip repeated END bytes, they delimit empty frames.
	body := start
	for body < len(data) && data[body] == End {
		body++
	}

	end := bytes.IndexByte(data[body:], End)
	if end < 0 {
		return nil, data[start:]
	}
	end += body

	return data[body-1 : end+1], data[end+1:]
}

// Framer accumulates raw serial input and yields decoded packets.
type Framer struct {
	buf []byte
}

// Write appends raw bytes. It never fails.
func (f *Framer) Write(p []byte) (int, error) {
	f.buf = append(f.buf, p...)
	return len(p), nil
}

// Next returns the next decoded packet, if a complete frame is buffered.
func (f *Framer) Next() ([]byte, bool) {
	frame, rest := Split(f.buf)
	f.buf = rest
	if frame == nil {
		return nil, false
	}
	return Decode(frame), true
}

// Reset drops any buffered input.
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
}
