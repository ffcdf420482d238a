package partition

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
	"errors"
	"fmt"
)

// On-flash layout of an ESP-IDF partition table.
const (
	EntrySize    = 32
	MaxTableSize = 0xC00
	labelSize    = 16
)

var (
	entryMagic = []byte{0xAA, 0x50}
	md5Magic   = []byte{0xEB, 0xEB}
)

var (
	ErrBadMagic = errors.New("bad partition entry magic")
	ErrChecksum = errors.New("partition table MD5 mismatch")
)

// BinaryTable is a partition table parsed from its flash image.
type BinaryTable struct {
	entries  []RawRecord
	checksum bool
}

// ParseTable parses a partition table image. Parsing stops at the first
// erased (all 0xFF) entry or at MaxTableSize. When the image carries an MD5
// entry the digest of the preceding entries is verified.
func ParseTable(data []byte) (*BinaryTable, error) {
	if len(data) > MaxTableSize {
		data = data[:MaxTableSize]
	}

	t := &BinaryTable{}
	for off := 0; off+EntrySize <= len(data); off += EntrySize {
		entry := data[off : off+EntrySize]

		if isErased(entry) {
			break
		}

		if bytes.Equal(entry[0:2], md5Magic) {
			sum := md5.Sum(data[:off])
			if !bytes.Equal(sum[:], entry[labelSize:EntrySize]) {
				return nil, fmt.Errorf("entry %d: %w", off/EntrySize, ErrChecksum)
			}
			t.checksum = true
			continue
		}

		if !bytes.Equal(entry[0:2], entryMagic) {
			return nil, fmt.Errorf("entry %d: %w (0x%02X%02X)", off/EntrySize, ErrBadMagic, entry[0], entry[1])
		}

		t.entries = append(t.entries, decodeEntry(entry))
	}

	return t, nil
}

// decodeEntry unpacks a 32-byte entry:
// 0-1: magic, 2: type, 3: subtype, 4-7: offset, 8-11: size,
// 12-27: label (NUL padded), 28-31: flags.
func decodeEntry(entry []byte) RawRecord {
	label := entry[12 : 12+labelSize]
	if i := bytes.IndexByte(label, 0); i >= 0 {
		label = label[:i]
	}

	return RawRecord{
		Type:    entry[2],
		SubType: entry[3],
		Address: binary.LittleEndian.Uint32(entry[4:8]),
		Size:    binary.LittleEndian.Uint32(entry[8:12]),
		Label:   string(label),
		Flags:   binary.LittleEndian.Uint32(entry[28:32]),
	}
}

func isErased(entry []byte) bool {
	for _, b := range entry {
		if b != 0xFF {
			return false
		}
	}
	return true
}

// Len returns the number of partition entries.
func (t *BinaryTable) Len() int {
	return len(t.entries)
}

// Verified reports whether the image carried an MD5 entry that matched.
func (t *BinaryTable) Verified() bool {
	return t.checksum
}

// Find implements Table.
func (t *BinaryTable) Find(typ, subType uint8, label string) Cursor {
	f := filter{typ: typ, subType: subType, label: label}
	return t.seek(0, f)
}

type filter struct {
	typ     uint8
	subType uint8
	label   string
}

func (f filter) match(r RawRecord) bool {
	if f.typ != TypeAny && r.Type != f.typ {
		return false
	}
	if f.subType != SubTypeAny && r.SubType != f.subType {
		return false
	}
	return f.label == "" || r.Label == f.label
}

func (t *BinaryTable) seek(from int, f filter) Cursor {
	for i := from; i < len(t.entries); i++ {
		if f.match(t.entries[i]) {
			return &tableCursor{table: t, index: i, filter: f}
		}
	}
	return nil
}

type tableCursor struct {
	table  *BinaryTable
	index  int
	filter filter
}

func (c *tableCursor) Record() RawRecord {
	return c.table.entries[c.index]
}

func (c *tableCursor) Next() Cursor {
	return c.table.seek(c.index+1, c.filter)
}

// EncodeEntry packs r into the 32-byte on-flash layout.
func EncodeEntry(r RawRecord) []byte {
	entry := make([]byte, EntrySize)
	copy(entry[0:2], entryMagic)
	entry[2] = r.Type
	entry[3] = r.SubType
	binary.LittleEndian.PutUint32(entry[4:8], r.Address)
	binary.LittleEndian.PutUint32(entry[8:12], r.Size)
	copy(entry[12:12+labelSize], r.Label)
	binary.LittleEndian.PutUint32(entry[28:32], r.Flags)
	return entry
}

// EncodeTable builds a complete table image with an MD5 entry, padded with
// 0xFF to MaxTableSize.
func EncodeTable(records []RawRecord) []byte {
	var buf bytes.Buffer
	for _, r := range records {
		buf.Write(EncodeEntry(r))
	}

	sum := md5.Sum(buf.Bytes())
	buf.Write(md5Magic)
	buf.Write(bytes.Repeat([]byte{0xFF}, labelSize-len(md5Magic)))
	buf.Write(sum[:])

	for buf.Len() < MaxTableSize {
		buf.WriteByte(0xFF)
	}
	return buf.Bytes()
}
