package partition

import "fmt"

// Kind is the decoded partition type.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindApp
	KindData
	KindAny
)

// String returns the report label of the kind.
func (k Kind) String() string {
	switch k {
	case KindApp:
		return "APP"
	case KindData:
		return "DATA"
	case KindAny:
		return "ANY"
	default:
		return UnknownType
	}
}

// SubKind is the decoded partition subtype. It keeps the raw code, so an
// unrecognized subtype can still be told apart from another one.
type SubKind struct {
	code  uint8
	label string
	slot  int
}

// Code returns the raw subtype code.
func (s SubKind) Code() uint8 { return s.code }

// String returns the report label, e.g. "DATA NVS" or "APP OTA".
func (s SubKind) String() string { return s.label }

// Known reports whether the subtype matched one of the decoder tables.
func (s SubKind) Known() bool { return s.label != UnknownSubType }

// Slot returns the OTA slot ordinal. ok is false for non-OTA subtypes.
// All slots share the "APP OTA" label, the ordinal is only kept here.
func (s SubKind) Slot() (slot int, ok bool) {
	if s.slot < 0 {
		return 0, false
	}
	return s.slot, true
}

var dataSubKinds = map[uint8]string{
	SubTypeCoredump:    "DATA COREDUMP",
	SubTypeFAT:         "DATA FAT",
	SubTypeEfuseEm:     "DATA EFUSE_EM",
	SubTypeWebserverFS: "DATA WEBSERVER_FS",
	SubTypeNVS:         "DATA NVS",
	SubTypeNVSKeys:     "DATA NVS_KEYS",
	SubTypePHY:         "DATA PHY",
	SubTypeSPIFFS:      "DATA SPIFFS",
	SubTypeUndefined:   "DATA UNDEFINED",
}

// Record is a decoded partition table entry.
type Record struct {
	Label     string
	Kind      Kind
	RawType   uint8
	SubKind   SubKind
	Address   uint32
	Size      uint32
	Encrypted bool
}

// String implements fmt.Stringer.
func (r Record) String() string {
	return fmt.Sprintf("%s %s %s 0x%X %d", r.Label, r.Kind, r.SubKind, r.Address, r.Size)
}

// Decode maps a raw entry to a Record. Decoding never fails: codes outside the
// known tables decode to the UnknownType and UnknownSubType fallbacks.
func Decode(raw RawRecord) Record {
	kind := decodeKind(raw.Type)
	return Record{
		Label:     raw.Label,
		Kind:      kind,
		RawType:   raw.Type,
		SubKind:   decodeSubKind(kind, raw.SubType),
		Address:   raw.Address,
		Size:      raw.Size,
		Encrypted: raw.Flags&FlagEncrypted != 0,
	}
}

func decodeKind(code uint8) Kind {
	switch code {
	case TypeApp:
		return KindApp
	case TypeData:
		return KindData
	case TypeAny:
		return KindAny
	default:
		return KindUnknown
	}
}

func decodeSubKind(kind Kind, code uint8) SubKind {
	sub := SubKind{code: code, label: UnknownSubType, slot: -1}

	switch kind {
	case KindApp:
		switch {
		case code == SubTypeFactory:
			sub.label = "APP FACTORY"
		case code >= SubTypeOTAMin && code <= SubTypeOTAMax:
			sub.label = "APP OTA"
			sub.slot = int(code - SubTypeOTAMin)
		}
	case KindData:
		if label, ok := dataSubKinds[code]; ok {
			sub.label = label
		}
	}

	return sub
}
