package partition

// Partition types
const (
	TypeApp  = 0x00
	TypeData = 0x01
	TypeAny  = 0xFF
)

// App subtypes
const (
	SubTypeFactory = 0x00
	SubTypeOTAMin  = 0x10 // OTA_0
	SubTypeOTAMax  = 0x1F // OTA_15
	SubTypeTest    = 0x20
)

// Data subtypes
const (
	SubTypeDataOTA     = 0x00
	SubTypePHY         = 0x01
	SubTypeNVS         = 0x02
	SubTypeCoredump    = 0x03
	SubTypeNVSKeys     = 0x04
	SubTypeEfuseEm     = 0x05
	SubTypeUndefined   = 0x06
	SubTypeWebserverFS = 0x80 // ESPHTTPD
	SubTypeFAT         = 0x81
	SubTypeSPIFFS      = 0x82
	SubTypeAny         = 0xFF
)

// Fallback labels for codes the decoder does not recognize.
const (
	UnknownType    = "unknown type"
	UnknownSubType = "unknown subtype"
)

// RawRecord is one partition table entry as stored on flash.
type RawRecord struct {
	Type    uint8
	SubType uint8
	Address uint32
	Size    uint32
	Label   string
	Flags   uint32
}

// FlagEncrypted marks a partition whose contents are flash-encrypted.
const FlagEncrypted = 0x01
