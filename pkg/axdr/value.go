// Package axdr scans a DLMS APDU left to right, decoding the A-XDR-like
// tag-length-value encoding COSEM uses for DataNotification payloads into
// a flat, typed value sequence.
package axdr

// Kind identifies the scalar type a Value carries.
type Kind int

const (
	KindU8 Kind = iota
	KindU16
	KindU32
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindU8:
		return "u8"
	case KindU16:
		return "u16"
	case KindU32:
		return "u32"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// Value is one parsed scalar leaf, annotated with the structure and array
// depth it was found at so a downstream extractor can disambiguate
// positional fields without rebuilding the nested tree.
type Value struct {
	Kind        Kind
	U8          uint8
	U16         uint16
	U32         uint32
	Str         string
	StructDepth int
	ArrayDepth  int
}

// DateTime is the parsed subset of the 12-byte DLMS date-time structure;
// weekday, hundredths, deviation, and clock status are read off the wire
// but not retained, per spec.
type DateTime struct {
	Year   uint16
	Month  uint8
	Day    uint8
	Hour   uint8
	Minute uint8
	Second uint8
}

// Result is the output of one APDU parse.
type Result struct {
	Values                []Value
	DateTime              DateTime
	LongInvokeAndPriority uint32
	UnknownCount          int
}
