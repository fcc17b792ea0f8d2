package uplink

import "github.com/NotCoffee418/lgmbus_gateway/pkg/axdr"

// encodeScalar maps a parsed A-XDR value to its LPP type code and
// big-endian (or null-terminated, for strings) body bytes.
func encodeScalar(v axdr.Value) (typeCode byte, body []byte) {
	switch v.Kind {
	case axdr.KindU8:
		return TypeU8, []byte{v.U8}
	case axdr.KindU16:
		return TypeU16, be16(v.U16)
	case axdr.KindU32:
		return TypeU32, be32(v.U32)
	case axdr.KindString:
		body := make([]byte, 0, len(v.Str)+1)
		body = append(body, v.Str...)
		body = append(body, 0x00)
		return TypeString, body
	default:
		return TypeU8, []byte{0}
	}
}
