package axdr

import "bytes"

const (
	tagLongInvoke    = 0x0F // also the in-context u8 leaf tag
	tagU16           = 0x12
	tagU32           = 0x06
	tagOctetString   = 0x09
	tagDateTime      = 0x0C
	tagArrayOpen     = 0x01
	tagStructureOpen = 0x02

	maxValues       = 100
	maxDepth        = 20
	maxOctetStrLen  = 32
	dateTimeTagLen  = 13 // tag + 12 body bytes
	longInvokeTagLen = 5 // tag + 4 body bytes
)

// Parse scans apdu and returns the decoded value sequence, date-time, and
// long-invoke-and-priority id. The returned UnknownCount is the number of
// bytes skipped as unrecognized tags; it is informational, never fatal.
func Parse(apdu []byte) Result {
	p := &parser{data: apdu}
	return p.run()
}

type parser struct {
	data []byte
	pos  int

	result Result

	structStack [maxDepth + 1]int
	structIdx   int
	arrayStack  [maxDepth + 1]int
	arrayIdx    int
}

func (p *parser) run() Result {
	if len(p.data) > 0 && p.data[0] == tagLongInvoke {
		if p.pos+longInvokeTagLen <= len(p.data) {
			p.result.LongInvokeAndPriority = be32(p.data[1:5])
			p.pos = longInvokeTagLen
		} else {
			return p.result
		}
	}

	for p.pos < len(p.data) {
		if len(p.result.Values) >= maxValues {
			return p.result
		}

		tag := p.data[p.pos]
		switch tag {
		case tagDateTime:
			if !p.parseDateTime() {
				p.skipUnknown()
			}
		case tagStructureOpen:
			if !p.openStructure() {
				return p.result
			}
		case tagArrayOpen:
			if !p.openArray() {
				return p.result
			}
		case tagU16:
			p.parseScalar(3, func(b []byte) Value {
				return Value{Kind: KindU16, U16: be16(b)}
			})
		case tagU32:
			p.parseScalar(5, func(b []byte) Value {
				return Value{Kind: KindU32, U32: be32(b)}
			})
		case tagLongInvoke:
			p.parseScalar(2, func(b []byte) Value {
				return Value{Kind: KindU8, U8: b[0]}
			})
		case tagOctetString:
			p.parseOctetString()
		default:
			p.skipUnknown()
		}
	}

	return p.result
}

func (p *parser) skipUnknown() {
	p.result.UnknownCount++
	p.pos++
}

// parseDateTime decodes the 12-byte date-time body following the tag.
func (p *parser) parseDateTime() bool {
	if p.pos+dateTimeTagLen > len(p.data) {
		return false
	}
	body := p.data[p.pos+1 : p.pos+dateTimeTagLen]
	p.result.DateTime = DateTime{
		Year:   be16(body[0:2]),
		Month:  body[2],
		Day:    body[3],
		Hour:   body[5],
		Minute: body[6],
		Second: body[7],
	}
	p.pos += dateTimeTagLen
	return true
}

// openStructure handles tag 0x02: push a field count onto the structure
// stack and consume one slot of the enclosing array, if any.
func (p *parser) openStructure() bool {
	if p.pos+2 > len(p.data) {
		p.skipUnknown()
		return true
	}
	fieldCount := int(p.data[p.pos+1])

	if p.structStack[p.structIdx] != 0 {
		if p.structIdx >= maxDepth {
			return false
		}
		p.structIdx++
	}
	p.structStack[p.structIdx] = fieldCount

	if p.arrayStack[p.arrayIdx] != 0 {
		p.arrayStack[p.arrayIdx]--
	}

	p.pos += 2
	return true
}

// openArray handles tag 0x01: push an element count onto the array stack.
func (p *parser) openArray() bool {
	if p.pos+2 > len(p.data) {
		p.skipUnknown()
		return true
	}
	elementCount := int(p.data[p.pos+1])

	if p.arrayStack[p.arrayIdx] != 0 {
		if p.arrayIdx >= maxDepth {
			return false
		}
		p.arrayIdx++
	}
	p.arrayStack[p.arrayIdx] = elementCount

	p.pos += 2
	return true
}

// parseScalar decodes a fixed-length scalar leaf of total size (tag + body)
// and, on success, appends it annotated with the current depth indices.
func (p *parser) parseScalar(size int, build func(body []byte) Value) {
	if p.pos+size > len(p.data) {
		p.skipUnknown()
		return
	}
	v := build(p.data[p.pos+1 : p.pos+size])
	v.StructDepth = p.structIdx
	v.ArrayDepth = p.arrayIdx
	p.result.Values = append(p.result.Values, v)
	p.decrementStruct()
	p.pos += size
}

func (p *parser) parseOctetString() {
	if p.pos+2 > len(p.data) {
		p.skipUnknown()
		return
	}
	length := int(p.data[p.pos+1])
	end := p.pos + 2 + length
	if end > len(p.data) {
		p.skipUnknown()
		return
	}

	raw := p.data[p.pos+2 : end]
	str, ok := formatOctetString(raw)
	p.pos = end
	if !ok {
		p.decrementStruct()
		return
	}

	v := Value{Kind: KindString, Str: str, StructDepth: p.structIdx, ArrayDepth: p.arrayIdx}
	p.result.Values = append(p.result.Values, v)
	p.decrementStruct()
}

func (p *parser) decrementStruct() {
	if p.structStack[p.structIdx] != 0 {
		p.structStack[p.structIdx]--
	}
}

// formatOctetString renders raw as dotted-decimal when it ends in 0xFF
// (a COSEM OBIS code), otherwise as a null-terminated C-style string
// capped at 32 characters. ok=false means the string exceeded the cap and
// the value should be skipped.
func formatOctetString(raw []byte) (string, bool) {
	if len(raw) > 0 && raw[len(raw)-1] == 0xFF {
		return dotted(raw), true
	}
	if len(raw) > maxOctetStrLen {
		return "", false
	}
	return string(bytes.TrimRight(raw, "\x00")), true
}

func dotted(raw []byte) string {
	buf := make([]byte, 0, len(raw)*4)
	for i, b := range raw {
		if i > 0 {
			buf = append(buf, '.')
		}
		buf = appendDecimal(buf, b)
	}
	return string(buf)
}

func appendDecimal(buf []byte, b byte) []byte {
	if b >= 100 {
		buf = append(buf, '0'+b/100)
		b %= 100
		buf = append(buf, '0'+b/10)
		b %= 10
	} else if b >= 10 {
		buf = append(buf, '0'+b/10)
		b %= 10
	}
	return append(buf, '0'+b)
}

func be16(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
