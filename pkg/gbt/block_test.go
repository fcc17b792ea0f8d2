package gbt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func buildRaw(last bool, number uint16, content []byte) []byte {
	control := byte(0x00)
	if last {
		control = 0x80
	}
	raw := []byte{
		tag,
		control,
		byte(number >> 8), byte(number),
		0x00, 0x00, // ack number, unused by parseBlock
		byte(len(content)),
	}
	return append(raw, content...)
}

func TestParseBlock_Valid(t *testing.T) {
	raw := buildRaw(true, 1, []byte{0x01, 0x02, 0x03})
	b, err := parseBlock(raw)
	require.NoError(t, err)
	require.True(t, b.last)
	require.EqualValues(t, 1, b.number)
	require.Len(t, b.content, 3)
}

func TestParseBlock_WrongTag(t *testing.T) {
	raw := buildRaw(false, 1, []byte{0x01})
	raw[0] = 0xE1
	_, err := parseBlock(raw)
	require.Error(t, err)
}

func TestParseBlock_TooShort(t *testing.T) {
	_, err := parseBlock([]byte{tag, 0x00, 0x00})
	require.Error(t, err)
}

func TestParseBlock_DeclaredLengthExceedsBuffer(t *testing.T) {
	raw := buildRaw(false, 1, []byte{0x01})
	raw[6] = 0x7F // claim 127 bytes of content when only 1 is present
	_, err := parseBlock(raw)
	require.Error(t, err)
}
