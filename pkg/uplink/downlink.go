package uplink

import "fmt"

// Downlink channel keys, per spec.md §6 "Downlink decode".
const (
	ChannelMeasureIntervalMS = 0x0A
	ChannelSendDataType      = 0x0B
	ChannelEnableDecryption  = 0x0C
	ChannelAuthKey           = 0x0D
	ChannelAESKey            = 0x0E
	ChannelAESIV             = 0x0F
	ChannelCycleTimeoutMS    = 0x10
)

// SendDataType selects what the driver flushes at end of cycle.
type SendDataType byte

const (
	SendDataParsedLPP  SendDataType = 0
	SendDataRawGBTAPDU SendDataType = 1
)

// Setting is one decoded downlink key-value pair.
type Setting struct {
	Channel byte
	U32     uint32
	U8      byte
	Bool    bool
	Key16   [16]byte
}

// DecodeDownlink parses a sequence of channel|type|value triplets from a
// downlink payload into operator settings. Each known channel has a fixed
// value width; the type byte is not consulted. An unknown channel aborts
// the scan with an error, since there's no way to find the next record.
func DecodeDownlink(buf []byte) ([]Setting, error) {
	var settings []Setting
	pos := 0
	for pos < len(buf) {
		if pos+2 > len(buf) {
			return settings, fmt.Errorf("uplink: truncated downlink record at offset %d", pos)
		}
		channel := buf[pos]
		typeByte := buf[pos+1]
		pos += 2

		width, err := widthForChannel(channel, typeByte)
		if err != nil {
			return settings, err
		}
		if pos+width > len(buf) {
			return settings, fmt.Errorf("uplink: downlink value for channel 0x%02X truncated", channel)
		}
		value := buf[pos : pos+width]
		pos += width

		settings = append(settings, decodeSetting(channel, value))
	}
	return settings, nil
}

func widthForChannel(channel, typeByte byte) (int, error) {
	switch channel {
	case ChannelMeasureIntervalMS, ChannelCycleTimeoutMS:
		return 4, nil
	case ChannelSendDataType:
		return 1, nil
	case ChannelEnableDecryption:
		return 1, nil
	case ChannelAuthKey, ChannelAESKey, ChannelAESIV:
		return 16, nil
	default:
		return 0, fmt.Errorf("uplink: unknown downlink channel 0x%02X (type 0x%02X)", channel, typeByte)
	}
}

func decodeSetting(channel byte, value []byte) Setting {
	s := Setting{Channel: channel}
	switch channel {
	case ChannelMeasureIntervalMS, ChannelCycleTimeoutMS:
		s.U32 = be32Decode(value)
	case ChannelSendDataType:
		s.U8 = value[0]
	case ChannelEnableDecryption:
		s.Bool = value[0] != 0
	case ChannelAuthKey, ChannelAESKey, ChannelAESIV:
		copy(s.Key16[:], value)
	}
	return s
}

func be32Decode(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
