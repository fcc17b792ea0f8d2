// Package lgmeter implements the LG-family meter extractor: it walks the
// typed value list produced by pkg/axdr, pulls the logical device name out
// of the COSEM capability descriptor, and forwards measurement leaves to
// an uplink encoder.
package lgmeter

import (
	"errors"

	"github.com/NotCoffee418/lgmbus_gateway/pkg/axdr"
)

const (
	descriptorOBIS      = "0.8.25.9.0.255"
	descriptorSkip       = 14
	measurementChannel   = 10
	descriptorMetaDepth  = 4
	descriptorMetaSkip   = 4
	maxDeviceNameLen     = 64
)

// ErrDescriptorNotFound means the capability descriptor OBIS string never
// appeared in the value list — the extractor gives up on this APDU.
var ErrDescriptorNotFound = errors.New("lgmeter: capability descriptor not found")

// ErrDescriptorMalformed means the descriptor was found but the value
// immediately after it was not the expected device-name octet-string.
var ErrDescriptorMalformed = errors.New("lgmeter: capability descriptor malformed")

// Encoder is the subset of pkg/uplink.Encoder the extractor needs.
type Encoder interface {
	EncodeValue(channel byte, v axdr.Value) error
}

// Info is what the extractor recovers about the meter itself, as opposed
// to its measurements (which go straight to the uplink encoder).
type Info struct {
	LogicalDeviceName string
}

// Extract walks values, finds the LG capability descriptor, and forwards
// every measurement leaf after it to enc on channel 10.
func Extract(values []axdr.Value, enc Encoder) (Info, error) {
	descIdx := -1
	for i, v := range values {
		if v.Kind == axdr.KindString && v.Str == descriptorOBIS {
			descIdx = i
			break
		}
	}
	if descIdx == -1 {
		return Info{}, ErrDescriptorNotFound
	}

	nameIdx := descIdx + 1
	if nameIdx >= len(values) || values[nameIdx].Kind != axdr.KindString {
		return Info{}, ErrDescriptorMalformed
	}
	name := values[nameIdx].Str
	if len(name) > maxDeviceNameLen {
		name = name[:maxDeviceNameLen]
	}

	cursor := descIdx + descriptorSkip
	for i := cursor; i < len(values); {
		v := values[i]
		if v.StructDepth == descriptorMetaDepth {
			i += descriptorMetaSkip
			continue
		}
		if err := enc.EncodeValue(measurementChannel, v); err != nil {
			return Info{LogicalDeviceName: name}, err
		}
		i++
	}

	return Info{LogicalDeviceName: name}, nil
}
