// Package hdlc implements the character-oriented HDLC deframer that sits in
// front of the DLMS/COSEM pipeline: byte-stuffed frames in, validated
// payloads out.
package hdlc

import "github.com/sigurn/crc16"

// fcsParams describes the PPP/HDLC FCS-16 algorithm (RFC 1662): polynomial
// 0x1021, reflected input and output, seed 0xFFFF. XorOut is left at zero
// so Checksum returns the pre-complement value the wire format's own XOR
// and byte-swap are applied to, matching the FCS algorithm as specified.
var fcsParams = crc16.Params{
	Poly:   0x1021,
	Init:   0xFFFF,
	RefIn:  true,
	RefOut: true,
	XorOut: 0x0000,
	Name:   "CRC-16/HDLC-FCS-PRECOMPLEMENT",
}

var fcsTable = crc16.MakeTable(fcsParams)

// computeFCS returns the pre-complement FCS-16 over data.
func computeFCS(data []byte) uint16 {
	return crc16.Checksum(data, fcsTable)
}

// verifyFCS reports whether storedBE (the two FCS bytes read big-endian
// from the wire) matches the FCS computed over data.
//
// The wire transmits the one's complement of the computed FCS, low byte
// first; reading those two bytes as big-endian therefore yields the
// byte-swapped complement, so the comparison undoes both transformations.
func verifyFCS(data []byte, storedBE uint16) bool {
	computed := computeFCS(data)
	want := swap16(computed ^ 0xFFFF)
	return storedBE == want
}

func swap16(v uint16) uint16 {
	return (v>>8)&0xFF | (v&0xFF)<<8
}
