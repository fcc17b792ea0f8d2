// Package cipher implements the optional GCM-AES unwrap stage for ciphered
// APDUs (tag 0xDB). It is dormant by default — spec.md documents this as an
// acknowledged but unfinished code path, wired in as a pluggable transform
// rather than mandatory behavior.
package cipher

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
)

const cipheredTag = 0xDB

// ErrKeyRequired is returned when a ciphered APDU arrives but no AES key
// has been configured.
var ErrKeyRequired = errors.New("cipher: AES key required to unwrap ciphered APDU")

// Unwrapper holds the key material needed to GCM-decrypt a ciphered APDU.
// SystemTitle is the 8-byte device identifier the IV is built from;
// FrameCounter supplies the 4-byte counter suffix; Unwrap never changes it.
type Unwrapper struct {
	Key          []byte
	SystemTitle  [8]byte
	FrameCounter uint32
}

// IsCiphered reports whether payload begins with the global-ciphering tag.
func IsCiphered(payload []byte) bool {
	return len(payload) > 0 && payload[0] == cipheredTag
}

// Unwrap decrypts a ciphered APDU into a new buffer and returns it. Non-
// ciphered payloads pass through unchanged. Call sites treat any error as
// non-fatal: drop the frame and let the reassembler reset, per spec.md's
// "no full DLMS client state machine" scope — there's no retry.
func (u *Unwrapper) Unwrap(payload []byte) ([]byte, error) {
	if !IsCiphered(payload) {
		return payload, nil
	}
	if len(u.Key) == 0 {
		return nil, ErrKeyRequired
	}
	if len(payload) < 2 {
		return nil, fmt.Errorf("cipher: ciphered APDU too short: %d bytes", len(payload))
	}

	// payload[1] is the security control byte; the ciphertext follows it.
	ciphertext := payload[2:]

	block, err := aes.NewCipher(u.Key)
	if err != nil {
		return nil, fmt.Errorf("cipher: invalid AES key: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher: GCM init failed: %w", err)
	}

	iv := u.buildIV()
	plaintext, err := gcm.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("cipher: GCM open failed: %w", err)
	}
	return plaintext, nil
}

// buildIV concatenates the system title with the big-endian frame counter,
// the standard DLMS/COSEM ciphering IV construction.
func (u *Unwrapper) buildIV() []byte {
	iv := make([]byte, 12)
	copy(iv[:8], u.SystemTitle[:])
	iv[8] = byte(u.FrameCounter >> 24)
	iv[9] = byte(u.FrameCounter >> 16)
	iv[10] = byte(u.FrameCounter >> 8)
	iv[11] = byte(u.FrameCounter)
	return iv
}
