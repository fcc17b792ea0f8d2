// Package dlmsrouter decides whether a validated HDLC payload carries a
// GBT APDU, stripping the optional LLC prefix before handing the rest to
// the GBT reassembler.
package dlmsrouter

const (
	hdlcHeaderLen = 8 // format, addresses, control, HCS — still present in the frame payload
	llcHeaderLen  = 3
	gbtTag        = 0xE0
)

var llcPrefix = [2]byte{0xE6, 0xE7}

// BlockSink receives forwarded GBT blocks; pkg/gbt.Reassembler implements it.
type BlockSink interface {
	PushBlock(block []byte)
	Reset()
}

// Decrypter optionally unwraps a ciphered payload before GBT routing.
// pkg/cipher.Unwrapper implements it; a nil Decrypter leaves ciphered
// APDUs unhandled, matching spec.md's "acknowledged but unfinished" scope.
type Decrypter interface {
	Unwrap(payload []byte) ([]byte, error)
}

// Router strips the LLC prefix (if present) and forwards GBT APDUs to sink.
// Non-GBT payloads are dropped silently, per spec.
type Router struct {
	sink      BlockSink
	decrypter Decrypter
}

// NewRouter returns a router that forwards recognized GBT blocks to sink.
func NewRouter(sink BlockSink) *Router {
	return &Router{sink: sink}
}

// WithDecrypter installs an optional pre-stage that unwraps ciphered APDUs
// before LLC/GBT inspection.
func (r *Router) WithDecrypter(d Decrypter) *Router {
	r.decrypter = d
	return r
}

// HandleFrame processes one deframed HDLC payload. valid=false resets the
// downstream reassembler without inspecting the payload at all. A valid
// payload still carries its 8-byte HDLC header (format, addresses, control,
// HCS), which is discarded here before LLC/GBT inspection.
func (r *Router) HandleFrame(payload []byte, valid bool) {
	if !valid {
		r.sink.Reset()
		return
	}

	if len(payload) < hdlcHeaderLen {
		return
	}
	payload = payload[hdlcHeaderLen:]

	if r.decrypter != nil {
		plain, err := r.decrypter.Unwrap(payload)
		if err != nil {
			return
		}
		payload = plain
	}

	cursor := 0
	if len(payload) >= 2 && payload[0] == llcPrefix[0] && payload[1] == llcPrefix[1] {
		cursor += llcHeaderLen
	}

	if cursor >= len(payload) || payload[cursor] != gbtTag {
		return
	}

	r.sink.PushBlock(payload[cursor:])
}
