package transport

import (
	"fmt"

	"github.com/hollowcrest/orbstorm-mp/shared/wire"
)

// MaxFrameSize bounds a single message. Large enough for a full snapshot
// of several hundred entities, small enough to reject garbage early.
const MaxFrameSize = 64 * 1024

// EncodeFrame prefixes a payload with its opcode byte. Stream transports
// add their own length delimiter around this.
func EncodeFrame(op wire.Opcode, payload []byte) []byte {
	frame := make([]byte, 0, len(payload)+1)
	frame = append(frame, byte(op))
	return append(frame, payload...)
}

// DecodeFrame splits a frame into opcode and payload. The payload aliases
// the input buffer.
func DecodeFrame(frame []byte) (wire.Opcode, []byte, error) {
	if len(frame) < 1 {
		return 0, nil, fmt.Errorf("transport: empty frame")
	}
	if len(frame) > MaxFrameSize {
		return 0, nil, fmt.Errorf("transport: frame of %d bytes exceeds limit %d", len(frame), MaxFrameSize)
	}
	return wire.Opcode(frame[0]), frame[1:], nil
}
