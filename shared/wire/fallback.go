package wire

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hollowcrest/orbstorm-mp/shared/netstate"
)

// FormatVersion tags every fallback-encoded message. Deltas and the
// auxiliary event messages use a one-byte version tag followed by a textual
// body instead of a packed layout. Whether deltas deserve genuine bit-flag
// field compression for bandwidth parity is an open question; the simpler
// encoding is kept deliberately and the version tag leaves room to change
// it without a flag day.
const FormatVersion byte = 1

// ErrUnknownFormat is returned when a fallback message carries a version
// tag this build does not recognize. Failing loudly beats misparsing.
var ErrUnknownFormat = errors.New("wire: unrecognized format version")

// EncodeTagged wraps any fallback-encoded payload with the format version
// tag.
func EncodeTagged(v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("wire: encode fallback: %w", err)
	}
	out := make([]byte, 0, len(body)+1)
	out = append(out, FormatVersion)
	return append(out, body...), nil
}

// DecodeTagged checks the version tag and unmarshals the textual body
// into v.
func DecodeTagged(data []byte, v any) error {
	if len(data) < 2 {
		return fmt.Errorf("%w: fallback message needs a tag and a body, got %d bytes", ErrTruncated, len(data))
	}
	if data[0] != FormatVersion {
		return fmt.Errorf("%w: got %d, want %d", ErrUnknownFormat, data[0], FormatVersion)
	}
	if err := json.Unmarshal(data[1:], v); err != nil {
		return fmt.Errorf("wire: decode fallback: %w", err)
	}
	return nil
}

// EncodeDelta encodes a delta with the fallback encoding.
func EncodeDelta(d *netstate.Delta) ([]byte, error) {
	return EncodeTagged(d)
}

// DecodeDelta decodes a fallback-encoded delta. Unknown version tags fail
// with ErrUnknownFormat rather than silently misparsing.
func DecodeDelta(data []byte) (*netstate.Delta, error) {
	var d netstate.Delta
	if err := DecodeTagged(data, &d); err != nil {
		return nil, err
	}
	return &d, nil
}
