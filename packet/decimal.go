package packet

import (
	"bytes"
	"fmt"
	"strconv"
)

// Decimal is a Packetizer for byte payloads in which each frame is prefixed
// by its length encoded as a line of decimal digits.
//
// For example, the payload "empanada\n" is encoded as:
//
//	9\n
//	empanada\n
type Decimal struct {
	// Frames with payloads longer than this are rejected. If MaxSize ≤ 0,
	// DefaultMaxSize is used.
	MaxSize int
}

// maxDigits bounds the length line; no valid size needs more.
const maxDigits = 20

// Name implements part of the Packetizer interface.
func (Decimal) Name() string { return "decimal" }

// Pack implements part of the Packetizer interface.
func (d Decimal) Pack(buf, msg []byte) ([]byte, error) {
	if limit := maxSize(d.MaxSize); len(msg) > limit {
		return buf, fmt.Errorf("payload length %d exceeds %d: %w", len(msg), limit, ErrTooLarge)
	}
	buf = strconv.AppendInt(buf, int64(len(msg)), 10)
	buf = append(buf, '\n')
	return append(buf, msg...), nil
}

// Unpack implements part of the Packetizer interface.
func (d Decimal) Unpack(data []byte) ([]byte, int, error) {
	i := bytes.IndexByte(data, '\n')
	if i < 0 {
		if len(data) > maxDigits {
			return nil, 0, fmt.Errorf("%w: length line too long", ErrMalformed)
		}
		return nil, 0, nil
	}
	pfx := data[:i]
	if len(pfx) == 0 || len(pfx) > maxDigits || pfx[0] == '+' || pfx[0] == '-' {
		return nil, 0, fmt.Errorf("%w: invalid length %q", ErrMalformed, pfx)
	}
	ln, err := strconv.ParseUint(string(pfx), 10, 64)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: invalid length %q", ErrMalformed, pfx)
	}
	if limit := maxSize(d.MaxSize); ln > uint64(limit) {
		return nil, 0, fmt.Errorf("%w: declared length %d exceeds %d: %w", ErrMalformed, ln, limit, ErrTooLarge)
	}
	start := i + 1
	end := start + int(ln)
	if len(data) < end {
		return nil, 0, nil
	}
	return clone(data[start:end]), end, nil
}
