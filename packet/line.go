package packet

import (
	"bytes"
	"fmt"
)

// Line is a Packetizer for byte payloads in which each frame is terminated
// by a Unicode LF (10). Payloads may not contain LF.
var Line = Split('\n')

// Split returns a Packetizer for byte payloads in which each frame is
// terminated by the byte b. Pack reports ErrInvalid for a payload that
// contains b. Frames longer than DefaultMaxSize are rejected.
func Split(b byte) Delimited { return Delimited{Delim: b} }

// Delimited is a Packetizer for byte-terminated frames. Use Split or Line to
// construct values of this type.
type Delimited struct {
	Delim byte

	// Frames with payloads longer than this are rejected. If MaxSize ≤ 0,
	// DefaultMaxSize is used.
	MaxSize int
}

// Name implements part of the Packetizer interface.
func (d Delimited) Name() string {
	switch d.Delim {
	case '\n':
		return "line"
	case 0:
		return "nul"
	case '\x1e':
		return "rs"
	}
	return fmt.Sprintf("split:%#02x", d.Delim)
}

// Pack implements part of the Packetizer interface.
func (d Delimited) Pack(buf, msg []byte) ([]byte, error) {
	if limit := maxSize(d.MaxSize); len(msg) > limit {
		return buf, fmt.Errorf("payload length %d exceeds %d: %w", len(msg), limit, ErrTooLarge)
	}
	if i := bytes.IndexByte(msg, d.Delim); i >= 0 {
		return buf, fmt.Errorf("payload contains delimiter %#02x at offset %d: %w", d.Delim, i, ErrInvalid)
	}
	buf = append(buf, msg...)
	return append(buf, d.Delim), nil
}

// Unpack implements part of the Packetizer interface.
func (d Delimited) Unpack(data []byte) ([]byte, int, error) {
	limit := maxSize(d.MaxSize)
	i := bytes.IndexByte(data, d.Delim)
	if i < 0 {
		if len(data) > limit {
			return nil, 0, fmt.Errorf("%w: no delimiter within %d bytes: %w", ErrMalformed, limit, ErrTooLarge)
		}
		return nil, 0, nil
	} else if i > limit {
		return nil, 0, fmt.Errorf("%w: frame length %d exceeds %d: %w", ErrMalformed, i, limit, ErrTooLarge)
	}
	return clone(data[:i]), i + 1, nil
}
