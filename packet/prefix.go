package packet

import (
	"encoding/binary"
	"fmt"
)

// LengthPrefix is a Packetizer for byte payloads in which each frame is a
// 4-byte little-endian payload length followed by that many bytes of payload.
//
// For example, the payload "hello" is encoded as:
//
//	05 00 00 00 68 65 6c 6c 6f
//
// A zero LengthPrefix is ready for use and limits payloads to DefaultMaxSize.
type LengthPrefix struct {
	// Frames with payloads longer than this are rejected. If MaxSize ≤ 0,
	// DefaultMaxSize is used.
	MaxSize int
}

// PrefixLen is the length in bytes of a LengthPrefix frame header.
const PrefixLen = 4

// Name implements part of the Packetizer interface.
func (LengthPrefix) Name() string { return "prefix32" }

// Pack implements part of the Packetizer interface.
func (p LengthPrefix) Pack(buf, msg []byte) ([]byte, error) {
	if limit := maxSize(p.MaxSize); len(msg) > limit {
		return buf, fmt.Errorf("payload length %d exceeds %d: %w", len(msg), limit, ErrTooLarge)
	}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(msg)))
	return append(buf, msg...), nil
}

// Unpack implements part of the Packetizer interface.
func (p LengthPrefix) Unpack(data []byte) ([]byte, int, error) {
	if len(data) < PrefixLen {
		return nil, 0, nil
	}
	ln := binary.LittleEndian.Uint32(data)
	if limit := maxSize(p.MaxSize); uint64(ln) > uint64(limit) {
		return nil, 0, fmt.Errorf("%w: declared length %d exceeds %d: %w", ErrMalformed, ln, limit, ErrTooLarge)
	}
	end := PrefixLen + int(ln)
	if len(data) < end {
		return nil, 0, nil
	}
	return clone(data[PrefixLen:end]), end, nil
}
