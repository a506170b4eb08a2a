package packet

import (
	"encoding/binary"
	"fmt"
)

// Varint is a Packetizer for byte payloads in which each frame is prefixed by
// its length encoded as a varint, as defined by the encoding/binary package.
type Varint struct {
	// Frames with payloads longer than this are rejected. If MaxSize ≤ 0,
	// DefaultMaxSize is used.
	MaxSize int
}

// Name implements part of the Packetizer interface.
func (Varint) Name() string { return "varint" }

// Pack implements part of the Packetizer interface.
func (v Varint) Pack(buf, msg []byte) ([]byte, error) {
	if limit := maxSize(v.MaxSize); len(msg) > limit {
		return buf, fmt.Errorf("payload length %d exceeds %d: %w", len(msg), limit, ErrTooLarge)
	}
	buf = binary.AppendUvarint(buf, uint64(len(msg)))
	return append(buf, msg...), nil
}

// Unpack implements part of the Packetizer interface.
func (v Varint) Unpack(data []byte) ([]byte, int, error) {
	ln, nb := binary.Uvarint(data)
	if nb == 0 {
		// A varint is at most binary.MaxVarintLen64 bytes, so a longer prefix
		// with no terminating byte can never complete.
		if len(data) >= binary.MaxVarintLen64 {
			return nil, 0, fmt.Errorf("%w: unterminated varint length", ErrMalformed)
		}
		return nil, 0, nil
	} else if nb < 0 {
		return nil, 0, fmt.Errorf("%w: varint length overflows 64 bits", ErrMalformed)
	}
	if limit := maxSize(v.MaxSize); ln > uint64(limit) {
		return nil, 0, fmt.Errorf("%w: declared length %d exceeds %d: %w", ErrMalformed, ln, limit, ErrTooLarge)
	}
	end := nb + int(ln)
	if len(data) < end {
		return nil, 0, nil
	}
	return clone(data[nb:end]), end, nil
}
