// Copyright (C) 2024 Michael J. Fromberger. All Rights Reserved.

// Package packet defines the Packetizer interface used by duplex channels to
// encode packages onto a byte stream and to recognize them again on the other
// side, along with implementations for several common framing disciplines.
//
// A packetizer does not read or write anything itself. Pack appends the wire
// form of a package to a buffer, and Unpack examines a run of buffered input
// and reports whether it begins with a complete frame. This division lets a
// channel accumulate input across as many underlying reads as it needs
// without the packetizer keeping any per-connection state, so a single
// packetizer value may be shared by any number of channels.
package packet

import "errors"

// A Packetizer encodes and decodes packages of type T to and from frames.
// Implementations must not retain or modify the slices passed to their
// methods, and must be safe for concurrent use by multiple goroutines.
type Packetizer[T any] interface {
	// Name returns a short descriptive name for the framing, for logs.
	Name() string

	// Pack appends the complete frame for pkg to buf and returns the updated
	// slice. If pkg cannot be represented, Pack reports an error and the
	// contents of the returned slice are unspecified.
	Pack(buf []byte, pkg T) ([]byte, error)

	// Unpack reports whether data begins with a complete frame. If so, it
	// returns the decoded package and the number n > 0 of bytes of data the
	// frame occupied.
	//
	// If data holds only a prefix of a frame, Unpack returns n == 0 and a nil
	// error; the caller should try again once more data are available.
	// If data can never begin a valid frame, Unpack reports an error wrapping
	// ErrMalformed. Unpack must not panic for any input.
	//
	// The package returned must not alias data.
	Unpack(data []byte) (pkg T, n int, err error)
}

var (
	// ErrMalformed is reported by Unpack when the buffered input cannot be
	// the prefix of any valid frame.
	ErrMalformed = errors.New("malformed frame")

	// ErrTooLarge is reported when a frame exceeds the size limit of a
	// packetizer, either on Pack or on a length read by Unpack.
	ErrTooLarge = errors.New("frame too large")

	// ErrInvalid is reported by Pack when a package cannot be represented in
	// the framing, for example a payload containing its delimiter.
	ErrInvalid = errors.New("invalid package for framing")
)

// DefaultMaxSize is the frame size limit used by packetizers whose limit is
// not set explicitly.
const DefaultMaxSize = 16 << 20

func maxSize(n int) int {
	if n <= 0 {
		return DefaultMaxSize
	}
	return n
}

// clone returns a copy of b that does not alias it. The copy is never nil, so
// an empty payload decodes as an empty, non-nil slice.
func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
