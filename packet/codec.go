package packet

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/s2"
	"google.golang.org/protobuf/proto"
)

// JSON returns a Packetizer for values of type T, each encoded as a JSON
// value in the payload of one frame of inner.
func JSON[T any](inner Packetizer[[]byte]) Packetizer[T] { return jsonp[T]{inner: inner} }

type jsonp[T any] struct{ inner Packetizer[[]byte] }

func (j jsonp[T]) Name() string { return "json+" + j.inner.Name() }

func (j jsonp[T]) Pack(buf []byte, pkg T) ([]byte, error) {
	bits, err := json.Marshal(pkg)
	if err != nil {
		return buf, err
	}
	return j.inner.Pack(buf, bits)
}

func (j jsonp[T]) Unpack(data []byte) (T, int, error) {
	var out T
	bits, n, err := j.inner.Unpack(data)
	if err != nil || n == 0 {
		return out, n, err
	}
	if err := json.Unmarshal(bits, &out); err != nil {
		return out, 0, fmt.Errorf("%w: decoding JSON: %w", ErrMalformed, err)
	}
	return out, n, nil
}

// Proto returns a Packetizer for protocol buffer messages of type M, each
// encoded in the payload of one frame of inner. The newMessage function must
// return a new empty message to decode into.
func Proto[M proto.Message](inner Packetizer[[]byte], newMessage func() M) Packetizer[M] {
	return protop[M]{inner: inner, newMessage: newMessage}
}

type protop[M proto.Message] struct {
	inner      Packetizer[[]byte]
	newMessage func() M
}

// Deterministic output makes equal messages pack to equal frames.
var marshalOpts = proto.MarshalOptions{Deterministic: true}

func (p protop[M]) Name() string { return "proto+" + p.inner.Name() }

func (p protop[M]) Pack(buf []byte, msg M) ([]byte, error) {
	bits, err := marshalOpts.Marshal(msg)
	if err != nil {
		return buf, err
	}
	return p.inner.Pack(buf, bits)
}

func (p protop[M]) Unpack(data []byte) (M, int, error) {
	bits, n, err := p.inner.Unpack(data)
	if err != nil || n == 0 {
		var zero M
		return zero, n, err
	}
	msg := p.newMessage()
	if err := proto.Unmarshal(bits, msg); err != nil {
		var zero M
		return zero, 0, fmt.Errorf("%w: decoding %s: %w", ErrMalformed, msg.ProtoReflect().Descriptor().FullName(), err)
	}
	return msg, n, nil
}

// Compress returns a Packetizer for byte payloads that compresses each
// payload with S2 before framing it with inner. Decompressed payloads are
// limited to maxSize bytes; if maxSize ≤ 0, DefaultMaxSize is used.
func Compress(inner Packetizer[[]byte], maxSize int) Packetizer[[]byte] {
	return s2p{inner: inner, maxSize: maxSize}
}

type s2p struct {
	inner   Packetizer[[]byte]
	maxSize int
}

func (c s2p) Name() string { return "s2:" + c.inner.Name() }

func (c s2p) Pack(buf, msg []byte) ([]byte, error) {
	if limit := maxSize(c.maxSize); len(msg) > limit {
		return buf, fmt.Errorf("payload length %d exceeds %d: %w", len(msg), limit, ErrTooLarge)
	}
	return c.inner.Pack(buf, s2.Encode(nil, msg))
}

func (c s2p) Unpack(data []byte) ([]byte, int, error) {
	bits, n, err := c.inner.Unpack(data)
	if err != nil || n == 0 {
		return nil, n, err
	}
	dlen, err := s2.DecodedLen(bits)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrMalformed, err)
	} else if limit := maxSize(c.maxSize); dlen > limit {
		return nil, 0, fmt.Errorf("%w: decoded length %d exceeds %d: %w", ErrMalformed, dlen, limit, ErrTooLarge)
	}
	out, err := s2.Decode(make([]byte, dlen), bits)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return out, n, nil
}
