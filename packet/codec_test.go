package packet_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/creachadair/duplex/packet"
	"github.com/google/go-cmp/cmp"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type point struct {
	X, Y int
	Tag  string `json:"tag,omitempty"`
}

func TestJSON(t *testing.T) {
	pz := packet.JSON[point](packet.Line)
	if got, want := pz.Name(), "json+line"; got != want {
		t.Errorf("Name: got %q, want %q", got, want)
	}

	var buf []byte
	want := []point{{1, 2, ""}, {3, 4, "xyzzy"}, {-5, 0, "plugh"}}
	for _, p := range want {
		var err error
		buf, err = pz.Pack(buf, p)
		if err != nil {
			t.Fatalf("Pack(%+v): unexpected error: %v", p, err)
		}
	}

	var got []point
	for len(buf) != 0 {
		p, n, err := pz.Unpack(buf)
		if err != nil {
			t.Fatalf("Unpack: unexpected error: %v", err)
		} else if n == 0 {
			t.Fatalf("Unpack: incomplete frame %q", buf)
		}
		got = append(got, p)
		buf = buf[n:]
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Decoded points (-want, +got):\n%s", diff)
	}

	// A complete frame that is not valid JSON is malformed.
	if p, n, err := pz.Unpack([]byte("{bogus\n")); !errors.Is(err, packet.ErrMalformed) {
		t.Errorf("Unpack(bogus): got (%+v, %d, %v), want ErrMalformed", p, n, err)
	}

	// An incomplete frame is not an error.
	if p, n, err := pz.Unpack([]byte(`{"X":1`)); err != nil || n != 0 {
		t.Errorf("Unpack(partial): got (%+v, %d, %v), want incomplete", p, n, err)
	}
}

func TestProto(t *testing.T) {
	pz := packet.Proto(packet.Varint{}, func() *wrapperspb.StringValue { return new(wrapperspb.StringValue) })

	want := wrapperspb.String("a cheese shop sketch")
	frame, err := pz.Pack(nil, want)
	if err != nil {
		t.Fatalf("Pack: unexpected error: %v", err)
	}
	for i := 0; i < len(frame); i++ {
		if _, n, err := pz.Unpack(frame[:i]); err != nil || n != 0 {
			t.Fatalf("Unpack(frame[:%d]): got (%d, %v), want incomplete", i, n, err)
		}
	}
	got, n, err := pz.Unpack(frame)
	if err != nil {
		t.Fatalf("Unpack: unexpected error: %v", err)
	}
	if n != len(frame) {
		t.Errorf("Unpack consumed %d bytes, want %d", n, len(frame))
	}
	if !proto.Equal(got, want) {
		t.Errorf("Unpack: got %v, want %v", got, want)
	}

	// Field 1 declared as a length-delimited string that runs off the end.
	bad, _ := packet.Varint{}.Pack(nil, []byte{0x0a, 0x7f, 'x'})
	if got, n, err := pz.Unpack(bad); !errors.Is(err, packet.ErrMalformed) {
		t.Errorf("Unpack(bad): got (%v, %d, %v), want ErrMalformed", got, n, err)
	}
}

func TestCompress(t *testing.T) {
	pz := packet.Compress(packet.LengthPrefix{}, 1<<20)
	msg := strings.Repeat("all work and no play makes jack a dull boy ", 500)
	frame, err := pz.Pack(nil, []byte(msg))
	if err != nil {
		t.Fatalf("Pack: unexpected error: %v", err)
	}
	if len(frame) >= len(msg) {
		t.Errorf("Compressed frame is %d bytes, payload is %d", len(frame), len(msg))
	}
	got, n, err := pz.Unpack(frame)
	if err != nil || n != len(frame) {
		t.Fatalf("Unpack: got (%d, %v), want (%d, nil)", n, err, len(frame))
	}
	if string(got) != msg {
		t.Errorf("Unpack: payload mismatch (%d bytes)", len(got))
	}

	// The decompressed size limit applies on input.
	small := packet.Compress(packet.LengthPrefix{}, 16)
	if _, _, err := small.Unpack(frame); !errors.Is(err, packet.ErrTooLarge) {
		t.Errorf("Unpack with small limit: got %v, want ErrTooLarge", err)
	}

	// A frame whose payload is not S2 data is malformed.
	junk, _ := packet.LengthPrefix{}.Pack(nil, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01})
	if _, _, err := pz.Unpack(junk); !errors.Is(err, packet.ErrMalformed) {
		t.Errorf("Unpack(junk): got %v, want ErrMalformed", err)
	}
}
