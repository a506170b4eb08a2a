package main

import (
	"bytes"
	"context"
	"flag"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/creachadair/duplex"
	"github.com/creachadair/duplex/internal/testutil"
	"github.com/creachadair/duplex/packet"
	"github.com/creachadair/duplex/server"
	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
)

func TestParseArgs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dxcat.toml")
	if err := os.WriteFile(path, []byte(`
address = "localhost:9999"
framing = "line"
compress = true
wait = "1s"
`), 0600); err != nil {
		t.Fatalf("Writing config: %v", err)
	}

	tests := []struct {
		name string
		args []string
		want Config
	}{
		{"Defaults", []string{"host:1"}, Config{
			Address: "host:1", Framing: "prefix32", DialTimeout: "5s", Wait: "0s", LogLevel: "info",
		}},
		{"File", []string{"-config", path}, Config{
			Address: "localhost:9999", Framing: "line", Compress: true, DialTimeout: "5s", Wait: "1s", LogLevel: "info",
		}},
		{"FlagsWin", []string{"-config", path, "-f", "varint", "-z=false", "-l", "other:2"}, Config{
			Address: "other:2", Listen: true, Framing: "varint", DialTimeout: "5s", Wait: "1s", LogLevel: "info",
		}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			fs := flag.NewFlagSet("test", flag.ContinueOnError)
			got, err := parseArgs(fs, test.args)
			if err != nil {
				t.Fatalf("parseArgs: unexpected error: %v", err)
			}
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("Config (-want, +got):\n%s", diff)
			}
		})
	}

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if cfg, err := parseArgs(fs, nil); err == nil {
		t.Errorf("parseArgs without address: got %+v, want error", cfg)
	}
}

func TestPacketizer(t *testing.T) {
	pz, err := Config{Framing: "varint", Compress: true}.packetizer()
	if err != nil {
		t.Fatalf("packetizer: unexpected error: %v", err)
	}
	if got, want := pz.Name(), "s2:varint"; got != want {
		t.Errorf("Name: got %q, want %q", got, want)
	}
	if pz, err := (Config{Framing: "bogus"}).packetizer(); err == nil {
		t.Errorf("packetizer(bogus): got %v, want error", pz.Name())
	}
	if _, err := (Config{Wait: "soon"}).wait(); err == nil {
		t.Error("wait(soon): got nil, want error")
	}
}

func TestSendAndPrint(t *testing.T) {
	var out bytes.Buffer
	rec := testutil.NewRecorder[[]byte](-1)
	loc := server.NewLocal(packet.Line, rec, nil)

	if err := send(context.Background(), loc.Client, strings.NewReader("one\ntwo\n\nthree")); err != nil {
		t.Fatalf("send: unexpected error: %v", err)
	}
	if err := loc.Close(); err != nil {
		t.Fatalf("Close: unexpected error: %v", err)
	}
	for _, pkg := range rec.Packages() {
		printer(&out, "> ").Handle(context.Background(), pkg)
	}
	if diff := cmp.Diff("> one\n> two\n> \n> three\n", out.String()); diff != "" {
		t.Errorf("Output (-want, +got):\n%s", diff)
	}
}

// syncBuffer is a bytes.Buffer safe for concurrent use.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func TestRun(t *testing.T) {
	lst, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	pz := packet.Named("decimal")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var srvOut syncBuffer
	done := make(chan error, 1)
	go func() {
		done <- listen(ctx, lst, pz, false, &duplex.Options{Logger: func(text string) { t.Log(text) }}, &srvOut)
	}()

	var cliOut bytes.Buffer
	cfg := Config{Address: lst.Addr().String(), Framing: "decimal", DialTimeout: "1s"}
	if err := run(ctx, cfg, zerolog.Nop(), strings.NewReader("hello\nworld\n"), &cliOut); err != nil {
		t.Errorf("run: unexpected error: %v", err)
	}

	// Stop the listener and wait for the session to finish reading.
	lst.Close()
	if err := testutil.Recv(t, done); err != nil {
		t.Errorf("listen: unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(srvOut.String()), "\n")
	if len(lines) != 2 || !strings.HasSuffix(lines[0], " hello") || !strings.HasSuffix(lines[1], " world") {
		t.Errorf("Server output: got %q", lines)
	}
}
