// Copyright (C) 2017 Michael J. Fromberger. All Rights Reserved.

package server_test

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/creachadair/duplex"
	"github.com/creachadair/duplex/packet"
	"github.com/creachadair/duplex/server"
)

func ExampleNewLocal() {
	done := make(chan struct{})
	loc := server.NewLocal(packet.Line, duplex.HandlerFunc[[]byte](func(_ context.Context, pkg []byte) error {
		fmt.Println(strings.ToUpper(string(pkg)))
		if string(pkg) == "goodbye" {
			close(done)
		}
		return nil
	}), nil)
	defer loc.Close()

	for _, msg := range []string{"hello, world", "goodbye"} {
		if err := loc.Client.Write(context.Background(), []byte(msg)); err != nil {
			log.Fatalf("Write failed: %v", err)
		}
	}
	<-done
	// Output:
	// HELLO, WORLD
	// GOODBYE
}
