// Copyright (C) 2024 Michael J. Fromberger. All Rights Reserved.

/*
Package duplex implements framed duplex channels over byte transports.

A Channel turns a bidirectional byte stream into a sequence of discrete
packages. The shape of a package on the wire is defined by a
packet.Packetizer, and the bytes move over a transport.Duplex, which has an
input endpoint and an output endpoint:

	cli, srv := transport.Pair(nil)
	ch := duplex.New(cli, packet.LengthPrefix{}, nil)
	defer ch.Close()

# Writing

Any number of goroutines may call Write concurrently. Each call packs its
package and flushes it to the output endpoint while holding the channel's
single write permit, so that the frames of concurrent writers are never
interleaved. A writer that does not get the permit immediately waits in line
for it, until its context ends or the channel closes:

	if err := ch.Write(ctx, []byte("hello")); err != nil {
		log.Fatalf("Write: %v", err)
	}

# Receiving

Start launches the receive loop of the channel, which reads from the input
endpoint, extracts as many complete frames as the input contains, and passes
each decoded package to a Handler before reading more:

	ch.Start(ctx, duplex.HandlerFunc[[]byte](func(ctx context.Context, pkg []byte) error {
		log.Printf("Received %q", pkg)
		return nil
	}))

A partial frame remains buffered until the rest of it arrives. The loop ends
cleanly when the input ends or the loop context is canceled, and with an error
if the transport fails or the input contains a malformed frame. In the error
case the input endpoint is completed with that error. Use Wait or WaitStatus
to find out how the loop ended.

A Handler may implement the optional Starter and Finisher interfaces to run
code when the loop starts and after it ends.

# Closing

Close tears down the transport and causes pending and future writes to fail
with ErrClosed. It is safe to call Close more than once, and from multiple
goroutines concurrently.
*/
package duplex
