package duplex

import "context"

// A Handler consumes the packages received by a channel. The receive loop
// calls Handle for each package in order of arrival, and does not read further
// input until Handle returns. An error reported by Handle does not stop the
// loop.
type Handler[T any] interface {
	Handle(ctx context.Context, pkg T) error
}

// HandlerFunc adapts a function to a Handler.
type HandlerFunc[T any] func(context.Context, T) error

// Handle implements the Handler interface by calling f.
func (f HandlerFunc[T]) Handle(ctx context.Context, pkg T) error { return f(ctx, pkg) }

// A Starter is an optional interface for a Handler that must do some work
// when the receive loop starts. If OnStartReceiveLoop reports an error, the
// loop exits with that error without reading any input.
type Starter interface {
	OnStartReceiveLoop(ctx context.Context) error
}

// A Finisher is an optional interface for a Handler that must do some work
// when the receive loop ends. OnEndReceiveLoop is called exactly once with the
// final status of the loop, whether or not it succeeded.
type Finisher interface {
	OnEndReceiveLoop(LoopStatus)
}
