package core

// Frame is an encoded outbound event ready for the wire.
type Frame []byte

// SignalConnection abstracts the messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// TrySend queues a frame without blocking and reports backpressure
	// as an error. Safe to call from any goroutine.
	TrySend(Frame) error
	Close()
}
