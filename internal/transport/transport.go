// Package transport is the blocking point-to-point byte-delivery layer
// the shuffle engine is built on: a thin, length-framed wrapper over
// raw sockets. It supplies only the send/recv-n contract the engine
// calls; everything below that is the OS socket layer's problem.
package transport

import "errors"

// ErrTransportFailed is returned for any I/O failure: a connection
// that can't be dialed, an accept that errors, a frame that can't be
// read in full. The engine treats it as fatal to the round.
var ErrTransportFailed = errors.New("transport: failed")

// Transport is the C3 contract: blocking send to one address, and
// blocking listen-and-collect-exactly-n from peers. There is no
// timeout or retry policy here; a non-responding peer manifests as an
// indefinite block unless a deadline-aware implementation is used.
type Transport interface {
	// Send opens a connection to addr, writes one length-prefixed
	// frame, and closes.
	Send(addr string, frame []byte) error

	// RecvN listens on selfAddr and returns exactly n inbound frames
	// in arrival order, along with the observed source address of
	// each. It blocks until all n have arrived.
	RecvN(selfAddr string, n int) (frames [][]byte, fromAddrs []string, err error)
}
