package transport

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"
)

// maxFrameBytes bounds a single frame so a misbehaving or malicious
// peer can't force an unbounded allocation on RecvN.
const maxFrameBytes = 256 << 20 // 256MB

// TCP is the production Transport: plain TCP with a 4-byte
// big-endian length prefix per frame.
type TCP struct {
	// DialTimeout bounds each outbound connection attempt. Zero means
	// no timeout (net.Dial's default blocking behavior).
	DialTimeout time.Duration
}

// Send opens a TCP connection to addr, writes one length-prefixed
// frame, and closes.
func (t TCP) Send(addr string, frame []byte) error {
	var conn net.Conn
	var err error
	if t.DialTimeout > 0 {
		conn, err = net.DialTimeout("tcp", addr, t.DialTimeout)
	} else {
		conn, err = net.Dial("tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", ErrTransportFailed, addr, err)
	}
	defer conn.Close()

	if err := writeFrame(conn, frame); err != nil {
		return fmt.Errorf("%w: write to %s: %v", ErrTransportFailed, addr, err)
	}
	return nil
}

// RecvN listens on selfAddr and blocks until exactly n inbound
// connections have each delivered one frame.
func (t TCP) RecvN(selfAddr string, n int) ([][]byte, []string, error) {
	ln, err := net.Listen("tcp", selfAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: listen %s: %v", ErrTransportFailed, selfAddr, err)
	}
	defer ln.Close()

	frames := make([][]byte, 0, n)
	froms := make([]string, 0, n)
	for i := 0; i < n; i++ {
		conn, err := ln.Accept()
		if err != nil {
			return nil, nil, fmt.Errorf("%w: accept on %s: %v", ErrTransportFailed, selfAddr, err)
		}
		frame, err := readFrame(conn)
		remote := conn.RemoteAddr().String()
		conn.Close()
		if err != nil {
			return nil, nil, fmt.Errorf("%w: read from %s: %v", ErrTransportFailed, remote, err)
		}
		frames = append(frames, frame)
		froms = append(froms, remote)
	}
	return frames, froms, nil
}

func writeFrame(w io.Writer, payload []byte) error {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > maxFrameBytes {
		return nil, fmt.Errorf("frame of %d bytes exceeds limit", n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}
