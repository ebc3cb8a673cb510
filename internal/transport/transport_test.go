package transport

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMockSendRecvN(t *testing.T) {
	m := NewMock()

	var wg sync.WaitGroup
	var frames [][]byte
	var err error
	wg.Add(1)
	go func() {
		defer wg.Done()
		frames, _, err = m.RecvN("node-a", 3)
	}()

	require.NoError(t, m.Send("node-a", []byte("one")))
	require.NoError(t, m.Send("node-a", []byte("two")))
	require.NoError(t, m.Send("node-a", []byte("three")))
	wg.Wait()

	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("one"), []byte("two"), []byte("three")}, frames)
}

// freeAddr grabs an ephemeral TCP port by briefly listening on it,
// then frees it for the real test listener to bind.
func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

// sendWithRetry repeatedly attempts Send until the peer's listener is
// up (RecvN binds asynchronously in a goroutine in these tests), so
// the test never has to sacrifice one of RecvN's n accepted
// connections to a bare connectivity probe.
func sendWithRetry(t *testing.T, tr TCP, addr string, frame []byte) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	var lastErr error
	for time.Now().Before(deadline) {
		if err := tr.Send(addr, frame); err == nil {
			return
		} else {
			lastErr = err
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("send to %s never succeeded: %v", addr, lastErr)
}

func TestTCPSendRecvRoundTrip(t *testing.T) {
	tr := TCP{}
	addr := freeAddr(t)

	var got [][]byte
	var froms []string
	var recvErr error
	done := make(chan struct{})
	go func() {
		got, froms, recvErr = tr.RecvN(addr, 1)
		close(done)
	}()

	sendWithRetry(t, tr, addr, []byte("payload"))
	<-done
	require.NoError(t, recvErr)
	require.Equal(t, [][]byte{[]byte("payload")}, got)
	require.Len(t, froms, 1)
}

func TestTCPRecvNCollectsInArrivalOrder(t *testing.T) {
	tr := TCP{}
	addr := freeAddr(t)

	var got [][]byte
	done := make(chan struct{})
	go func() {
		got, _, _ = tr.RecvN(addr, 2)
		close(done)
	}()

	sendWithRetry(t, tr, addr, []byte("first"))
	require.NoError(t, tr.Send(addr, []byte("second")))
	<-done
	require.Equal(t, [][]byte{[]byte("first"), []byte("second")}, got)
}
