package transport

import (
	"container/list"
	"sync"
)

// Mock is an in-memory Transport shared by every node in a test round:
// Send enqueues onto the destination address's inbox, RecvN blocks on
// a condition variable until enough frames have arrived. This lets the
// five-phase state machine in package shuffle be exercised without
// opening real sockets: the phase handlers call Send and RecvN on
// whatever Transport their Config carries.
type Mock struct {
	mu      sync.Mutex
	cond    *sync.Cond
	inboxes map[string]*list.List
}

type mockFrame struct {
	payload []byte
	from    string
}

// NewMock creates a fresh virtual network with no addresses registered yet.
func NewMock() *Mock {
	m := &Mock{inboxes: make(map[string]*list.List)}
	m.cond = sync.NewCond(&m.mu)
	return m
}

func (m *Mock) inbox(addr string) *list.List {
	l, ok := m.inboxes[addr]
	if !ok {
		l = list.New()
		m.inboxes[addr] = l
	}
	return l
}

// Send enqueues frame onto addr's inbox and wakes any blocked RecvN.
// The mock has no dialing side and therefore no real source address;
// frames are reported as originating from the inbox they landed in.
func (m *Mock) Send(addr string, frame []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := append([]byte(nil), frame...)
	m.inbox(addr).PushBack(mockFrame{payload: cp, from: addr})
	m.cond.Broadcast()
	return nil
}

// RecvN blocks until addr's inbox holds at least n frames, then
// returns the first n in arrival order.
func (m *Mock) RecvN(addr string, n int) ([][]byte, []string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	box := m.inbox(addr)
	for box.Len() < n {
		m.cond.Wait()
	}

	frames := make([][]byte, 0, n)
	froms := make([]string, 0, n)
	for i := 0; i < n; i++ {
		front := box.Front()
		mf := front.Value.(mockFrame)
		box.Remove(front)
		frames = append(frames, mf.payload)
		froms = append(froms, mf.from)
	}
	return frames, froms, nil
}
