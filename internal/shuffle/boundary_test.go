package shuffle

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hoshizora-net/mixshuffle/internal/anoncrypto"
	"github.com/hoshizora-net/mixshuffle/internal/transport"
	"github.com/hoshizora-net/mixshuffle/internal/wire"
)

// Adversarial boundary cases: a wrong round id injected at a message
// site, and a node that drops a ciphertext from its Phase-3 forward.

func TestPhase1LeaderDetectsRoundMismatch(t *testing.T) {
	mock := transport.NewMock()
	cfg := Config{ID: 0, KeyBits: 512, RoundID: 7, NNodes: 2, MyAddr: "leader:9000", MaxLen: 8, Transport: mock}
	leader, err := NewNode(cfg, []byte("hi"))
	require.NoError(t, err)

	kp, err := anoncrypto.GenerateKeyPair(512)
	require.NoError(t, err)
	k1PubBytes, err := anoncrypto.PublicKeyToBytes(kp.Pub)
	require.NoError(t, err)
	k2PubBytes, err := anoncrypto.PublicKeyToBytes(kp.Pub)
	require.NoError(t, err)
	sig, err := anoncrypto.Sign(kp.Priv, 1, k2PubBytes)
	require.NoError(t, err)

	badJoin := wire.P1Join{ID: 1, RoundID: 999, IP: "peer", Port: 1, K1Pub: k1PubBytes, K2PubSig: sig}
	payload, err := wire.Encode(badJoin)
	require.NoError(t, err)
	require.NoError(t, mock.Send(cfg.MyAddr, payload))

	err = leader.runPhase1()
	require.ErrorIs(t, err, ErrRoundMismatch)
}

func TestPhase4OwnVoteFalseWhenOwnCiphertextMissing(t *testing.T) {
	cfg := testConfig(0, 2)
	n, err := NewNode(cfg, []byte("x"))
	require.NoError(t, err)
	n.cipherPrime = []byte("mine")
	n.finalCiphers = []wire.P3Item{{RoundID: cfg.RoundID, Ctext: []byte("someone-elses")}}

	goVote, _ := n.phase4OwnVote()
	require.False(t, goVote)
}

// maliciousPhase3Drop mirrors runPhase3 but drops one ciphertext just
// before forwarding, simulating an attacker that substitutes or drops
// an element mid-ring.
func maliciousPhase3Drop(n *Node) error {
	n.advancePhase("anonymization (malicious)")

	var items []wire.P3Item
	if n.isLeader() {
		items = n.finalCiphers
	} else {
		recv, err := n.recvShuffle()
		if err != nil {
			return err
		}
		items = recv
	}

	peeled, err := n.peelOwnLayer(items)
	if err != nil {
		return err
	}
	shuffled, err := cryptoShuffle(peeled)
	if err != nil {
		return err
	}
	shuffled = shuffled[1:] // drop one ciphertext, regardless of whose it is

	dest := n.cfg.NextAddr
	if n.isLast() {
		dest = n.cfg.LeaderAddr
	}
	if err := n.sendShuffle(dest, shuffled); err != nil {
		return err
	}
	if n.isLeader() {
		final, err := n.recvShuffle()
		if err != nil {
			return err
		}
		n.finalCiphers = final
	}
	return nil
}

func TestFullRoundAbortsWhenCiphertextDropped(t *testing.T) {
	const n = 3
	msgs := [][]byte{[]byte("alpha"), []byte("beta"), []byte("gamma")}
	mock := transport.NewMock()
	addr := func(id int) string { return fmt.Sprintf("drop-node%d:900%d", id, id) }

	nodes := make([]*Node, n)
	for i := 0; i < n; i++ {
		cfg := Config{
			ID:         i,
			KeyBits:    512,
			RoundID:    7,
			NNodes:     n,
			MyAddr:     addr(i),
			LeaderAddr: addr(0),
			NextAddr:   addr((i + 1) % n),
			MaxLen:     16,
			Transport:  mock,
		}
		node, err := NewNode(cfg, msgs[i])
		require.NoError(t, err)
		nodes[i] = node
	}

	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := nodes[i].runPhase1(); err != nil {
				errs[i] = err
				return
			}
			if err := nodes[i].runPhase2(); err != nil {
				errs[i] = err
				return
			}
			if i == n-1 {
				errs[i] = maliciousPhase3Drop(nodes[i])
			} else {
				errs[i] = nodes[i].runPhase3()
			}
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		require.NoErrorf(t, err, "node %d phase 1-3", i)
	}

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = nodes[i].runPhase4()
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		require.ErrorIsf(t, err, ErrVerifyFailed, "node %d must abort once any honest node's ciphertext is missing", i)
	}
}
