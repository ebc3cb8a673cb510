package shuffle

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/hoshizora-net/mixshuffle/internal/anoncrypto"
	"github.com/hoshizora-net/mixshuffle/internal/wire"
)

// runPhase3 is the anonymizing ring walk. Node 0 starts with the
// ciphertext list assembled in Phase 2 (peers in ascending id order,
// then its own); each node in turn
// peels exactly one K1 layer (its own) from every item, applies a
// fresh uniformly random permutation, and forwards the result to the
// next node in the ring. By the time the walk returns to node 0, every
// K1 layer has been peeled by its rightful owner and the list has been
// permuted once by every node, so no single node knows the final order.
func (n *Node) runPhase3() error {
	n.advancePhase("anonymization")

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
		return fmt.Errorf("shuffle: phase3: %w", err)
	}
	shuffled, err := cryptoShuffle(peeled)
	if err != nil {
		return fmt.Errorf("shuffle: phase3: %w", err)
	}

	dest := n.cfg.NextAddr
	if n.isLast() {
		dest = n.cfg.LeaderAddr
	}
	if err := n.sendShuffle(dest, shuffled); err != nil {
		return fmt.Errorf("shuffle: phase3: %w", err)
	}

	if n.isLeader() {
		final, err := n.recvShuffle()
		if err != nil {
			return err
		}
		n.finalCiphers = final
		n.logf("ring walk complete, %d items ready for verification", len(final))
	}
	return nil
}

func (n *Node) peelOwnLayer(items []wire.P3Item) ([]wire.P3Item, error) {
	out := make([]wire.P3Item, len(items))
	for i, it := range items {
		if it.RoundID != n.cfg.RoundID {
			return nil, fmt.Errorf("%w: item has round %d, want %d", ErrRoundMismatch, it.RoundID, n.cfg.RoundID)
		}
		pt, err := anoncrypto.Decrypt(n.self.K1.Priv, it.Ctext)
		if err != nil {
			return nil, err
		}
		out[i] = wire.P3Item{RoundID: it.RoundID, Ctext: pt}
	}
	return out, nil
}

func (n *Node) recvShuffle() ([]wire.P3Item, error) {
	raw, _, err := n.cfg.Transport.RecvN(n.cfg.MyAddr, 1)
	if err != nil {
		return nil, fmt.Errorf("shuffle: phase3: %w", err)
	}
	_, msg, err := n.verify(raw[0])
	if err != nil {
		return nil, fmt.Errorf("shuffle: phase3: %w", err)
	}
	var shuffle wire.P3Shuffle
	if err := wire.Decode(msg, &shuffle); err != nil {
		return nil, fmt.Errorf("shuffle: phase3: %w", err)
	}
	return shuffle.Items, nil
}

func (n *Node) sendShuffle(addr string, items []wire.P3Item) error {
	msg, err := wire.Encode(wire.P3Shuffle{Items: items})
	if err != nil {
		return err
	}
	blob, err := n.sign(msg)
	if err != nil {
		return err
	}
	return n.cfg.Transport.Send(addr, blob)
}

// cryptoShuffle returns a uniformly random permutation of items using
// a Fisher-Yates shuffle driven by crypto/rand, since the anonymity
// guarantee depends on the permutation being unpredictable, not just
// well distributed.
func cryptoShuffle(items []wire.P3Item) ([]wire.P3Item, error) {
	out := make([]wire.P3Item, len(items))
	copy(out, items)
	for i := len(out) - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return nil, fmt.Errorf("shuffle: permutation: %w", err)
		}
		jj := int(j.Int64())
		out[i], out[jj] = out[jj], out[i]
	}
	return out, nil
}
