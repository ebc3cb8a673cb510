package shuffle

import (
	"fmt"

	"github.com/hoshizora-net/mixshuffle/internal/anoncrypto"
	"github.com/hoshizora-net/mixshuffle/internal/wire"
)

// runPhase1 is the key-exchange phase. Every node generates a fresh
// K1/K2 pair for the round; the leader fans in everyone else's K1 and
// K1-signed K2, assembles the consolidated keyset, and fans it back
// out. Terminal state: every node's keystore holds all N peers' K1
// and K2 public keys.
func (n *Node) runPhase1() error {
	n.advancePhase("key exchange")

	k1, err := anoncrypto.GenerateKeyPair(n.cfg.KeyBits)
	if err != nil {
		return fmt.Errorf("shuffle: phase1: generate K1: %w", err)
	}
	k2, err := anoncrypto.GenerateKeyPair(n.cfg.KeyBits)
	if err != nil {
		return fmt.Errorf("shuffle: phase1: generate K2: %w", err)
	}
	n.self = selfKeys{K1: k1, K2: k2}

	if n.isLeader() {
		return n.phase1Leader()
	}
	return n.phase1NonLeader()
}

// myP1Entry builds this node's own key material in the same shape a
// peer's Phase-1a message carries it in, so the leader and every
// non-leader install entries through one shared code path.
func (n *Node) myP1Entry() (wire.P1Entry, error) {
	k1PubB, err := anoncrypto.PublicKeyToBytes(n.self.K1.Pub)
	if err != nil {
		return wire.P1Entry{}, err
	}
	k2PubB, err := anoncrypto.PublicKeyToBytes(n.self.K2.Pub)
	if err != nil {
		return wire.P1Entry{}, err
	}
	sig, err := anoncrypto.Sign(n.self.K1.Priv, n.cfg.ID, k2PubB)
	if err != nil {
		return wire.P1Entry{}, err
	}
	return wire.P1Entry{ID: n.cfg.ID, K1Pub: k1PubB, K2PubSig: sig}, nil
}

// installEntry installs one peer's K1 and K2 public keys into the
// keystore. K1 must go in first: the K2 signature is verified against
// the signer's own just-installed K1, so reversing the two steps turns
// every Phase 1 entry into a key-missing failure.
func (n *Node) installEntry(e wire.P1Entry) error {
	k1Pub, err := anoncrypto.PublicKeyFromBytes(e.K1Pub)
	if err != nil {
		return fmt.Errorf("shuffle: phase1: peer %d: %w", e.ID, err)
	}
	n.keystore.SetK1(e.ID, k1Pub)

	signerID, k2PubBytes, err := n.verify(e.K2PubSig)
	if err != nil {
		return fmt.Errorf("shuffle: phase1: peer %d: %w", e.ID, err)
	}
	if signerID != e.ID {
		return fmt.Errorf("shuffle: phase1: peer %d: K2 signed by %d instead", e.ID, signerID)
	}
	k2Pub, err := anoncrypto.PublicKeyFromBytes(k2PubBytes)
	if err != nil {
		return fmt.Errorf("shuffle: phase1: peer %d: %w", e.ID, err)
	}
	n.keystore.SetK2(e.ID, k2Pub)
	return nil
}

func (n *Node) phase1Leader() error {
	n.logf("leader collecting %d join messages", n.cfg.NNodes-1)
	raw, _, err := n.cfg.Transport.RecvN(n.cfg.MyAddr, n.cfg.NNodes-1)
	if err != nil {
		return fmt.Errorf("shuffle: phase1: %w", err)
	}

	own, err := n.myP1Entry()
	if err != nil {
		return fmt.Errorf("shuffle: phase1: %w", err)
	}
	if err := n.installEntry(own); err != nil {
		return err
	}
	entries := []wire.P1Entry{own}
	addrs := make([]string, 0, n.cfg.NNodes-1)

	for _, frame := range raw {
		var join wire.P1Join
		if err := wire.Decode(frame, &join); err != nil {
			return fmt.Errorf("shuffle: phase1: %w", err)
		}
		if join.RoundID != n.cfg.RoundID {
			return fmt.Errorf("%w: peer %d sent round %d, want %d", ErrRoundMismatch, join.ID, join.RoundID, n.cfg.RoundID)
		}
		entry := wire.P1Entry{ID: join.ID, K1Pub: join.K1Pub, K2PubSig: join.K2PubSig}
		if err := n.installEntry(entry); err != nil {
			return err
		}
		entries = append(entries, entry)
		addrs = append(addrs, fmt.Sprintf("%s:%d", join.IP, join.Port))
	}

	if !n.keystore.Complete(n.cfg.NNodes) {
		return fmt.Errorf("shuffle: phase1: leader has %d/%d peer keysets", n.keystore.Len(), n.cfg.NNodes)
	}
	n.peerAddrs = addrs
	n.logf("leader has all public keys, broadcasting consolidated keyset")

	dist := wire.P1Distribute{RoundID: n.cfg.RoundID, Entries: entries}
	payload, err := wire.Encode(dist)
	if err != nil {
		return fmt.Errorf("shuffle: phase1: %w", err)
	}
	for _, addr := range addrs {
		if err := n.cfg.Transport.Send(addr, payload); err != nil {
			return fmt.Errorf("shuffle: phase1: broadcast to %s: %w", addr, err)
		}
	}
	return nil
}

func (n *Node) phase1NonLeader() error {
	own, err := n.myP1Entry()
	if err != nil {
		return fmt.Errorf("shuffle: phase1: %w", err)
	}
	ip, port, err := splitHostPort(n.cfg.MyAddr)
	if err != nil {
		return fmt.Errorf("shuffle: phase1: %w", err)
	}
	join := wire.P1Join{
		ID:       n.cfg.ID,
		RoundID:  n.cfg.RoundID,
		IP:       ip,
		Port:     port,
		K1Pub:    own.K1Pub,
		K2PubSig: own.K2PubSig,
	}
	payload, err := wire.Encode(join)
	if err != nil {
		return fmt.Errorf("shuffle: phase1: %w", err)
	}
	if err := n.cfg.Transport.Send(n.cfg.LeaderAddr, payload); err != nil {
		return fmt.Errorf("shuffle: phase1: %w", err)
	}

	raw, _, err := n.cfg.Transport.RecvN(n.cfg.MyAddr, 1)
	if err != nil {
		return fmt.Errorf("shuffle: phase1: %w", err)
	}
	var dist wire.P1Distribute
	if err := wire.Decode(raw[0], &dist); err != nil {
		return fmt.Errorf("shuffle: phase1: %w", err)
	}
	if dist.RoundID != n.cfg.RoundID {
		return fmt.Errorf("%w: leader sent round %d, want %d", ErrRoundMismatch, dist.RoundID, n.cfg.RoundID)
	}
	for _, e := range dist.Entries {
		if err := n.installEntry(e); err != nil {
			return err
		}
	}
	if !n.keystore.Complete(n.cfg.NNodes) {
		return fmt.Errorf("shuffle: phase1: have %d/%d peer keysets after distribution", n.keystore.Len(), n.cfg.NNodes)
	}
	n.logf("got keys from leader")
	return nil
}
