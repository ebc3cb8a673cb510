package shuffle

import (
	"crypto/rsa"
	"fmt"

	"github.com/hoshizora-net/mixshuffle/internal/anoncrypto"
	"github.com/hoshizora-net/mixshuffle/internal/wire"
)

// runPhase5 is the collective decryption. Every node reveals its K2
// private key now that Phase 4 has committed everyone to the final
// list; once all N keys are in hand, each item is peeled of its K2
// layers in ascending id order (the reverse of how Phase 2 applied
// them) to recover the original packaged datum.
func (n *Node) runPhase5() error {
	n.advancePhase("reveal and decrypt")

	k2PrivBytes := anoncrypto.PrivateKeyToBytes(n.self.K2.Priv)
	revealBlob, err := n.sign(mustEncode(wire.P5Reveal{ID: n.cfg.ID, RoundID: n.cfg.RoundID, K2Priv: k2PrivBytes}))
	if err != nil {
		return fmt.Errorf("shuffle: phase5: %w", err)
	}

	var bundle wire.P5RevealSet
	if n.isLeader() {
		bundle, err = n.phase5Collect(revealBlob)
	} else {
		bundle, err = n.phase5Submit(revealBlob)
	}
	if err != nil {
		return err
	}

	k2Privs, err := n.phase5Unbundle(bundle)
	if err != nil {
		return err
	}

	outputs := make([][]byte, 0, len(n.finalCiphers))
	for _, item := range n.finalCiphers {
		pt := item.Ctext
		for id := 0; id < n.cfg.NNodes; id++ {
			dec, err := anoncrypto.Decrypt(k2Privs[id], pt)
			if err != nil {
				return fmt.Errorf("shuffle: phase5: decrypting K2 layer %d: %w", id, err)
			}
			pt = dec
		}
		msg, err := n.unpackageMsg(pt)
		if err != nil {
			return fmt.Errorf("shuffle: phase5: %w", err)
		}
		outputs = append(outputs, msg)
	}
	n.outputs = outputs
	return nil
}

func (n *Node) phase5Submit(revealBlob []byte) (wire.P5RevealSet, error) {
	if err := n.cfg.Transport.Send(n.cfg.LeaderAddr, revealBlob); err != nil {
		return wire.P5RevealSet{}, fmt.Errorf("shuffle: phase5: %w", err)
	}
	raw, _, err := n.cfg.Transport.RecvN(n.cfg.MyAddr, 1)
	if err != nil {
		return wire.P5RevealSet{}, fmt.Errorf("shuffle: phase5: %w", err)
	}
	signerID, msg, err := n.verify(raw[0])
	if err != nil {
		return wire.P5RevealSet{}, fmt.Errorf("shuffle: phase5: %w", err)
	}
	if signerID != 0 {
		return wire.P5RevealSet{}, fmt.Errorf("shuffle: phase5: reveal bundle signed by %d, want leader", signerID)
	}
	var bundle wire.P5RevealSet
	if err := wire.Decode(msg, &bundle); err != nil {
		return wire.P5RevealSet{}, fmt.Errorf("shuffle: phase5: %w", err)
	}
	return bundle, nil
}

func (n *Node) phase5Collect(ownRevealBlob []byte) (wire.P5RevealSet, error) {
	raw, _, err := n.cfg.Transport.RecvN(n.cfg.MyAddr, n.cfg.NNodes-1)
	if err != nil {
		return wire.P5RevealSet{}, fmt.Errorf("shuffle: phase5: %w", err)
	}
	reveals := append(raw, ownRevealBlob)
	bundle := wire.P5RevealSet{Reveals: reveals}

	msg, err := wire.Encode(bundle)
	if err != nil {
		return wire.P5RevealSet{}, fmt.Errorf("shuffle: phase5: %w", err)
	}
	outer, err := n.sign(msg)
	if err != nil {
		return wire.P5RevealSet{}, fmt.Errorf("shuffle: phase5: %w", err)
	}
	for _, addr := range n.peerAddrs {
		if err := n.cfg.Transport.Send(addr, outer); err != nil {
			return wire.P5RevealSet{}, fmt.Errorf("shuffle: phase5: broadcast reveal set to %s: %w", addr, err)
		}
	}
	return bundle, nil
}

func (n *Node) phase5Unbundle(bundle wire.P5RevealSet) (map[int]*rsa.PrivateKey, error) {
	if len(bundle.Reveals) != n.cfg.NNodes {
		return nil, fmt.Errorf("shuffle: phase5: reveal bundle has %d/%d reveals", len(bundle.Reveals), n.cfg.NNodes)
	}
	out := make(map[int]*rsa.PrivateKey, n.cfg.NNodes)
	for _, blob := range bundle.Reveals {
		signerID, msg, err := n.verify(blob)
		if err != nil {
			return nil, fmt.Errorf("shuffle: phase5: %w", err)
		}
		var reveal wire.P5Reveal
		if err := wire.Decode(msg, &reveal); err != nil {
			return nil, fmt.Errorf("shuffle: phase5: %w", err)
		}
		if reveal.ID != signerID {
			return nil, fmt.Errorf("shuffle: phase5: reveal claims id %d but signed by %d", reveal.ID, signerID)
		}
		if reveal.RoundID != n.cfg.RoundID {
			return nil, fmt.Errorf("%w: reveal from %d has round %d, want %d", ErrRoundMismatch, signerID, reveal.RoundID, n.cfg.RoundID)
		}
		priv, err := anoncrypto.PrivateKeyFromBytes(reveal.K2Priv)
		if err != nil {
			return nil, fmt.Errorf("shuffle: phase5: node %d: %w", signerID, err)
		}
		out[signerID] = priv
	}
	if len(out) != n.cfg.NNodes {
		return nil, fmt.Errorf("shuffle: phase5: only %d distinct revealers", len(out))
	}
	return out, nil
}
