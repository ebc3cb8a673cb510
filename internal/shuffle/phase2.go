package shuffle

import (
	"crypto/rsa"
	"fmt"
	"sort"

	"github.com/hoshizora-net/mixshuffle/internal/anoncrypto"
	"github.com/hoshizora-net/mixshuffle/internal/wire"
)

// runPhase2 builds this node's layered ciphertext and gets it to the
// leader. Every node encrypts its packaged datum under every peer's
// K2 in descending id order to get C', then under every peer's K1 in
// descending id order on top of C' to get C. Descending order means
// the outermost K1 layer belongs to peer 0, so Phase 3's ring walk
// (0, 1, 2, ...) peels K1 layers in the reverse of the order they were
// applied, outermost first.
func (n *Node) runPhase2() error {
	n.advancePhase("data submission")

	cipherPrime, err := n.layerEncrypt(n.datum, func(pk anoncrypto.PeerKeys) *rsa.PublicKey { return pk.K2 })
	if err != nil {
		return fmt.Errorf("shuffle: phase2: K2 layering: %w", err)
	}
	n.cipherPrime = cipherPrime

	cipher, err := n.layerEncrypt(cipherPrime, func(pk anoncrypto.PeerKeys) *rsa.PublicKey { return pk.K1 })
	if err != nil {
		return fmt.Errorf("shuffle: phase2: K1 layering: %w", err)
	}
	n.cipher = cipher

	if n.isLeader() {
		return n.phase2Leader()
	}
	return n.phase2NonLeader()
}

// layerEncrypt applies one RSA encryption per peer id in descending
// order, each under the public key selected by pick.
func (n *Node) layerEncrypt(data []byte, pick func(anoncrypto.PeerKeys) *rsa.PublicKey) ([]byte, error) {
	out := data
	for id := n.cfg.NNodes - 1; id >= 0; id-- {
		pk, ok := n.keystore.Get(id)
		if !ok {
			return nil, fmt.Errorf("shuffle: missing keyset for peer %d", id)
		}
		pub := pick(pk)
		if pub == nil {
			return nil, fmt.Errorf("shuffle: peer %d missing requested key half", id)
		}
		ct, err := anoncrypto.Encrypt(pub, out)
		if err != nil {
			return nil, err
		}
		out = ct
	}
	return out, nil
}

func (n *Node) phase2NonLeader() error {
	body := wire.P2Cipher{RoundID: n.cfg.RoundID, Cipher: n.cipher}
	msg, err := wire.Encode(body)
	if err != nil {
		return fmt.Errorf("shuffle: phase2: %w", err)
	}
	blob, err := n.sign(msg)
	if err != nil {
		return fmt.Errorf("shuffle: phase2: %w", err)
	}
	if err := n.cfg.Transport.Send(n.cfg.LeaderAddr, blob); err != nil {
		return fmt.Errorf("shuffle: phase2: %w", err)
	}
	n.logf("submitted ciphertext to leader")
	return nil
}

func (n *Node) phase2Leader() error {
	raw, _, err := n.cfg.Transport.RecvN(n.cfg.MyAddr, n.cfg.NNodes-1)
	if err != nil {
		return fmt.Errorf("shuffle: phase2: %w", err)
	}

	byID := map[int][]byte{n.cfg.ID: n.cipher}
	for _, blob := range raw {
		signerID, msg, err := n.verify(blob)
		if err != nil {
			return fmt.Errorf("shuffle: phase2: %w", err)
		}
		var body wire.P2Cipher
		if err := wire.Decode(msg, &body); err != nil {
			return fmt.Errorf("shuffle: phase2: %w", err)
		}
		if body.RoundID != n.cfg.RoundID {
			return fmt.Errorf("%w: peer %d sent round %d, want %d", ErrRoundMismatch, signerID, body.RoundID, n.cfg.RoundID)
		}
		byID[signerID] = body.Cipher
	}

	// peers' ciphers in ascending id order, then the leader's own
	ids := make([]int, 0, len(byID))
	for id := range byID {
		if id != n.cfg.ID {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	ids = append(ids, n.cfg.ID)
	if len(ids) != n.cfg.NNodes {
		return fmt.Errorf("shuffle: phase2: leader has %d/%d ciphers", len(ids), n.cfg.NNodes)
	}

	items := make([]wire.P3Item, 0, len(ids))
	for _, id := range ids {
		items = append(items, wire.P3Item{RoundID: n.cfg.RoundID, Ctext: byID[id]})
	}
	n.finalCiphers = items
	n.logf("leader assembled %d ciphertexts for the shuffle ring", len(items))
	return nil
}
