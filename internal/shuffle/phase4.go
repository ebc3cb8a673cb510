package shuffle

import (
	"bytes"
	"fmt"

	"github.com/hoshizora-net/mixshuffle/internal/anoncrypto"
	"github.com/hoshizora-net/mixshuffle/internal/wire"
)

// runPhase4 is verification and commit-or-abort. The leader
// broadcasts the ring-shuffled, K1-peeled list F; every node checks
// its own ciphertext is still present in F and that every node agrees
// on F's contents by hash, then votes. A single "no" vote, a hash
// mismatch, or a bad signature anywhere aborts the round for everyone
// before any K2 private key is ever revealed.
func (n *Node) runPhase4() error {
	n.advancePhase("verification")

	if n.isLeader() {
		if err := n.phase4Broadcast(); err != nil {
			return err
		}
	} else {
		if err := n.phase4Receive(); err != nil {
			return err
		}
	}

	myVote, myHash := n.phase4OwnVote()
	voteBlob, err := n.sign(mustEncode(wire.P4Vote{ID: n.cfg.ID, RoundID: n.cfg.RoundID, Go: myVote, Hash: myHash}))
	if err != nil {
		return fmt.Errorf("shuffle: phase4: %w", err)
	}

	var bundle wire.P4VoteSet
	if n.isLeader() {
		bundle, err = n.phase4Collect(voteBlob)
	} else {
		bundle, err = n.phase4Submit(voteBlob)
	}
	if err != nil {
		return err
	}

	return n.phase4Tally(bundle, myHash)
}

func mustEncode(v any) []byte {
	b, err := wire.Encode(v)
	if err != nil {
		panic(err)
	}
	return b
}

func (n *Node) phase4Broadcast() error {
	msg, err := wire.Encode(wire.P4Final{Items: n.finalCiphers})
	if err != nil {
		return fmt.Errorf("shuffle: phase4: %w", err)
	}
	blob, err := n.sign(msg)
	if err != nil {
		return fmt.Errorf("shuffle: phase4: %w", err)
	}
	for _, addr := range n.peerAddrs {
		if err := n.cfg.Transport.Send(addr, blob); err != nil {
			return fmt.Errorf("shuffle: phase4: broadcast to %s: %w", addr, err)
		}
	}
	return nil
}

func (n *Node) phase4Receive() error {
	raw, _, err := n.cfg.Transport.RecvN(n.cfg.MyAddr, 1)
	if err != nil {
		return fmt.Errorf("shuffle: phase4: %w", err)
	}
	signerID, msg, err := n.verify(raw[0])
	if err != nil {
		return fmt.Errorf("shuffle: phase4: %w", err)
	}
	if signerID != 0 {
		return fmt.Errorf("shuffle: phase4: final list signed by %d, want leader", signerID)
	}
	var final wire.P4Final
	if err := wire.Decode(msg, &final); err != nil {
		return fmt.Errorf("shuffle: phase4: %w", err)
	}
	n.finalCiphers = final.Items
	return nil
}

// phase4OwnVote reports whether this node's own C' survived the ring
// walk and the canonical hash of F it is voting on.
func (n *Node) phase4OwnVote() (bool, []byte) {
	present := false
	encoded := make([][]byte, len(n.finalCiphers))
	for i, it := range n.finalCiphers {
		encoded[i] = mustEncode(it)
		if it.RoundID == n.cfg.RoundID && bytes.Equal(it.Ctext, n.cipherPrime) {
			present = true
		}
	}
	if !present {
		n.critf("own ciphertext missing from final list, voting no")
	}
	return present, anoncrypto.HashList(encoded)
}

func (n *Node) phase4Submit(voteBlob []byte) (wire.P4VoteSet, error) {
	if err := n.cfg.Transport.Send(n.cfg.LeaderAddr, voteBlob); err != nil {
		return wire.P4VoteSet{}, fmt.Errorf("shuffle: phase4: %w", err)
	}
	raw, _, err := n.cfg.Transport.RecvN(n.cfg.MyAddr, 1)
	if err != nil {
		return wire.P4VoteSet{}, fmt.Errorf("shuffle: phase4: %w", err)
	}
	signerID, msg, err := n.verify(raw[0])
	if err != nil {
		return wire.P4VoteSet{}, fmt.Errorf("shuffle: phase4: %w", err)
	}
	if signerID != 0 {
		return wire.P4VoteSet{}, fmt.Errorf("shuffle: phase4: vote bundle signed by %d, want leader", signerID)
	}
	var bundle wire.P4VoteSet
	if err := wire.Decode(msg, &bundle); err != nil {
		return wire.P4VoteSet{}, fmt.Errorf("shuffle: phase4: %w", err)
	}
	return bundle, nil
}

func (n *Node) phase4Collect(ownVoteBlob []byte) (wire.P4VoteSet, error) {
	raw, _, err := n.cfg.Transport.RecvN(n.cfg.MyAddr, n.cfg.NNodes-1)
	if err != nil {
		return wire.P4VoteSet{}, fmt.Errorf("shuffle: phase4: %w", err)
	}
	votes := append(raw, ownVoteBlob)
	bundle := wire.P4VoteSet{Votes: votes}

	msg, err := wire.Encode(bundle)
	if err != nil {
		return wire.P4VoteSet{}, fmt.Errorf("shuffle: phase4: %w", err)
	}
	outer, err := n.sign(msg)
	if err != nil {
		return wire.P4VoteSet{}, fmt.Errorf("shuffle: phase4: %w", err)
	}
	for _, addr := range n.peerAddrs {
		if err := n.cfg.Transport.Send(addr, outer); err != nil {
			return wire.P4VoteSet{}, fmt.Errorf("shuffle: phase4: broadcast vote set to %s: %w", addr, err)
		}
	}
	return bundle, nil
}

func (n *Node) phase4Tally(bundle wire.P4VoteSet, wantHash []byte) error {
	if len(bundle.Votes) != n.cfg.NNodes {
		return fmt.Errorf("%w: vote bundle has %d/%d votes", ErrVerifyFailed, len(bundle.Votes), n.cfg.NNodes)
	}
	seen := make(map[int]bool, n.cfg.NNodes)
	for _, voteBlob := range bundle.Votes {
		signerID, msg, err := n.verify(voteBlob)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrVerifyFailed, err)
		}
		var vote wire.P4Vote
		if err := wire.Decode(msg, &vote); err != nil {
			return fmt.Errorf("%w: %v", ErrVerifyFailed, err)
		}
		if vote.ID != signerID {
			return fmt.Errorf("%w: vote claims id %d but signed by %d", ErrVerifyFailed, vote.ID, signerID)
		}
		if vote.RoundID != n.cfg.RoundID {
			return fmt.Errorf("%w: vote from %d has round %d, want %d", ErrVerifyFailed, signerID, vote.RoundID, n.cfg.RoundID)
		}
		if !vote.Go {
			return fmt.Errorf("%w: node %d voted to abort", ErrVerifyFailed, signerID)
		}
		if !bytes.Equal(vote.Hash, wantHash) {
			return fmt.Errorf("%w: node %d disagrees on the final list's hash", ErrVerifyFailed, signerID)
		}
		seen[signerID] = true
	}
	if len(seen) != n.cfg.NNodes {
		return fmt.Errorf("%w: only %d distinct signers in vote bundle", ErrVerifyFailed, len(seen))
	}
	n.logf("all %d nodes voted to continue", n.cfg.NNodes)
	return nil
}
