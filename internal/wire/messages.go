// Package wire is the tagged-tuple codec for the shuffle protocol's
// inter-node messages: every payload exchanged between nodes has a
// fixed field schema here, named after the phase that produces it.
// Encoding is deterministic JSON (struct field order is fixed), which
// is what lets hash_list agree across nodes that encode the same
// logical value independently.
package wire

// P1Join is the Phase-1a message a non-leader sends the leader. The K2
// public key travels signed by K1 (the K2PubSig field holds an
// anoncrypto.Sign blob), chaining its authenticity from K1.
type P1Join struct {
	ID       int    `json:"id"`
	RoundID  uint64 `json:"round_id"`
	IP       string `json:"ip"`
	Port     int    `json:"port"`
	K1Pub    []byte `json:"k1_pub"`
	K2PubSig []byte `json:"k2_pub_sig"` // anoncrypto signed blob over K2Pub
}

// P1Entry is one node's key material as carried inside P1Distribute.
type P1Entry struct {
	ID       int    `json:"id"`
	K1Pub    []byte `json:"k1_pub"`
	K2PubSig []byte `json:"k2_pub_sig"`
}

// P1Distribute is the consolidated keyset the leader broadcasts at the
// end of Phase 1, unsigned (bootstrap: K1 identities aren't yet
// established as trust anchors).
type P1Distribute struct {
	RoundID uint64    `json:"round_id"`
	Entries []P1Entry `json:"entries"`
}

// P2Cipher is a node's layered outer ciphertext submission.
type P2Cipher struct {
	RoundID uint64 `json:"round_id"`
	Cipher  []byte `json:"cipher"`
}

// P3Item is one element of the shuffle transcript carried around the ring.
type P3Item struct {
	RoundID uint64 `json:"round_id"`
	Ctext   []byte `json:"ctext"`
}

// P3Shuffle is the list forwarded from ring position k to k+1 (or, at
// the last node, to the leader).
type P3Shuffle struct {
	Items []P3Item `json:"items"`
}

// P4Final is the leader's broadcast of F, the agreed final inner-cipher set.
type P4Final struct {
	Items []P3Item `json:"items"`
}

// P4Vote is one node's signed attestation about F.
type P4Vote struct {
	ID      int    `json:"id"`
	RoundID uint64 `json:"round_id"`
	Go      bool   `json:"go"`
	Hash    []byte `json:"hash"`
}

// P4VoteSet bundles every node's individually-signed P4Vote blob. The
// bundle itself is signed again by the leader when broadcast (see the
// anoncrypto.Sign call sites in the engine), so receivers authenticate
// both the set and each vote inside it.
type P4VoteSet struct {
	Votes [][]byte `json:"votes"` // each entry is an anoncrypto signed blob around a P4Vote
}

// P5Reveal is one node's signed release of its K2 private key.
type P5Reveal struct {
	ID      int    `json:"id"`
	RoundID uint64 `json:"round_id"`
	K2Priv  []byte `json:"k2_priv"`
}

// P5RevealSet bundles every node's individually-signed P5Reveal blob,
// itself signed again by the leader on broadcast.
type P5RevealSet struct {
	Reveals [][]byte `json:"reveals"` // each entry is an anoncrypto signed blob around a P5Reveal
}
