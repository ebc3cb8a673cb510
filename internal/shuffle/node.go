package shuffle

import (
	"encoding/binary"
	"fmt"
	"log"

	"github.com/hoshizora-net/mixshuffle/internal/anoncrypto"
	"github.com/hoshizora-net/mixshuffle/internal/transport"
	"github.com/hoshizora-net/mixshuffle/internal/wire"
)

// packageHeaderSize is the constant header every packaged datum
// carries ahead of its max_len-byte padded payload: a 4-byte
// big-endian original-message length. It must be identical across
// every node in a round, or packaged data would be linkable by length.
const packageHeaderSize = 4

// Config is the constructor input for one node's participation in one round.
type Config struct {
	ID      int
	KeyBits int
	RoundID uint64
	NNodes  int

	MyAddr     string
	LeaderAddr string
	PrevAddr   string
	NextAddr   string

	MaxLen int

	// Transport is injected so tests can run the whole protocol over
	// an in-memory Mock instead of real sockets.
	Transport transport.Transport

	// Logger receives phase-correlated progress and critical-abort
	// lines; defaults to log.Default() if nil.
	Logger *log.Logger
}

// Node is the per-node round state: identity, round id, phase
// counter, peer keyset, own private keys, the layered ciphertext, and
// the final plaintext set. It is created fresh per round and
// discarded when the round ends.
type Node struct {
	cfg Config

	phase int

	keystore *Keystore
	self     selfKeys

	datum []byte // package(msg) output: header || padded payload

	cipherPrime []byte // C': after K2 layering only
	cipher      []byte // C: after K1 layering on top of C'

	peerAddrs []string // leader only: addresses gathered in phase 1a

	finalCiphers []wire.P3Item // F: the leader's starting cipher list, then the shuffled/peeled list after phase 3

	outputs [][]byte // recovered plaintexts after phase 5

	log *log.Logger
}

// NewNode constructs a node ready to run a round. msg is the raw
// message this node contributes; it is packaged immediately so an
// oversized message is rejected before any network I/O happens.
func NewNode(cfg Config, msg []byte) (*Node, error) {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	n := &Node{
		cfg:      cfg,
		keystore: NewKeystore(),
		log:      cfg.Logger,
	}
	datum, err := n.packageMsg(msg)
	if err != nil {
		return nil, err
	}
	n.datum = datum
	return n, nil
}

func (n *Node) isLeader() bool { return n.cfg.ID == 0 }
func (n *Node) isLast() bool   { return n.cfg.ID == n.cfg.NNodes-1 }

func (n *Node) advancePhase(name string) {
	n.phase++
	n.logf("entering phase %d (%s)", n.phase, name)
}

func (n *Node) logf(format string, args ...any) {
	n.log.Printf("(node %d, phase %d, round %d) %s", n.cfg.ID, n.phase, n.cfg.RoundID, fmt.Sprintf(format, args...))
}

func (n *Node) critf(format string, args ...any) {
	n.log.Printf("CRITICAL (node %d, phase %d, round %d) %s", n.cfg.ID, n.phase, n.cfg.RoundID, fmt.Sprintf(format, args...))
}

// packageMsg pads msg to MaxLen bytes and prefixes the true length so
// every node's datum is byte-for-byte the same size; unequal sizes
// would let an observer link an output to its author. It fails before
// any network I/O if msg is too long to fit.
func (n *Node) packageMsg(msg []byte) ([]byte, error) {
	if len(msg) > n.cfg.MaxLen {
		return nil, fmt.Errorf("shuffle: message of %d bytes exceeds max_len %d", len(msg), n.cfg.MaxLen)
	}
	out := make([]byte, packageHeaderSize+n.cfg.MaxLen)
	binary.BigEndian.PutUint32(out[:packageHeaderSize], uint32(len(msg)))
	copy(out[packageHeaderSize:], msg)
	// remaining bytes are already zero; that is the padding.
	return out, nil
}

// unpackageMsg reverses packageMsg, failing with ErrLengthMismatch
// unless the payload is exactly the expected packaged size.
func (n *Node) unpackageMsg(b []byte) ([]byte, error) {
	want := packageHeaderSize + n.cfg.MaxLen
	if len(b) != want {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrLengthMismatch, len(b), want)
	}
	mlen := int(binary.BigEndian.Uint32(b[:packageHeaderSize]))
	if mlen > n.cfg.MaxLen {
		return nil, fmt.Errorf("%w: embedded length %d exceeds max_len %d", ErrLengthMismatch, mlen, n.cfg.MaxLen)
	}
	return b[packageHeaderSize : packageHeaderSize+mlen], nil
}

// sign wraps msg in a self-contained signed blob under this node's K1.
func (n *Node) sign(msg []byte) ([]byte, error) {
	return anoncrypto.Sign(n.self.K1.Priv, n.cfg.ID, msg)
}

// verify checks a signed blob against the current keyset and returns
// the signer id and inner message.
func (n *Node) verify(blob []byte) (int, []byte, error) {
	return anoncrypto.Verify(n.keystore, blob)
}

// Phase returns the current phase counter (0..5), exposed only for
// logging and correlation.
func (n *Node) Phase() int { return n.phase }

// Outputs returns the recovered plaintexts once the round has
// completed Phase 5. Order matches the shuffled order determined by Phase 3.
func (n *Node) Outputs() [][]byte { return n.outputs }
