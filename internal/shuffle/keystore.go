package shuffle

import (
	"crypto/rsa"
	"sync"

	"github.com/hoshizora-net/mixshuffle/internal/anoncrypto"
)

// Keystore is the read-only peer_id -> (K1_pub, K2_pub) mapping. It is
// built up during Phase 1 and is immutable for the rest of the round
// (Phase 1's completeness check is the last writer).
// Splitting this from selfKeys below means the type system, not
// programmer discipline, prevents a private key from ever being
// reachable through the keyset.
type Keystore struct {
	mu    sync.RWMutex
	peers map[int]anoncrypto.PeerKeys
}

// NewKeystore creates an empty keystore.
func NewKeystore() *Keystore {
	return &Keystore{peers: make(map[int]anoncrypto.PeerKeys)}
}

// Set installs (or overwrites) the key pair for a peer id.
func (k *Keystore) Set(id int, keys anoncrypto.PeerKeys) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.peers[id] = keys
}

// SetK1 installs just the K1 half, used by Phase 1's two-step
// install-then-verify sequence (see the engine's Phase 1 handler).
func (k *Keystore) SetK1(id int, k1 *rsa.PublicKey) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.peers[id] = anoncrypto.PeerKeys{K1: k1}
}

// SetK2 fills in the K2 half for a peer that already has K1 installed.
func (k *Keystore) SetK2(id int, k2 *rsa.PublicKey) {
	k.mu.Lock()
	defer k.mu.Unlock()
	pk := k.peers[id]
	pk.K2 = k2
	k.peers[id] = pk
}

// Get returns the full key pair for a peer id.
func (k *Keystore) Get(id int) (anoncrypto.PeerKeys, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	pk, ok := k.peers[id]
	return pk, ok
}

// K1 implements anoncrypto.KeySource so the keystore can be passed
// directly to anoncrypto.Verify.
func (k *Keystore) K1(id int) (*rsa.PublicKey, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	pk, ok := k.peers[id]
	if !ok || pk.K1 == nil {
		return nil, false
	}
	return pk.K1, true
}

// Len returns the number of peers currently installed.
func (k *Keystore) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.peers)
}

// Complete reports whether exactly n peers are installed, each with
// both K1 and K2 present, which Phase 1 must establish before Phase 2
// begins.
func (k *Keystore) Complete(n int) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if len(k.peers) != n {
		return false
	}
	for _, pk := range k.peers {
		if pk.K1 == nil || pk.K2 == nil {
			return false
		}
	}
	return true
}

// selfKeys holds this node's own K1/K2 keypairs. Private halves never
// leave the node until Phase 5 reveals K2Priv. There is intentionally
// no accessor that hands back K1.Priv to any caller outside this
// package's signing call sites.
type selfKeys struct {
	K1 *anoncrypto.KeyPair
	K2 *anoncrypto.KeyPair
}
