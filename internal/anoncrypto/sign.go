package anoncrypto

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// PeerKeys is the pair of public keys a node's keyset holds for one peer.
type PeerKeys struct {
	K1 *rsa.PublicKey
	K2 *rsa.PublicKey
}

// KeySource resolves a peer id to its primary (K1) public key, the
// only key ever used to verify a signature. The shuffle package's
// Keystore implements this.
type KeySource interface {
	K1(peerID int) (*rsa.PublicKey, bool)
}

// signedBlob is the self-contained wire form produced by Sign: it
// carries the signer's id alongside the signed message and signature
// so Verify can locate the right K1 in the keyset without an
// out-of-band hint.
type signedBlob struct {
	SignerID int    `json:"signer_id"`
	Msg      []byte `json:"msg"`
	Sig      []byte `json:"sig"`
}

// Sign produces a self-contained blob from which both msg and the
// signature over it can be recovered by Verify.
func Sign(priv *rsa.PrivateKey, signerID int, msg []byte) ([]byte, error) {
	digest := sha256.Sum256(msg)
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, digest[:])
	if err != nil {
		return nil, fmt.Errorf("anoncrypto: sign: %w", err)
	}
	blob, err := json.Marshal(signedBlob{SignerID: signerID, Msg: msg, Sig: sig})
	if err != nil {
		return nil, fmt.Errorf("anoncrypto: sign: %w", err)
	}
	return blob, nil
}

// Verify locates the purported signer id embedded in blob, looks up
// that peer's K1 in keys, checks the signature, and returns the
// signer id and the inner message. It fails if the key is missing or
// the signature is invalid.
func Verify(keys KeySource, blob []byte) (signerID int, msg []byte, err error) {
	var sb signedBlob
	if err := json.Unmarshal(blob, &sb); err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrEncodingInvalid, err)
	}
	pub, ok := keys.K1(sb.SignerID)
	if !ok {
		return 0, nil, fmt.Errorf("%w: signer %d", ErrKeyMissing, sb.SignerID)
	}
	digest := sha256.Sum256(sb.Msg)
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sb.Sig); err != nil {
		return 0, nil, fmt.Errorf("%w: signer %d", ErrBadSignature, sb.SignerID)
	}
	return sb.SignerID, sb.Msg, nil
}

// HashList computes a deterministic, order-sensitive digest over an
// ordered sequence of byte strings. Each item is framed with its
// length so no sequence of items can be confused with a
// differently-split one that happens to concatenate to the same bytes.
func HashList(items [][]byte) []byte {
	h := sha256.New()
	var lenBuf [8]byte
	for _, it := range items {
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(it)))
		h.Write(lenBuf[:])
		h.Write(it)
	}
	return h.Sum(nil)
}
