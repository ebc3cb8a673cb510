// Package anoncrypto is the crypto primitives facade for the shuffle
// protocol: RSA keypair generation, canonical key encoding, chunked
// RSA encrypt/decrypt, self-contained sign/verify blobs, and the
// order-sensitive hash used to agree on the shuffled cipher set.
package anoncrypto

import "errors"

// Sentinel error kinds. All are fatal to a round; the shuffle engine
// never attempts local recovery from any of them.
var (
	ErrKeyMissing      = errors.New("anoncrypto: signer key missing from peer keyset")
	ErrBadSignature    = errors.New("anoncrypto: signature verification failed")
	ErrDecryptFailed   = errors.New("anoncrypto: decryption failed")
	ErrEncodingInvalid = errors.New("anoncrypto: invalid key or ciphertext encoding")
)
