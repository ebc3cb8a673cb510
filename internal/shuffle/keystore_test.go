package shuffle

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hoshizora-net/mixshuffle/internal/anoncrypto"
)

func TestKeystoreSetK1ThenK2Ordering(t *testing.T) {
	k := NewKeystore()
	kp1, err := anoncrypto.GenerateKeyPair(512)
	require.NoError(t, err)
	kp2, err := anoncrypto.GenerateKeyPair(512)
	require.NoError(t, err)

	_, ok := k.K1(3)
	require.False(t, ok)

	k.SetK1(3, kp1.Pub)
	pub, ok := k.K1(3)
	require.True(t, ok)
	require.Equal(t, kp1.Pub, pub)
	require.False(t, k.Complete(1))

	k.SetK2(3, kp2.Pub)
	require.True(t, k.Complete(1))

	pk, ok := k.Get(3)
	require.True(t, ok)
	require.Equal(t, kp1.Pub, pk.K1)
	require.Equal(t, kp2.Pub, pk.K2)
}

func TestKeystoreCompleteRequiresExactCount(t *testing.T) {
	k := NewKeystore()
	kp, err := anoncrypto.GenerateKeyPair(512)
	require.NoError(t, err)

	k.Set(0, anoncrypto.PeerKeys{K1: kp.Pub, K2: kp.Pub})
	require.False(t, k.Complete(2))
	require.Equal(t, 1, k.Len())

	k.Set(1, anoncrypto.PeerKeys{K1: kp.Pub, K2: kp.Pub})
	require.True(t, k.Complete(2))
	require.False(t, k.Complete(3))
}
