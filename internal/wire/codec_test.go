package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeIsDeterministic(t *testing.T) {
	v := P2Cipher{RoundID: 42, Cipher: []byte{1, 2, 3}}
	a, err := Encode(v)
	require.NoError(t, err)
	b, err := Encode(v)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	want := P3Shuffle{Items: []P3Item{
		{RoundID: 1, Ctext: []byte("a")},
		{RoundID: 1, Ctext: []byte("b")},
	}}
	b, err := Encode(want)
	require.NoError(t, err)

	var got P3Shuffle
	require.NoError(t, Decode(b, &got))
	require.Equal(t, want, got)
}
