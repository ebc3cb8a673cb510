package shuffle

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hoshizora-net/mixshuffle/internal/wire"
)

// TestCryptoShuffleUniformity checks that across many shuffles the item
// starting at position 0 lands in every output position about equally
// often. With 4000 trials over 4 positions the expected count per
// position is 1000; the [850, 1150] band is more than six standard
// deviations wide, so a correct shuffle essentially never trips it
// while an off-by-one Fisher-Yates (or a position-biased one) does.
func TestCryptoShuffleUniformity(t *testing.T) {
	const (
		nItems = 4
		trials = 4000
	)
	items := make([]wire.P3Item, nItems)
	for i := range items {
		items[i] = wire.P3Item{RoundID: 1, Ctext: []byte{byte(i)}}
	}

	counts := make([]int, nItems)
	for trial := 0; trial < trials; trial++ {
		out, err := cryptoShuffle(items)
		require.NoError(t, err)
		require.Len(t, out, nItems)
		for pos, it := range out {
			if it.Ctext[0] == 0 {
				counts[pos]++
			}
		}
	}

	for pos, c := range counts {
		require.GreaterOrEqual(t, c, 850, "position %d underrepresented: %v", pos, counts)
		require.LessOrEqual(t, c, 1150, "position %d overrepresented: %v", pos, counts)
	}
}

// cryptoShuffle must not mutate its input: Phase 3 re-uses the peeled
// list for nothing else, but the engine relies on the returned slice
// being independent storage.
func TestCryptoShuffleLeavesInputIntact(t *testing.T) {
	items := []wire.P3Item{
		{RoundID: 1, Ctext: []byte("a")},
		{RoundID: 1, Ctext: []byte("b")},
		{RoundID: 1, Ctext: []byte("c")},
	}
	_, err := cryptoShuffle(items)
	require.NoError(t, err)
	require.Equal(t, []byte("a"), items[0].Ctext)
	require.Equal(t, []byte("b"), items[1].Ctext)
	require.Equal(t, []byte("c"), items[2].Ctext)
}
