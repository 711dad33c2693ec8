package common

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "0xaa", NormalizeKey("0xAA"))
	assert.Equal(t, "0xbb", NormalizeKey("BB"))
	assert.Equal(t, "0xde0b6b3a7640000", NormalizeKey(" 0xDE0B6B3A7640000 "))
	assert.Equal(t, ZeroKey, NormalizeKey(ZeroKey))
}

func TestValidTreeSize(t *testing.T) {
	for _, sz := range []uint64{16, 32, 64, 128} {
		assert.True(t, ValidTreeSize(sz), "tree size %d should be supported", sz)
	}
	for _, sz := range []uint64{0, 1, 8, 99, 256} {
		assert.False(t, ValidTreeSize(sz), "tree size %d should not be supported", sz)
	}
}

func TestParseAmount(t *testing.T) {
	i, err := ParseAmount("0x0de0b6b3a7640000")
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000", i.String())

	i, err = ParseAmount("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), i.Int64())

	for _, zero := range []string{"", "0x", "0X", "0", "0x0"} {
		i, err = ParseAmount(zero)
		require.NoError(t, err)
		assert.Zero(t, i.Sign(), "%q should parse as zero", zero)
	}

	_, err = ParseAmount("0xzz")
	assert.Error(t, err)

	_, err = ParseAmount("not-a-number")
	assert.Error(t, err)

	_, err = ParseAmount("-1")
	assert.Error(t, err)
}

// converting a hex amount to its decimal form and back must round-trip
// to the same numeric value
func TestDecimalAmountRoundTrip(t *testing.T) {
	for _, hex := range []string{"0x1", "0x0de0b6b3a7640000", "0xffffffffffffffffffffffffffffffff"} {
		dec, err := DecimalAmount(hex)
		require.NoError(t, err)

		direct, err := ParseAmount(hex)
		require.NoError(t, err)

		roundTripped, ok := new(big.Int).SetString(dec, 10)
		require.True(t, ok)
		assert.Zero(t, direct.Cmp(roundTripped))
	}
}
