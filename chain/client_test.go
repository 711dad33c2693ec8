package chain

import (
	"math/big"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/provideplatform/bridge/zkp/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProofCalldata(t *testing.T) {
	proof := &providers.Proof{
		PA: []string{"1", "2", "3", "4"},
		PB: []string{"5", "6", "7", "8", "9", "10", "11", "12"},
		PC: []string{"13", "14", "15", "340282366920938463463374607431768211455"},
	}

	pA, pB, pC, err := proofCalldata(proof)
	require.NoError(t, err)

	assert.Equal(t, big.NewInt(1), pA[0])
	assert.Equal(t, big.NewInt(4), pA[3])
	assert.Equal(t, big.NewInt(5), pB[0])
	assert.Equal(t, big.NewInt(12), pB[7])
	assert.Equal(t, big.NewInt(13), pC[0])

	max128, _ := new(big.Int).SetString("340282366920938463463374607431768211455", 10)
	assert.Equal(t, max128, pC[3])
}

func TestProofCalldataRejectsMalformedProofs(t *testing.T) {
	_, _, _, err := proofCalldata(nil)
	assert.Error(t, err)

	_, _, _, err = proofCalldata(&providers.Proof{
		PA: []string{"1", "2", "3"},
		PB: []string{"1", "2", "3", "4", "5", "6", "7", "8"},
		PC: []string{"1", "2", "3", "4"},
	})
	assert.Error(t, err)

	_, _, _, err = proofCalldata(&providers.Proof{
		PA: []string{"1", "2", "3", "0xnothex"},
		PB: []string{"1", "2", "3", "4", "5", "6", "7", "8"},
		PC: []string{"1", "2", "3", "4"},
	})
	assert.Error(t, err)
}

func TestAssignResultTypes(t *testing.T) {
	var addr ethcommon.Address
	require.NoError(t, assign(&addr, ethcommon.HexToAddress("0x00000000000000000000000000000000000000aa")))
	assert.Equal(t, "0x00000000000000000000000000000000000000AA", addr.Hex())

	var key [32]byte
	require.NoError(t, assign(&key, [32]byte{0x01}))
	assert.Equal(t, byte(0x01), key[0])

	var size *big.Int
	require.NoError(t, assign(&size, big.NewInt(16)))
	assert.Equal(t, uint64(16), size.Uint64())

	assert.Error(t, assign(&addr, big.NewInt(1)))
}
