package gnark

import (
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	gnarkhash "github.com/consensys/gnark-crypto/hash"
	"github.com/consensys/gnark/backend"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/test"
)

func mimcRoot(keys, values []*big.Int) *big.Int {
	h := gnarkhash.MIMC_BN254.New()
	var e fr.Element
	for i := range keys {
		e.SetBigInt(keys[i])
		b := e.Bytes()
		h.Write(b[:])

		e.SetBigInt(values[i])
		b = e.Bytes()
		h.Write(b[:])
	}
	return new(big.Int).SetBytes(h.Sum(nil))
}

func TestBalanceTreeCircuit(t *testing.T) {
	assert := test.NewAssert(t)

	keys := []*big.Int{big.NewInt(0xaa), big.NewInt(0xbb)}
	values := []*big.Int{big.NewInt(1), new(big.Int).SetUint64(1000000000000000000)}

	circuit := &BalanceTreeCircuit{
		Keys:   make([]frontend.Variable, len(keys)),
		Values: make([]frontend.Variable, len(values)),
	}

	witness := &BalanceTreeCircuit{
		Keys:   []frontend.Variable{keys[0], keys[1]},
		Values: []frontend.Variable{values[0], values[1]},
		Root:   mimcRoot(keys, values),
	}

	assert.ProverSucceeded(circuit, witness, test.WithCurves(ecc.BN254), test.WithBackends(backend.GROTH16))
}

func TestBalanceTreeCircuitRejectsWrongRoot(t *testing.T) {
	assert := test.NewAssert(t)

	circuit := &BalanceTreeCircuit{
		Keys:   make([]frontend.Variable, 1),
		Values: make([]frontend.Variable, 1),
	}

	witness := &BalanceTreeCircuit{
		Keys:   []frontend.Variable{big.NewInt(0xaa)},
		Values: []frontend.Variable{big.NewInt(1)},
		Root:   big.NewInt(1337),
	}

	assert.ProverFailed(circuit, witness, test.WithCurves(ecc.BN254), test.WithBackends(backend.GROTH16))
}
