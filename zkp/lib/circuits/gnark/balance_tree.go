package gnark

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

// BalanceTreeCircuit binds a channel's padded storage keys and values to
// the state root committed at proof time. Keys, Values and Root are all
// public: the verifying contract consumes them as treeSize keys followed
// by treeSize values followed by the root, i.e., treeSize*2+1 signals.
type BalanceTreeCircuit struct {
	Keys   []frontend.Variable `gnark:",public"`
	Values []frontend.Variable `gnark:",public"`
	Root   frontend.Variable   `gnark:",public"`
}

// Define declares the circuit constraints: a MiMC sponge absorbs each
// (key, value) pair in registered order and must squeeze out Root
func (c *BalanceTreeCircuit) Define(api frontend.API) error {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}

	for i := range c.Keys {
		h.Write(c.Keys[i], c.Values[i])
	}

	api.AssertIsEqual(c.Root, h.Sum())
	return nil
}
