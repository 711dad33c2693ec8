package providers

import "context"

// ProofEngineProviderSnarkJS remote snarkjs-based proof engine provider
const ProofEngineProviderSnarkJS = "snarkjs"

// ProofEngineProviderGnark in-process gnark proof engine provider
const ProofEngineProviderGnark = "gnark"

// ProgressFunc receives human-readable progress updates during proof
// generation; proofs can legitimately take several minutes
type ProgressFunc func(status string)

// ProofInput carries the padded storage key/value arrays fed to the
// proof engine; both arrays are exactly TreeSize long, values are
// decimal strings
type ProofInput struct {
	StorageKeys   []string `json:"storageKeys"`
	StorageValues []string `json:"storageValues"`
	TreeSize      uint64   `json:"treeSize"`
}

// Proof is a Groth16 proof in the contract's calldata layout: each
// curve coordinate split into two 128-bit limbs, rendered as decimal
// strings
type Proof struct {
	PA []string `json:"pA"`
	PB []string `json:"pB"`
	PC []string `json:"pC"`
}

// ProofResponse is the opaque output of a proof engine: the proof and
// its public signals (treeSize keys, treeSize values, then the root)
type ProofResponse struct {
	Proof         *Proof   `json:"proof"`
	PublicSignals []string `json:"publicSignals"`
}

// ProofEngineProvider provides a common interface to interact with
// proof generation engines
type ProofEngineProvider interface {
	GenerateProof(ctx context.Context, input *ProofInput, onProgress ProgressFunc) (*ProofResponse, error)
}
