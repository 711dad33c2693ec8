package providers

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	gnarkhash "github.com/consensys/gnark-crypto/hash"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/provideplatform/bridge/common"
	circuits "github.com/provideplatform/bridge/zkp/lib/circuits/gnark"
)

// GnarkProofEngineProvider generates balance-tree proofs in-process with
// the go-native gnark package; intended for development and testing
// behind the same opaque interface as the remote engine
type GnarkProofEngineProvider struct {
	mutex     sync.Mutex
	artifacts map[uint64]*gnarkArtifacts
}

// compiled constraint system and keys for one tree size; setup runs once
// per tree size and the keys are ephemeral (dev engine, no vault custody)
type gnarkArtifacts struct {
	ccs frontend.CompiledConstraintSystem
	pk  groth16.ProvingKey
	vk  groth16.VerifyingKey
}

// InitGnarkProofEngineProvider initializes and configures a new
// GnarkProofEngineProvider instance
func InitGnarkProofEngineProvider() *GnarkProofEngineProvider {
	return &GnarkProofEngineProvider{
		artifacts: map[uint64]*gnarkArtifacts{},
	}
}

// GenerateProof compiles (or resolves the cached artifacts for) the
// balance-tree circuit at the requested tree size, computes the root
// of the padded key/value arrays and proves it with Groth16 over BN254
func (p *GnarkProofEngineProvider) GenerateProof(ctx context.Context, input *ProofInput, onProgress ProgressFunc) (*ProofResponse, error) {
	if uint64(len(input.StorageKeys)) != input.TreeSize || uint64(len(input.StorageValues)) != input.TreeSize {
		return nil, fmt.Errorf("failed to generate proof; expected %d padded keys and values, resolved %d and %d", input.TreeSize, len(input.StorageKeys), len(input.StorageValues))
	}

	keys, err := parseFieldElements(input.StorageKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to generate proof; %s", err.Error())
	}

	values, err := parseFieldElements(input.StorageValues)
	if err != nil {
		return nil, fmt.Errorf("failed to generate proof; %s", err.Error())
	}

	artifacts, err := p.requireArtifacts(input.TreeSize, onProgress)
	if err != nil {
		return nil, err
	}

	if err = ctx.Err(); err != nil {
		return nil, err
	}

	root := balanceTreeRoot(keys, values)

	if onProgress != nil {
		onProgress(fmt.Sprintf("generating Groth16 proof for %d-leaf tree; this may take several minutes", input.TreeSize))
	}

	assignment := &circuits.BalanceTreeCircuit{
		Keys:   make([]frontend.Variable, len(keys)),
		Values: make([]frontend.Variable, len(values)),
		Root:   root,
	}
	for i := range keys {
		assignment.Keys[i] = keys[i]
		assignment.Values[i] = values[i]
	}

	witness, err := frontend.NewWitness(assignment, ecc.BN254)
	if err != nil {
		return nil, fmt.Errorf("failed to generate proof; failed to serialize witness; %s", err.Error())
	}

	proof, err := groth16.Prove(artifacts.ccs, artifacts.pk, witness)
	if err != nil {
		return nil, fmt.Errorf("failed to generate proof; %s", err.Error())
	}

	publicWitness, err := frontend.NewWitness(assignment, ecc.BN254, frontend.PublicOnly())
	if err != nil {
		return nil, fmt.Errorf("failed to serialize public witness; %s", err.Error())
	}

	err = groth16.Verify(proof, artifacts.vk, publicWitness)
	if err != nil {
		return nil, fmt.Errorf("generated proof failed verification; %s", err.Error())
	}

	encoded, err := encodeProof(proof)
	if err != nil {
		return nil, err
	}

	signals := make([]string, 0, input.TreeSize*2+1)
	for _, k := range keys {
		signals = append(signals, k.String())
	}
	for _, v := range values {
		signals = append(signals, v.String())
	}
	signals = append(signals, root.String())

	if onProgress != nil {
		onProgress("proof generation complete")
	}

	return &ProofResponse{
		Proof:         encoded,
		PublicSignals: signals,
	}, nil
}

func (p *GnarkProofEngineProvider) requireArtifacts(treeSize uint64, onProgress ProgressFunc) (*gnarkArtifacts, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if artifacts, ok := p.artifacts[treeSize]; ok {
		return artifacts, nil
	}

	if onProgress != nil {
		onProgress(fmt.Sprintf("compiling balance tree circuit for %d-leaf tree", treeSize))
	}

	circuit := &circuits.BalanceTreeCircuit{
		Keys:   make([]frontend.Variable, treeSize),
		Values: make([]frontend.Variable, treeSize),
	}

	ccs, err := frontend.Compile(ecc.BN254, r1cs.NewBuilder, circuit)
	if err != nil {
		return nil, fmt.Errorf("failed to compile balance tree circuit for %d-leaf tree; %s", treeSize, err.Error())
	}

	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, fmt.Errorf("failed to setup proving and verifying keys for %d-leaf tree; %s", treeSize, err.Error())
	}

	common.Log.Debugf("compiled balance tree circuit and setup keys for %d-leaf tree", treeSize)

	artifacts := &gnarkArtifacts{ccs: ccs, pk: pk, vk: vk}
	p.artifacts[treeSize] = artifacts
	return artifacts, nil
}

// parseFieldElements parses decimal or hex strings and reduces them into
// canonical BN254 scalar field elements
func parseFieldElements(vals []string) ([]*big.Int, error) {
	elements := make([]*big.Int, len(vals))
	for i, val := range vals {
		v, err := common.ParseAmount(val)
		if err != nil {
			return nil, err
		}
		elements[i] = v.Mod(v, fr.Modulus())
	}
	return elements, nil
}

// balanceTreeRoot absorbs each (key, value) pair into a MiMC sponge in
// registered order; matches the in-circuit constraint in
// zkp/lib/circuits/gnark.BalanceTreeCircuit
func balanceTreeRoot(keys, values []*big.Int) *big.Int {
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
