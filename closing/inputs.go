/*
 * Copyright 2017-2022 Provide Technologies Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package closing

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/provideplatform/bridge/common"
	"github.com/provideplatform/bridge/state"
	"github.com/provideplatform/bridge/zkp/providers"
)

// BuildProofInputs builds the padded key/value arrays fed to the proof
// engine: the snapshot's registered keys in circuit order up to
// treeSize, values rendered as decimal strings ("0" when absent), both
// arrays padded with the zero key and "0" to exactly treeSize entries
func BuildProofInputs(snapshot *state.Snapshot, treeSize uint64) (*providers.ProofInput, error) {
	if !common.ValidTreeSize(treeSize) {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedTreeSize, treeSize)
	}

	values := snapshot.Values()

	keys := make([]string, 0, treeSize)
	vals := make([]string, 0, treeSize)

	for _, key := range snapshot.RegisteredKeys {
		if uint64(len(keys)) == treeSize {
			break
		}

		k := common.NormalizeKey(key)

		val := "0"
		if raw, ok := values[k]; ok {
			decimal, err := common.DecimalAmount(raw)
			if err != nil {
				return nil, fmt.Errorf("failed to build proof inputs; invalid value for key %s; %s", k, err.Error())
			}
			val = decimal
		}

		keys = append(keys, k)
		vals = append(vals, val)
	}

	for uint64(len(keys)) < treeSize {
		keys = append(keys, common.ZeroKey)
		vals = append(vals, "0")
	}

	return &providers.ProofInput{
		StorageKeys:   keys,
		StorageValues: vals,
		TreeSize:      treeSize,
	}, nil
}

// ValidateProofResponse checks the shape of the proof engine's output
// before it is submitted on-chain: treeSize*2+1 public signals, each a
// canonical BN254 scalar, and proof arrays in the contract's
// pA[4]/pB[8]/pC[4] layout. A proof failing any of these would only
// produce a reverted transaction, so mismatches are fatal here.
func ValidateProofResponse(resp *providers.ProofResponse, treeSize uint64) error {
	if resp == nil || resp.Proof == nil {
		return fmt.Errorf("%w; no proof present", ErrMalformedProof)
	}

	expected := int(treeSize*2 + 1)
	if len(resp.PublicSignals) != expected {
		return fmt.Errorf("%w; expected %d public signals, resolved %d", ErrPublicSignalCount, expected, len(resp.PublicSignals))
	}

	for i, signal := range resp.PublicSignals {
		parsed, err := common.ParseAmount(signal)
		if err != nil {
			return fmt.Errorf("%w; public signal %d is not an integer; %s", ErrMalformedProof, i, err.Error())
		}
		if parsed.Cmp(fr.Modulus()) >= 0 {
			return fmt.Errorf("%w; public signal %d is not a canonical field element", ErrMalformedProof, i)
		}
	}

	if len(resp.Proof.PA) != 4 || len(resp.Proof.PB) != 8 || len(resp.Proof.PC) != 4 {
		return fmt.Errorf("%w; expected pA[4], pB[8], pC[4]; resolved pA[%d], pB[%d], pC[%d]", ErrMalformedProof, len(resp.Proof.PA), len(resp.Proof.PB), len(resp.Proof.PC))
	}

	return nil
}
