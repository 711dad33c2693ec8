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
	"math/big"

	"github.com/provideplatform/bridge/common"
	"github.com/provideplatform/bridge/state"
)

// PermutationResult carries the ordering reconciliation between the
// contract's fixed iteration order and the circuit's registered-key
// order, plus each participant's final balance.
//
// Permutation entry i gives the proof index (position in the snapshot's
// registered keys) that the contract's position i maps to; all
// pre-allocated entries come first, in on-chain pre-allocated key
// order, then all participant entries, in on-chain participant order.
// This exact ordering is a hard contract requirement.
//
// FinalBalances is parallel to the participant portion only:
// FinalBalances[i] is participant i's balance at its L2 key.
type PermutationResult struct {
	Permutation   []uint64
	FinalBalances []*big.Int
}

// BuildPermutation reconstructs the permutation and final balances for
// the given snapshot and on-chain view; l2Keys is parallel to
// view.Participants, one on-chain L2 storage key per participant.
//
// A key absent from the snapshot's registered keys falls back to proof
// index 0 with a warning, matching the verified-proof semantics the
// contract currently tolerates; it is never a silent success.
func BuildPermutation(snapshot *state.Snapshot, view *ChannelView, l2Keys []string) (*PermutationResult, error) {
	if view == nil || len(view.Participants) == 0 || view.FinalStateRoot == "" || view.TargetContract == "" {
		return nil, fmt.Errorf("%w; cannot close channel %s", ErrMissingChannelData, channelRef(view))
	}

	if len(l2Keys) != len(view.Participants) {
		return nil, fmt.Errorf("%w; resolved %d L2 keys for %d participants", ErrMissingChannelData, len(l2Keys), len(view.Participants))
	}

	indexes := snapshot.ProofIndexes()
	values := snapshot.Values()

	permutation := make([]uint64, 0, len(view.PreAllocatedKeys)+len(view.Participants))
	balances := make([]*big.Int, 0, len(view.Participants))

	for _, key := range view.PreAllocatedKeys {
		k := common.NormalizeKey(key)
		idx, ok := indexes[k]
		if !ok {
			common.Log.Warningf("pre-allocated key %s not present in registered keys for channel %s; falling back to proof index 0", k, view.ChannelID)
			idx = 0
		}
		permutation = append(permutation, uint64(idx))
	}

	for i, participant := range view.Participants {
		k := common.NormalizeKey(l2Keys[i])

		idx, ok := indexes[k]
		if !ok {
			common.Log.Warningf("L2 key %s for participant %s not present in registered keys for channel %s; falling back to proof index 0", k, participant, view.ChannelID)
			idx = 0
		}
		permutation = append(permutation, uint64(idx))

		balance := new(big.Int)
		if raw, ok := values[k]; ok {
			parsed, err := common.ParseAmount(raw)
			if err != nil {
				return nil, fmt.Errorf("failed to parse balance for participant %s at key %s; %s", participant, k, err.Error())
			}
			balance = parsed
		}
		balances = append(balances, balance)
	}

	if len(permutation) != len(view.PreAllocatedKeys)+len(view.Participants) {
		return nil, fmt.Errorf("%w; built %d entries for %d pre-allocated keys and %d participants", ErrPermutationLength, len(permutation), len(view.PreAllocatedKeys), len(view.Participants))
	}

	return &PermutationResult{
		Permutation:   permutation,
		FinalBalances: balances,
	}, nil
}

func channelRef(view *ChannelView) string {
	if view == nil {
		return "(nil)"
	}
	return view.ChannelID
}
