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
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/provideplatform/bridge/common"
	"github.com/provideplatform/bridge/zkp/providers"
)

// close attempt states; succeeded and failed are terminal and re-entry
// requires a fresh attempt
const (
	StatusIdle       = "idle"
	StatusPreparing  = "preparing"
	StatusProving    = "proving"
	StatusSubmitting = "submitting"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
)

// StatusFunc receives state transitions and a human-readable
// description of the phase in progress
type StatusFunc func(status, description string)

// Result is the outcome of a successful close attempt
type Result struct {
	TxHash        string
	Permutation   []uint64
	FinalBalances []*big.Int
}

// Closer sequences one close-channel attempt: reconstruct the
// permutation and final balances from the latest verified snapshot,
// obtain a Groth16 proof and submit verifyFinalBalancesGroth16.
//
// A Closer runs exactly one attempt and keeps no partial progress; a
// retry redoes permutation building and proof generation from scratch
// with a new Closer.
type Closer struct {
	snapshots SnapshotSource
	contract  ContractClient
	engine    providers.ProofEngineProvider
	onStatus  StatusFunc

	mutex  sync.Mutex
	status string
	err    error
}

// NewCloser initializes a close-channel orchestrator; onStatus may be nil
func NewCloser(snapshots SnapshotSource, contract ContractClient, engine providers.ProofEngineProvider, onStatus StatusFunc) *Closer {
	return &Closer{
		snapshots: snapshots,
		contract:  contract,
		engine:    engine,
		onStatus:  onStatus,
		status:    StatusIdle,
	}
}

// Status returns the current state of the attempt and, in the failed
// state, the captured error
func (c *Closer) Status() (string, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.status, c.err
}

func (c *Closer) transition(status, description string) {
	c.mutex.Lock()
	c.status = status
	c.mutex.Unlock()

	common.Log.Debugf("close attempt transitioned to %s; %s", status, description)
	if c.onStatus != nil {
		c.onStatus(status, description)
	}
}

func (c *Closer) fail(phase string, err error) error {
	wrapped := fmt.Errorf("%s failed; %w", phase, err)

	c.mutex.Lock()
	c.status = StatusFailed
	c.err = wrapped
	c.mutex.Unlock()

	common.Log.Warningf("close attempt failed during %s; %s", phase, err.Error())
	if c.onStatus != nil {
		c.onStatus(StatusFailed, wrapped.Error())
	}
	return wrapped
}

// Close runs the attempt for the given channel on behalf of caller; the
// caller must be the channel leader. Proof generation can take several
// minutes, so the given context should carry a generous deadline, if any.
func (c *Closer) Close(ctx context.Context, channelID, caller string) (*Result, error) {
	c.mutex.Lock()
	if c.status != StatusIdle {
		status := c.status
		c.mutex.Unlock()
		return nil, fmt.Errorf("close attempt already %s; initiate a fresh attempt", status)
	}
	c.mutex.Unlock()

	if channelID == "" {
		return nil, c.fail("precondition check", fmt.Errorf("%w; channel id required", ErrMissingChannelData))
	}
	if caller == "" {
		return nil, c.fail("precondition check", fmt.Errorf("%w; caller address required", ErrMissingChannelData))
	}

	view, err := c.contract.ChannelView(ctx, channelID)
	if err != nil {
		return nil, c.fail("channel state read", err)
	}

	// non-leaders are blocked before any work starts
	if !strings.EqualFold(common.NormalizeKey(caller), common.NormalizeKey(view.Leader)) {
		return nil, c.fail("precondition check", fmt.Errorf("%w; %s attempted to close channel led by %s", ErrNotLeader, caller, view.Leader))
	}

	c.transition(StatusPreparing, "reconstructing channel state from latest verified proof")

	// fetched once; the permutation and the circuit inputs must be
	// derived from the same snapshot or a newly-submitted proof could
	// race the two out of agreement
	snapshot, err := c.snapshots.FetchLatestVerifiedSnapshot(ctx, channelID)
	if err != nil {
		return nil, c.fail("snapshot fetch", err)
	}

	l2Keys := make([]string, len(view.Participants))
	for i, participant := range view.Participants {
		key, err := c.contract.L2MptKey(ctx, participant)
		if err != nil {
			return nil, c.fail("L2 key resolution", err)
		}
		l2Keys[i] = key
	}

	permutation, err := BuildPermutation(snapshot, view, l2Keys)
	if err != nil {
		return nil, c.fail("permutation reconstruction", err)
	}

	inputs, err := BuildProofInputs(snapshot, view.TreeSize)
	if err != nil {
		return nil, c.fail("proof input assembly", err)
	}

	c.transition(StatusProving, "generating Groth16 proof; this may take several minutes")

	response, err := c.engine.GenerateProof(ctx, inputs, func(status string) {
		if c.onStatus != nil {
			c.onStatus(StatusProving, status)
		}
	})
	if err != nil {
		return nil, c.fail("proof generation", err)
	}

	err = ValidateProofResponse(response, view.TreeSize)
	if err != nil {
		return nil, c.fail("proof validation", err)
	}

	c.transition(StatusSubmitting, "submitting final balances for on-chain verification")

	txHash, err := c.contract.VerifyFinalBalancesGroth16(ctx, channelID, permutation.FinalBalances, permutation.Permutation, response.Proof)
	if err != nil {
		return nil, c.fail("close submission", err)
	}

	err = c.contract.WaitForReceipt(ctx, txHash)
	if err != nil {
		return nil, c.fail("receipt confirmation", err)
	}

	c.transition(StatusSucceeded, fmt.Sprintf("channel closed; tx: %s", txHash))

	return &Result{
		TxHash:        txHash,
		Permutation:   permutation.Permutation,
		FinalBalances: permutation.FinalBalances,
	}, nil
}
