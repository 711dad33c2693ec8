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

package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/provideplatform/bridge/closing"
	"github.com/provideplatform/bridge/common"
	"github.com/provideplatform/bridge/zkp/providers"
)

const receiptPollInterval = time.Second * 5

// bridge contract surface consumed by the closing flow
const bridgeABI = `[
	{"type":"function","name":"getChannelLeader","stateMutability":"view","inputs":[{"name":"channelId","type":"bytes32"}],"outputs":[{"type":"address"}]},
	{"type":"function","name":"getChannelParticipants","stateMutability":"view","inputs":[{"name":"channelId","type":"bytes32"}],"outputs":[{"type":"address[]"}]},
	{"type":"function","name":"getChannelTreeSize","stateMutability":"view","inputs":[{"name":"channelId","type":"bytes32"}],"outputs":[{"type":"uint256"}]},
	{"type":"function","name":"getChannelFinalStateRoot","stateMutability":"view","inputs":[{"name":"channelId","type":"bytes32"}],"outputs":[{"type":"bytes32"}]},
	{"type":"function","name":"getChannelTargetContract","stateMutability":"view","inputs":[{"name":"channelId","type":"bytes32"}],"outputs":[{"type":"address"}]},
	{"type":"function","name":"getPreAllocatedKeys","stateMutability":"view","inputs":[{"name":"channelId","type":"bytes32"}],"outputs":[{"type":"bytes32[]"}]},
	{"type":"function","name":"getL2MptKey","stateMutability":"view","inputs":[{"name":"participant","type":"address"}],"outputs":[{"type":"bytes32"}]},
	{"type":"function","name":"verifyFinalBalancesGroth16","stateMutability":"nonpayable","inputs":[{"name":"channelId","type":"bytes32"},{"name":"finalBalances","type":"uint256[]"},{"name":"permutation","type":"uint256[]"},{"name":"pA","type":"uint256[4]"},{"name":"pB","type":"uint256[8]"},{"name":"pC","type":"uint256[4]"}],"outputs":[{"type":"bool"}]}
]`

// Client reads and writes the channel bridge contract over JSON-RPC;
// implements closing.ContractClient
type Client struct {
	eth      *ethclient.Client
	contract *bind.BoundContract
	signer   *bind.TransactOpts
}

// Dial connects to the given JSON-RPC endpoint and binds the bridge
// contract at contractAddress; signerKey is the 0x-prefixed hex private
// key used to sign the close-channel transaction
func Dial(ctx context.Context, rpcURL, contractAddress, signerKey string, chainID int64) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial JSON-RPC endpoint %s; %s", rpcURL, err.Error())
	}

	parsed, err := abi.JSON(strings.NewReader(bridgeABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse bridge contract ABI; %s", err.Error())
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(signerKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse signer key; %s", err.Error())
	}

	signer, err := bind.NewKeyedTransactorWithChainID(key, big.NewInt(chainID))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize transaction signer; %s", err.Error())
	}

	address := ethcommon.HexToAddress(contractAddress)
	contract := bind.NewBoundContract(address, parsed, eth, eth, eth)

	return &Client{
		eth:      eth,
		contract: contract,
		signer:   signer,
	}, nil
}

// ChannelView reads the channel's current on-chain projection; always a
// fresh read, never cached, since deposits and participants can change
// before closing
func (c *Client) ChannelView(ctx context.Context, channelID string) (*closing.ChannelView, error) {
	id := ethcommon.HexToHash(channelID)
	opts := &bind.CallOpts{Context: ctx}

	var leader ethcommon.Address
	err := c.call(opts, &leader, "getChannelLeader", id)
	if err != nil {
		return nil, err
	}

	var participants []ethcommon.Address
	err = c.call(opts, &participants, "getChannelParticipants", id)
	if err != nil {
		return nil, err
	}

	var treeSize *big.Int
	err = c.call(opts, &treeSize, "getChannelTreeSize", id)
	if err != nil {
		return nil, err
	}

	var finalStateRoot [32]byte
	err = c.call(opts, &finalStateRoot, "getChannelFinalStateRoot", id)
	if err != nil {
		return nil, err
	}

	var targetContract ethcommon.Address
	err = c.call(opts, &targetContract, "getChannelTargetContract", id)
	if err != nil {
		return nil, err
	}

	var preAllocatedKeys [][32]byte
	err = c.call(opts, &preAllocatedKeys, "getPreAllocatedKeys", id)
	if err != nil {
		return nil, err
	}

	view := &closing.ChannelView{
		ChannelID:        id.Hex(),
		Leader:           leader.Hex(),
		Participants:     make([]string, len(participants)),
		PreAllocatedKeys: make([]string, len(preAllocatedKeys)),
		TreeSize:         treeSize.Uint64(),
		FinalStateRoot:   hexutil.Encode(finalStateRoot[:]),
		TargetContract:   targetContract.Hex(),
	}

	for i, participant := range participants {
		view.Participants[i] = participant.Hex()
	}
	for i, key := range preAllocatedKeys {
		view.PreAllocatedKeys[i] = hexutil.Encode(key[:])
	}

	return view, nil
}

// L2MptKey reads the given participant's L2 storage key in its 32-byte
// hex form
func (c *Client) L2MptKey(ctx context.Context, participant string) (string, error) {
	var key [32]byte
	err := c.call(&bind.CallOpts{Context: ctx}, &key, "getL2MptKey", ethcommon.HexToAddress(participant))
	if err != nil {
		return "", err
	}
	return hexutil.Encode(key[:]), nil
}

// VerifyFinalBalancesGroth16 submits the close-channel call and returns
// the transaction hash; receipt confirmation is the caller's concern
func (c *Client) VerifyFinalBalancesGroth16(ctx context.Context, channelID string, finalBalances []*big.Int, permutation []uint64, proof *providers.Proof) (string, error) {
	pA, pB, pC, err := proofCalldata(proof)
	if err != nil {
		return "", err
	}

	perm := make([]*big.Int, len(permutation))
	for i, idx := range permutation {
		perm[i] = new(big.Int).SetUint64(idx)
	}

	opts := *c.signer
	opts.Context = ctx

	tx, err := c.contract.Transact(&opts, "verifyFinalBalancesGroth16", ethcommon.HexToHash(channelID), finalBalances, perm, pA, pB, pC)
	if err != nil {
		return "", fmt.Errorf("failed to submit verifyFinalBalancesGroth16 for channel %s; %s", channelID, err.Error())
	}

	common.Log.Debugf("submitted verifyFinalBalancesGroth16 for channel %s; tx: %s", channelID, tx.Hash().Hex())
	return tx.Hash().Hex(), nil
}

// WaitForReceipt blocks until the given transaction is mined, failing
// if it reverted
func (c *Client) WaitForReceipt(ctx context.Context, txHash string) error {
	hash := ethcommon.HexToHash(txHash)

	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.eth.TransactionReceipt(ctx, hash)
		if err == nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return fmt.Errorf("transaction reverted: %s", txHash)
			}
			return nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return fmt.Errorf("failed to fetch receipt for %s; %s", txHash, err.Error())
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) call(opts *bind.CallOpts, result interface{}, method string, args ...interface{}) error {
	var out []interface{}
	err := c.contract.Call(opts, &out, method, args...)
	if err != nil {
		return fmt.Errorf("failed to read %s; %s", method, err.Error())
	}
	if len(out) == 0 {
		return fmt.Errorf("failed to read %s; empty result", method)
	}
	return assign(result, out[0])
}

func assign(dst interface{}, src interface{}) error {
	switch d := dst.(type) {
	case *ethcommon.Address:
		v, ok := src.(ethcommon.Address)
		if !ok {
			return fmt.Errorf("unexpected result type %T", src)
		}
		*d = v
	case *[]ethcommon.Address:
		v, ok := src.([]ethcommon.Address)
		if !ok {
			return fmt.Errorf("unexpected result type %T", src)
		}
		*d = v
	case **big.Int:
		v, ok := src.(*big.Int)
		if !ok {
			return fmt.Errorf("unexpected result type %T", src)
		}
		*d = v
	case *[32]byte:
		v, ok := src.([32]byte)
		if !ok {
			return fmt.Errorf("unexpected result type %T", src)
		}
		*d = v
	case *[][32]byte:
		v, ok := src.([][32]byte)
		if !ok {
			return fmt.Errorf("unexpected result type %T", src)
		}
		*d = v
	default:
		return fmt.Errorf("unsupported result destination %T", dst)
	}
	return nil
}

// proofCalldata parses the engine's decimal proof limbs into the fixed
// uint256 arrays the contract expects
func proofCalldata(proof *providers.Proof) ([4]*big.Int, [8]*big.Int, [4]*big.Int, error) {
	var pA, pC [4]*big.Int
	var pB [8]*big.Int

	if proof == nil || len(proof.PA) != 4 || len(proof.PB) != 8 || len(proof.PC) != 4 {
		return pA, pB, pC, fmt.Errorf("malformed proof; expected pA[4], pB[8], pC[4]")
	}

	parse := func(val string) (*big.Int, error) {
		v, ok := new(big.Int).SetString(val, 10)
		if !ok {
			return nil, fmt.Errorf("malformed proof element: %s", val)
		}
		return v, nil
	}

	var err error
	for i, val := range proof.PA {
		if pA[i], err = parse(val); err != nil {
			return pA, pB, pC, err
		}
	}
	for i, val := range proof.PB {
		if pB[i], err = parse(val); err != nil {
			return pA, pB, pC, err
		}
	}
	for i, val := range proof.PC {
		if pC[i], err = parse(val); err != nil {
			return pA, pB, pC, err
		}
	}

	return pA, pB, pC, nil
}
