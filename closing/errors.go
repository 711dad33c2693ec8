package closing

import "errors"

var (
	// ErrMissingChannelData indicates the on-chain channel view is missing
	// data required to close (participants, final state root or target
	// contract); detected before any work starts
	ErrMissingChannelData = errors.New("missing on-chain channel data")

	// ErrNotLeader indicates the caller is not the channel leader; only
	// the leader may close a channel
	ErrNotLeader = errors.New("caller is not the channel leader")

	// ErrUnsupportedTreeSize indicates a merkle tree capacity outside the
	// supported set {16, 32, 64, 128}
	ErrUnsupportedTreeSize = errors.New("unsupported tree size")

	// ErrPermutationLength indicates the built permutation does not cover
	// every pre-allocated key and participant; submitting it would only
	// produce a reverted transaction
	ErrPermutationLength = errors.New("permutation length mismatch")

	// ErrPublicSignalCount indicates the proof engine returned a public
	// signal count other than treeSize*2+1; such a proof cannot verify
	// on-chain
	ErrPublicSignalCount = errors.New("public signal count mismatch")

	// ErrMalformedProof indicates the proof arrays returned by the engine
	// do not match the contract calldata layout
	ErrMalformedProof = errors.New("malformed proof")
)
