package closing

import (
	"context"
	"math/big"

	"github.com/provideplatform/bridge/state"
	"github.com/provideplatform/bridge/zkp/providers"
)

// ChannelView is the read-only projection of a channel's current
// contract state; read fresh from chain per closing attempt and never
// cached across channel-state transitions, since deposits and
// participants can change before closing. All identifiers are
// 0x-prefixed hex strings.
type ChannelView struct {
	ChannelID        string
	Leader           string
	Participants     []string
	PreAllocatedKeys []string
	TreeSize         uint64
	FinalStateRoot   string
	TargetContract   string
}

// SnapshotSource resolves a channel's latest verified state snapshot
type SnapshotSource interface {
	FetchLatestVerifiedSnapshot(ctx context.Context, channelID string) (*state.Snapshot, error)
}

// ContractClient provides the bridge contract reads and the
// close-channel write consumed by the orchestrator
type ContractClient interface {
	// ChannelView reads the channel's current on-chain projection
	ChannelView(ctx context.Context, channelID string) (*ChannelView, error)

	// L2MptKey reads the given participant's L2 storage key
	L2MptKey(ctx context.Context, participant string) (string, error)

	// VerifyFinalBalancesGroth16 submits the close-channel call and
	// returns the transaction hash
	VerifyFinalBalancesGroth16(ctx context.Context, channelID string, finalBalances []*big.Int, permutation []uint64, proof *providers.Proof) (string, error)

	// WaitForReceipt blocks until the given transaction is mined,
	// returning an error if it reverted
	WaitForReceipt(ctx context.Context, txHash string) error
}
