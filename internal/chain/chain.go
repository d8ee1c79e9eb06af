// Package chain holds the boundary to the external blockchain collaborators:
// the signing relay that performs actions and the metrics source that reads
// profile standing. The core never retries a submission; transactions are
// not idempotent, so retry policy belongs to the caller or the relay.
package chain

import (
	"context"
	"errors"
)

// #region errors

var (
	// ErrUnavailable marks connectivity failures: the relay or metrics
	// source could not be reached. Surfaced as service-unavailable.
	ErrUnavailable = errors.New("chain: collaborator unavailable")

	// ErrRejected marks caller-attributable rejections reported by the
	// relay: invalid parameters, missing permissions, insufficient funds.
	ErrRejected = errors.New("chain: action rejected")
)

// #endregion errors

// #region receipt

// Receipt reports the outcome of one executed action.
type Receipt struct {
	TxHash string `json:"tx_hash"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// #endregion receipt

// #region executor

// Executor performs a chosen action against the outside world. Every call
// blocks on broadcast and confirmation, so callers pass a context with a
// deadline.
type Executor interface {
	MakePost(ctx context.Context, profileAddress, contentRef string) (Receipt, error)
	FollowProfile(ctx context.Context, profileAddress, targetAddress string) (Receipt, error)
	RewardFollower(ctx context.Context, profileAddress, targetAddress, amountWei string) (Receipt, error)
}

// #endregion executor
