package post

import "fmt"

// Reward amounts.
const (
	// SelfRemoval is the owner-only weight that buries one's own post.
	SelfRemoval = -100
	Downvote    = -1
	Withdraw    = 0
	Upvote      = 1
)

// MaxBalance bounds the absolute value of an account's GaveReward.
const MaxBalance = 10

// Reward casts amount from the voter account root onto target, replacing any
// earlier vote of the voter on target. It returns the updated voter and the
// updated target. When target and voter are the same post the single
// updated value is returned as the voter and the target is nil.
//
// On error the voter is returned unchanged and the target is nil.
func Reward(target, voter Post, amount int) (Post, *Post, error) {
	switch amount {
	case SelfRemoval:
		if target.AccessHash == "" || target.AccessHash != voter.AccessHash {
			return voter, nil, ErrNotOwner
		}
	case Downvote, Withdraw, Upvote:
	default:
		return voter, nil, fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}

	// A self-removal replacing a ±1 vote releases that vote's share, so the
	// bound applies to it too.
	prev := int(voter.Votes[target.ID])
	balance := int(voter.GaveReward) - balanceShare(prev) + balanceShare(amount)
	if balance < -MaxBalance || balance > MaxBalance {
		return voter, nil, fmt.Errorf("%w: %d", ErrBalance, balance)
	}

	delta := int64(amount - prev)

	newVoter := voter.Clone()
	newVoter.GaveReward = int8(balance)
	if newVoter.Votes == nil {
		newVoter.Votes = make(map[string]int8)
	}
	if amount == Withdraw {
		delete(newVoter.Votes, target.ID)
	} else {
		newVoter.Votes[target.ID] = int8(amount)
	}

	if target.ID == voter.ID {
		newVoter.Reward += delta
		return newVoter, nil, nil
	}

	newTarget := target.Clone()
	newTarget.Reward += delta
	return newVoter, &newTarget, nil
}

// balanceShare is how much a recorded vote counts toward the balance.
// Self-removals do not count.
func balanceShare(amount int) int {
	if amount == SelfRemoval {
		return 0
	}
	return amount
}
