package core

import (
	"errors"

	"github.com/jabolina/go-powcast/pkg/powcast/types"
)

var (
	// Err returned when a client announces a ballot that differs from
	// the one already recorded for it. Two nodes drew the same
	// ClientID, the cohort cannot proceed.
	ErrBallotConflict = errors.New("conflicting ballot for an already recorded client")
)

// Election accumulates ballots until the whole cohort voted, then
// computes the controller deterministically. Every receiver applies
// first-write-wins per client, so all nodes that observe the full
// ballot set agree on the same controller.
type Election struct {
	// Own ballot, drawn eagerly on phase entry.
	self types.Ballot

	// Recorded ballots, one per client.
	votes map[types.ClientID]types.VoteID

	// Cohort size the election waits for.
	cohort int

	// Election logger.
	log types.Logger
}

// The ballot is drawn by the caller on phase entry, eagerly, so the
// own vote is recorded before the first announcement goes out.
func NewElection(ballot types.Ballot, cohort int, log types.Logger) *Election {
	votes := make(map[types.ClientID]types.VoteID)
	votes[ballot.ClientID] = ballot.VoteID
	return &Election{
		self:   ballot,
		votes:  votes,
		cohort: cohort,
		log:    log,
	}
}

// Ballot returns the node own ballot.
func (e *Election) Ballot() types.Ballot {
	return e.self
}

// Observe a broadcast ballot. The first ballot recorded per client
// is authoritative, repeats are idempotent. A repeat carrying a
// different VoteID exposes a ClientID collision and fails.
func (e *Election) Observe(ballot types.Ballot) (bool, error) {
	recorded, ok := e.votes[ballot.ClientID]
	if ok {
		if recorded != ballot.VoteID {
			return false, ErrBallotConflict
		}
		return false, nil
	}
	e.votes[ballot.ClientID] = ballot.VoteID
	e.log.Infof("recorded ballot %d from %d, %d of %d", ballot.VoteID, ballot.ClientID, len(e.votes), e.cohort)
	return true, nil
}

// Complete reports whether the whole cohort voted.
func (e *Election) Complete() bool {
	return len(e.votes) >= e.cohort
}

// Leader computes the elected controller, the client whose
// (VoteID, ClientID) pair is the lexicographic maximum.
func (e *Election) Leader() types.ClientID {
	leader := types.ClientID(-1)
	best := types.VoteID(-1)
	for client, vote := range e.votes {
		if vote > best || (vote == best && client > leader) {
			leader = client
			best = vote
		}
	}
	return leader
}

// Votes returns a copy of the recorded ballots.
func (e *Election) Votes() map[types.ClientID]types.VoteID {
	votes := make(map[types.ClientID]types.VoteID, len(e.votes))
	for client, vote := range e.votes {
		votes[client] = vote
	}
	return votes
}
