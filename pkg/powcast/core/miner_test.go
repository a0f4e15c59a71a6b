package core

import (
	"context"
	"testing"
	"time"

	"github.com/jabolina/go-powcast/pkg/powcast/definition"
	"github.com/jabolina/go-powcast/pkg/powcast/types"
	"github.com/stretchr/testify/require"
)

// A difficulty no search will meet within a test run.
const unreachableDifficulty = 20

type minerHarness struct {
	miner    *Miner
	ledger   *types.Ledger
	observer Transport
	invoker  Invoker
}

func newMinerHarness(t *testing.T) *minerHarness {
	t.Helper()
	bus := NewLoopbackBus()
	transport := bus.Join()
	observer := bus.Join()
	ctx, cancel := context.WithCancel(context.Background())
	configuration := testConfiguration(9)
	ledger := types.NewLedger(definition.NewDefaultStorage())
	invoker := NewInvoker()
	miner := NewMiner(ctx, configuration, transport, ledger, invoker, testMetrics(), definition.NewDefaultLogger("miner-test"))
	t.Cleanup(func() {
		cancel()
		invoker.Stop()
	})
	return &minerHarness{
		miner:    miner,
		ledger:   ledger,
		observer: observer,
		invoker:  invoker,
	}
}

func TestMiner_WorkerFindsSolution(t *testing.T) {
	h := newMinerHarness(t)
	h.miner.OnChallenge(types.ChallengeAnnounce{TransactionID: 1, Challenge: 1})

	payload, ok := receiveOn(t, h.observer, "sd/solution", 5*time.Second)
	require.True(t, ok, "worker never submitted")
	submit, err := types.ParseSolutionSubmit(payload)
	require.NoError(t, err)

	// The smallest nonce whose digest starts with one zero.
	require.Equal(t, "1:12", submit.Solution)
	require.Equal(t, types.ClientID(9), submit.ClientID)
	require.Equal(t, types.TransactionID(1), submit.TransactionID)

	// The challenge was recorded on the local view as pending.
	entry, ok := h.ledger.Get(1)
	require.True(t, ok)
	require.False(t, entry.Resolved())
}

// Another miner winning preempts the local search before it
// publishes anything.
func TestMiner_ResultStopsActiveWorker(t *testing.T) {
	h := newMinerHarness(t)
	h.miner.OnChallenge(types.ChallengeAnnounce{TransactionID: 1, Challenge: unreachableDifficulty})
	require.NotNil(t, h.miner.Active())

	h.miner.OnResult(types.ResultAnnounce{ClientID: 3, TransactionID: 1, Solution: "1:70", Result: 1})
	require.Nil(t, h.miner.Active())

	entry, ok := h.ledger.Get(1)
	require.True(t, ok)
	require.Equal(t, types.ClientID(3), entry.Winner)

	if _, ok := receiveOn(t, h.observer, "sd/solution", 100*time.Millisecond); ok {
		t.Fatalf("preempted worker still submitted")
	}
}

// Each new challenge unconditionally supersedes the previous one,
// there is at most one active worker and it targets the latest
// observed transaction.
func TestMiner_ChallengeSupersedesWorker(t *testing.T) {
	h := newMinerHarness(t)
	h.miner.OnChallenge(types.ChallengeAnnounce{TransactionID: 1, Challenge: unreachableDifficulty})
	first := h.miner.Active()
	require.Equal(t, types.TransactionID(1), first.Transaction())

	h.miner.OnChallenge(types.ChallengeAnnounce{TransactionID: 2, Challenge: unreachableDifficulty})
	second := h.miner.Active()
	require.Equal(t, types.TransactionID(2), second.Transaction())
	require.NotEqual(t, first, second)
}

// A verdict for a transaction other than the active one leaves the
// worker searching.
func TestMiner_UnrelatedResultKeepsWorker(t *testing.T) {
	h := newMinerHarness(t)
	h.miner.OnChallenge(types.ChallengeAnnounce{TransactionID: 2, Challenge: unreachableDifficulty})

	h.miner.OnResult(types.ResultAnnounce{ClientID: 3, TransactionID: 1, Solution: "1:70", Result: 1})
	require.NotNil(t, h.miner.Active())
	require.Equal(t, types.TransactionID(2), h.miner.Active().Transaction())
}

// Rejections are informational only.
func TestMiner_RejectionKeepsWorker(t *testing.T) {
	h := newMinerHarness(t)
	h.miner.OnChallenge(types.ChallengeAnnounce{TransactionID: 1, Challenge: unreachableDifficulty})

	h.miner.OnResult(types.ResultAnnounce{ClientID: 3, TransactionID: 1, Solution: "0:0", Result: 0})
	require.NotNil(t, h.miner.Active())
}

// Duplicate verdicts converge to the same local ledger state.
func TestMiner_DuplicateResultsIdempotent(t *testing.T) {
	h := newMinerHarness(t)
	h.miner.OnChallenge(types.ChallengeAnnounce{TransactionID: 1, Challenge: unreachableDifficulty})

	verdict := types.ResultAnnounce{ClientID: 3, TransactionID: 1, Solution: "1:70", Result: 1}
	h.miner.OnResult(verdict)
	first, _ := h.ledger.Get(1)

	h.miner.OnResult(verdict)
	second, _ := h.ledger.Get(1)
	require.Equal(t, first, second)
}
