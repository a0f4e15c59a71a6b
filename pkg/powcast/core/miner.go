package core

import (
	"context"
	"fmt"
	"time"

	"github.com/jabolina/go-powcast/pkg/powcast/helper"
	"github.com/jabolina/go-powcast/pkg/powcast/metric"
	"github.com/jabolina/go-powcast/pkg/powcast/types"
)

// Worker is one proof-of-work search. It iterates nonces for a fixed
// transaction until a valid solution is found or the stop signal is
// observed. Cancellation is cooperative, the worker checks the signal
// once per nonce, so it may run briefly past a stop request. A late
// publish is absorbed by the controller's pending check.
type Worker struct {
	// Identity stamped on the submitted solution.
	self types.ClientID

	// Transaction and difficulty, captured immutably at spawn.
	transaction types.TransactionID
	difficulty  int

	// Transport and topic for the submission.
	transport Transport
	topic     string

	// Yield for about a millisecond after this many misses.
	yieldEvery int

	// The worker context, cancelled by the miner.
	context context.Context

	// The stop signal.
	stop context.CancelFunc

	// Node instrumentation.
	metrics *metric.NodeMetrics

	// Worker logger.
	log types.Logger
}

// Transaction this worker is searching for.
func (w *Worker) Transaction() types.TransactionID {
	return w.transaction
}

// Stop signals the worker to terminate. It does not wait, the worker
// observes the signal at its next nonce check.
func (w *Worker) Stop() {
	w.stop()
}

// Run the nonce search. The candidate is "{transaction}:{nonce}" and
// it solves the challenge when its SHA-1 hex digest carries enough
// leading zeros.
func (w *Worker) Run() {
	for nonce := 0; ; nonce++ {
		candidate := fmt.Sprintf("%d:%d", w.transaction, nonce)
		if helper.MeetsDifficulty(helper.HashHex(candidate), w.difficulty) {
			w.metrics.Hashes.Add(float64(nonce%w.yieldEvery + 1))
			w.submit(candidate)
			return
		}

		select {
		case <-w.context.Done():
			return
		default:
		}

		if nonce > 0 && nonce%w.yieldEvery == 0 {
			w.metrics.Hashes.Add(float64(w.yieldEvery))
			time.Sleep(time.Millisecond)
		}
	}
}

func (w *Worker) submit(candidate string) {
	payload, err := types.Encode(types.SolutionSubmit{
		ClientID:      w.self,
		TransactionID: w.transaction,
		Solution:      candidate,
	})
	if err != nil {
		w.log.Errorf("failed encoding solution for %d. %v", w.transaction, err)
		return
	}
	w.log.Infof("submitting %q for transaction %d", candidate, w.transaction)
	if err := w.transport.Publish(w.topic, payload); err != nil {
		w.log.Errorf("failed publishing solution for %d. %v", w.transaction, err)
	}
}

// Miner is the behavior attached to every non-elected node. It holds
// at most one active worker, tagged with the latest transaction this
// node observed. Both handlers run on the dispatcher, so the active
// handle needs no lock.
type Miner struct {
	// Own identity.
	self types.ClientID

	// Transport for the solution submissions.
	transport Transport

	// Resolved topic names.
	topics types.Topics

	// Local best-effort ledger view.
	ledger *types.Ledger

	// Worker yield boundary.
	yieldEvery int

	// Parent context, workers die with the node.
	context context.Context

	// Used to spawn workers.
	invoker Invoker

	// Node instrumentation.
	metrics *metric.NodeMetrics

	// Miner logger.
	log types.Logger

	// The single active worker, absent between challenges.
	active *Worker
}

func NewMiner(
	ctx context.Context,
	configuration *types.Configuration,
	transport Transport,
	ledger *types.Ledger,
	invoker Invoker,
	metrics *metric.NodeMetrics,
	log types.Logger,
) *Miner {
	return &Miner{
		self:       configuration.ClientID,
		transport:  transport,
		topics:     types.NewTopics(configuration.TopicPrefix),
		ledger:     ledger,
		yieldEvery: configuration.YieldEvery,
		context:    ctx,
		invoker:    invoker,
		metrics:    metrics,
		log:        log,
	}
}

// OnChallenge preempts the previous worker, records the transaction
// locally and spawns a fresh search. Challenges are trusted to arrive
// in issue order, every new one unconditionally supersedes the prior.
func (m *Miner) OnChallenge(challenge types.ChallengeAnnounce) {
	if m.active != nil {
		m.active.Stop()
		m.active = nil
	}

	if err := m.ledger.Open(challenge.TransactionID, challenge.Challenge); err != nil {
		// A redelivered challenge, the entry already exists.
		m.log.Debugf("transaction %d already recorded. %v", challenge.TransactionID, err)
	}

	ctx, stop := context.WithCancel(m.context)
	worker := &Worker{
		self:        m.self,
		transaction: challenge.TransactionID,
		difficulty:  challenge.Challenge,
		transport:   m.transport,
		topic:       m.topics.Solution,
		yieldEvery:  m.yieldEvery,
		context:     ctx,
		stop:        stop,
		metrics:     m.metrics,
		log:         m.log,
	}
	m.active = worker
	m.log.Infof("mining transaction %d at difficulty %d", challenge.TransactionID, challenge.Challenge)
	m.invoker.Spawn(worker.Run)
}

// OnResult applies the authoritative verdict. An accepted solution
// settles the local ledger entry and preempts the active worker when
// it is still searching the settled transaction. Rejections are
// informational only.
func (m *Miner) OnResult(result types.ResultAnnounce) {
	if result.Result != 1 {
		m.log.Infof("solution %q for transaction %d from %d was rejected", result.Solution, result.TransactionID, result.ClientID)
		return
	}

	switch err := m.ledger.Resolve(result.TransactionID, result.Solution, result.ClientID); err {
	case nil:
		m.metrics.Resolved.Inc()
		m.log.Infof("transaction %d settled, won by %d", result.TransactionID, result.ClientID)
	case types.ErrAlreadyResolved, types.ErrUnknownTransaction:
		// Redelivered verdict, or a verdict for a challenge this
		// node never saw. Either way the local view is unchanged.
		m.log.Debugf("ignoring verdict for transaction %d. %v", result.TransactionID, err)
	default:
		m.log.Errorf("failed settling transaction %d. %v", result.TransactionID, err)
	}

	if m.active != nil && m.active.Transaction() == result.TransactionID {
		m.active.Stop()
		m.active = nil
	}
}

// Active returns the current worker, if any.
func (m *Miner) Active() *Worker {
	return m.active
}

// Stop preempts the active worker, if any.
func (m *Miner) Stop() {
	if m.active != nil {
		m.active.Stop()
		m.active = nil
	}
}
