package core

import (
	"context"
	"math/rand"
	"time"

	"github.com/jabolina/go-powcast/pkg/powcast/helper"
	"github.com/jabolina/go-powcast/pkg/powcast/metric"
	"github.com/jabolina/go-powcast/pkg/powcast/types"
)

// Controller is the behavior attached to the elected node. It issues
// one challenge at a time, validates the raced solutions against the
// hash oracle and broadcasts the authoritative verdict.
type Controller struct {
	// Own identity.
	self types.ClientID

	// Transport for the challenge and result broadcasts.
	transport Transport

	// Resolved topic names.
	topics types.Topics

	// The authoritative ledger.
	ledger *types.Ledger

	// Monotonic transaction counter, the first issued id is 1.
	counter types.TransactionID

	// Upper bound for the drawn difficulty.
	difficultyMax int

	// Delay before the first challenge and between a result and
	// the next challenge.
	quiesce time.Duration

	// Parent context, issuing stops when it is cancelled.
	context context.Context

	// Used to spawn the delayed issue goroutines.
	invoker Invoker

	// Node instrumentation.
	metrics *metric.NodeMetrics

	// Controller logger.
	log types.Logger
}

func NewController(
	ctx context.Context,
	configuration *types.Configuration,
	transport Transport,
	ledger *types.Ledger,
	invoker Invoker,
	metrics *metric.NodeMetrics,
	log types.Logger,
) *Controller {
	return &Controller{
		self:          configuration.ClientID,
		transport:     transport,
		topics:        types.NewTopics(configuration.TopicPrefix),
		ledger:        ledger,
		difficultyMax: configuration.DifficultyMax,
		quiesce:       configuration.QuiesceDelay,
		context:       ctx,
		invoker:       invoker,
		metrics:       metrics,
		log:           log,
	}
}

// Start lets the network quiesce and then issues the first challenge.
func (c *Controller) Start() {
	c.log.Infof("node %d elected controller", c.self)
	c.scheduleIssue()
}

func (c *Controller) scheduleIssue() {
	c.invoker.Spawn(func() {
		select {
		case <-c.context.Done():
		case <-time.After(c.quiesce):
			c.issue()
		}
	})
}

// Issue the next challenge. Only ever called with no outstanding
// transaction, so the ledger holds at most one pending entry.
func (c *Controller) issue() {
	c.counter++
	difficulty := 1 + rand.Intn(c.difficultyMax)
	if err := c.ledger.Open(c.counter, difficulty); err != nil {
		c.log.Errorf("failed opening transaction %d. %v", c.counter, err)
		return
	}

	payload, err := types.Encode(types.ChallengeAnnounce{
		TransactionID: c.counter,
		Challenge:     difficulty,
	})
	if err != nil {
		c.log.Errorf("failed encoding challenge %d. %v", c.counter, err)
		return
	}
	c.log.Infof("issuing transaction %d with difficulty %d", c.counter, difficulty)
	if err := c.transport.Publish(c.topics.Challenge, payload); err != nil {
		c.log.Errorf("failed publishing challenge %d. %v", c.counter, err)
	}
}

// OnSolution validates one raced submission. Submissions against
// unknown or already resolved transactions are dropped silently,
// they are stale miners racing the verdict. An invalid solution is
// answered with a rejection so the submitter can audit it.
func (c *Controller) OnSolution(submit types.SolutionSubmit) {
	entry, ok := c.ledger.Get(submit.TransactionID)
	if !ok {
		c.log.Debugf("solution for unknown transaction %d from %d", submit.TransactionID, submit.ClientID)
		return
	}
	if entry.Resolved() {
		c.log.Debugf("solution for resolved transaction %d from %d", submit.TransactionID, submit.ClientID)
		return
	}

	if !helper.MeetsDifficulty(helper.HashHex(submit.Solution), entry.Challenge) {
		c.log.Warnf("rejecting solution %q for transaction %d from %d", submit.Solution, submit.TransactionID, submit.ClientID)
		c.verdict(submit, 0)
		return
	}

	if err := c.ledger.Resolve(submit.TransactionID, submit.Solution, submit.ClientID); err != nil {
		c.log.Errorf("failed resolving transaction %d. %v", submit.TransactionID, err)
		return
	}
	c.metrics.Resolved.Inc()
	c.log.Infof("transaction %d won by %d with %q", submit.TransactionID, submit.ClientID, submit.Solution)
	c.verdict(submit, 1)
	c.scheduleIssue()
}

func (c *Controller) verdict(submit types.SolutionSubmit, result int) {
	payload, err := types.Encode(types.ResultAnnounce{
		ClientID:      submit.ClientID,
		TransactionID: submit.TransactionID,
		Solution:      submit.Solution,
		Result:        result,
	})
	if err != nil {
		c.log.Errorf("failed encoding result for %d. %v", submit.TransactionID, err)
		return
	}
	if err := c.transport.Publish(c.topics.Result, payload); err != nil {
		c.log.Errorf("failed publishing result for %d. %v", submit.TransactionID, err)
	}
}
